// Package broadcast formats round lifecycle events into human-readable
// announcements and dispatches them through the notification channels and
// the signal bus. Announcements are best-effort and explicitly decoupled
// from round state transitions.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/notify"
)

// Bus channel names for engine events.
const (
	ChannelRounds = "rounds"
	ChannelPrices = "prices"
)

// Adapter turns rounds and results into announcements. Every dispatch
// failure is logged and swallowed: a missed announcement never blocks or
// reverses a round's lifecycle.
type Adapter struct {
	notifier *notify.Notifier
	bus      domain.SignalBus // may be nil
	logger   *slog.Logger
}

// New creates an Adapter. bus may be nil when no signal bus is configured.
func New(notifier *notify.Notifier, bus domain.SignalBus, logger *slog.Logger) *Adapter {
	return &Adapter{
		notifier: notifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "broadcast")),
	}
}

// AnnounceOpen broadcasts a newly created round.
func (a *Adapter) AnnounceOpen(ctx context.Context, round domain.Round) {
	title := fmt.Sprintf("round open: %s", round.Symbol)
	msg := FormatOpen(round)

	if err := a.notifier.Notify(ctx, notify.EventRoundOpen, title, msg); err != nil {
		a.logger.WarnContext(ctx, "round open announcement failed",
			slog.String("round_id", round.ID),
			slog.String("error", err.Error()),
		)
	}
	a.publish(ctx, "round_open", round, nil)
}

// AnnounceResolved broadcasts a resolved round and its winners.
func (a *Adapter) AnnounceResolved(ctx context.Context, round domain.Round, winners []domain.Prediction) {
	title := fmt.Sprintf("round resolved: %s %s", round.Symbol, strings.ToUpper(string(round.Outcome)))
	msg := FormatResolved(round, winners)

	if err := a.notifier.Notify(ctx, notify.EventRoundResolved, title, msg); err != nil {
		a.logger.WarnContext(ctx, "round resolved announcement failed",
			slog.String("round_id", round.ID),
			slog.String("error", err.Error()),
		)
	}
	a.publish(ctx, "round_resolved", round, winners)
}

// AnnounceDigest broadcasts a periodic summary of active rounds and cached
// prices.
func (a *Adapter) AnnounceDigest(ctx context.Context, active []domain.Round, snaps []domain.PriceSnapshot) {
	if err := a.notifier.Notify(ctx, notify.EventDigest, "market digest", FormatDigest(active, snaps)); err != nil {
		a.logger.WarnContext(ctx, "digest announcement failed",
			slog.String("error", err.Error()),
		)
	}
}

// publish pushes a structured event onto the signal bus for out-of-process
// consumers (the WebSocket hub, UIs).
func (a *Adapter) publish(ctx context.Context, event string, round domain.Round, winners []domain.Prediction) {
	if a.bus == nil {
		return
	}

	payload := map[string]any{
		"event":       event,
		"round_id":    round.ID,
		"symbol":      round.Symbol,
		"start_price": round.StartPrice,
		"start_time":  round.StartTime.Format(time.RFC3339),
		"end_time":    round.EndTime.Format(time.RFC3339),
		"status":      string(round.Status),
	}
	if round.Status == domain.RoundStatusResolved {
		payload["end_price"] = round.EndPrice
		payload["outcome"] = string(round.Outcome)
		ids := make([]string, 0, len(winners))
		for _, w := range winners {
			ids = append(ids, w.UserID)
		}
		sort.Strings(ids)
		payload["winners"] = ids
	}

	data, _ := json.Marshal(payload)
	if err := a.bus.Publish(ctx, ChannelRounds, data); err != nil {
		a.logger.WarnContext(ctx, "signal bus publish failed",
			slog.String("event", event),
			slog.String("round_id", round.ID),
			slog.String("error", err.Error()),
		)
	}
}

// FormatOpen renders the round-open announcement body.
func FormatOpen(round domain.Round) string {
	return fmt.Sprintf(
		"%s round is open!\nStart price: %s\nPredict UP or DOWN before %s.",
		round.Symbol,
		formatPrice(round.StartPrice),
		round.EndTime.UTC().Format("15:04:05 MST"),
	)
}

// FormatResolved renders the round-resolved announcement body.
func FormatResolved(round domain.Round, winners []domain.Prediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s went %s: %s -> %s\n",
		round.Symbol,
		strings.ToUpper(string(round.Outcome)),
		formatPrice(round.StartPrice),
		formatPrice(round.EndPrice),
	)

	switch len(winners) {
	case 0:
		b.WriteString("No winners this round.")
	default:
		ids := make([]string, 0, len(winners))
		for _, w := range winners {
			ids = append(ids, w.UserID)
		}
		sort.Strings(ids)
		fmt.Fprintf(&b, "Winners (%d): %s", len(ids), strings.Join(ids, ", "))
	}
	return b.String()
}

// FormatDigest renders the periodic digest body.
func FormatDigest(active []domain.Round, snaps []domain.PriceSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Active rounds: %d\n", len(active))

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Symbol < snaps[j].Symbol })
	for _, s := range snaps {
		fmt.Fprintf(&b, "%s %s (%+.2f%% 24h)\n", s.Symbol, formatPrice(s.Price), s.Change24h)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatPrice renders a price with sensible precision for both large-cap and
// sub-cent assets.
func formatPrice(p float64) string {
	switch {
	case p >= 1000:
		return fmt.Sprintf("$%.0f", p)
	case p >= 1:
		return fmt.Sprintf("$%.2f", p)
	default:
		return fmt.Sprintf("$%.6f", p)
	}
}
