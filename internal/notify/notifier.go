// Package notify delivers round announcements through outbound channels
// (Telegram, Discord). Delivery is fire-and-forget: a failed or filtered
// announcement never feeds back into engine state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event classifies an announcement so operators can choose which kinds of
// messages reach their channels.
type Event string

const (
	EventRoundOpen     Event = "round_open"
	EventRoundResolved Event = "round_resolved"
	EventDigest        Event = "digest"
	EventError         Event = "error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans an announcement out to every registered sender, filtered by
// event type. An empty allow-list lets every event through.
type Notifier struct {
	senders []Sender
	events  map[Event]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only
// events named in the events slice are forwarded; if the slice is empty all
// events pass.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[Event]bool, len(events))
	for _, e := range events {
		allowed[Event(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify dispatches to all senders when the event type is allowed. Errors
// from individual senders are logged and collected; one failing channel does
// not prevent delivery to the rest, and the caller is expected to swallow
// the combined error after logging it.
func (n *Notifier) Notify(ctx context.Context, event Event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", string(event)),
		)
		return nil
	}

	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
