// Package scheduler drives the periodic engine tasks: price refresh, round
// creation sweeps, expiry sweeps, retention eviction, and the digest
// broadcast. Each task runs on its own cadence in its own goroutine; a
// failed tick in one task never aborts another, and every task resumes on
// its own schedule regardless of the previous tick's outcome.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predictpulse/roundbot/internal/broadcast"
	"github.com/predictpulse/roundbot/internal/domain"
	"github.com/predictpulse/roundbot/internal/pricecache"
	"github.com/predictpulse/roundbot/internal/resolve"
	"github.com/predictpulse/roundbot/internal/rounds"
)

// ColdArchiver receives rounds evicted past their retention window for
// cold storage. Implementations are best-effort.
type ColdArchiver interface {
	ArchiveRounds(ctx context.Context, batch []domain.Round) error
}

// Intervals groups the scheduler cadences.
type Intervals struct {
	CreationSweep time.Duration
	ExpirySweep   time.Duration
	Digest        time.Duration
	Retention     time.Duration // how long resolved rounds stay readable
}

// Scheduler owns the timer-driven control flow around the round registry.
type Scheduler struct {
	registry  *rounds.Registry
	prices    *pricecache.Cache
	refresher *pricecache.Refresher
	resolver  *resolve.Engine
	adapter   *broadcast.Adapter
	cold      ColdArchiver // may be nil
	assets    []domain.Asset
	intervals Intervals
	logger    *slog.Logger
}

// New creates a Scheduler. cold may be nil when no cold-storage archiver is
// configured.
func New(
	registry *rounds.Registry,
	prices *pricecache.Cache,
	refresher *pricecache.Refresher,
	resolver *resolve.Engine,
	adapter *broadcast.Adapter,
	cold ColdArchiver,
	assets []domain.Asset,
	intervals Intervals,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		registry:  registry,
		prices:    prices,
		refresher: refresher,
		resolver:  resolver,
		adapter:   adapter,
		cold:      cold,
		assets:    assets,
		intervals: intervals,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Run starts all periodic tasks and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		slog.Duration("creation_sweep", s.intervals.CreationSweep),
		slog.Duration("expiry_sweep", s.intervals.ExpirySweep),
		slog.Duration("digest", s.intervals.Digest),
		slog.Int("assets", len(s.assets)),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.refresher.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("price refresher: %w", err)
	})

	g.Go(func() error {
		err := s.runLoop(ctx, s.intervals.CreationSweep, s.CreationSweep)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("creation sweep: %w", err)
	})

	g.Go(func() error {
		err := s.runLoop(ctx, s.intervals.ExpirySweep, s.ExpirySweep)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("expiry sweep: %w", err)
	})

	if s.intervals.Digest > 0 {
		g.Go(func() error {
			err := s.runLoop(ctx, s.intervals.Digest, s.digestTick)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("digest: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		s.logger.Error("scheduler stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("scheduler stopped cleanly")
	return nil
}

// runLoop invokes tick on every interval until ctx is cancelled. Tick errors
// are logged and absorbed so the loop's cadence is preserved.
func (s *Scheduler) runLoop(ctx context.Context, interval time.Duration, tick func(context.Context, time.Time)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			tick(ctx, now.UTC())
		}
	}
}

// CreationSweep opens a round for every tracked asset that has no Active
// round and a price snapshot available. Assets without a snapshot yet are
// skipped, not failed: absence means "do not create", and the next sweep
// retries.
func (s *Scheduler) CreationSweep(ctx context.Context, now time.Time) {
	for _, a := range s.assets {
		if _, active := s.registry.ActiveForSymbol(a.Symbol); active {
			continue
		}
		snap, ok := s.prices.Get(a.Symbol)
		if !ok {
			continue
		}

		round, err := s.registry.Create(a.Symbol, snap.Price, now)
		if err != nil {
			// A concurrent sweep (or a late manual open) won the race;
			// expected under concurrent scheduling, absorbed silently.
			if errors.Is(err, domain.ErrAlreadyActive) {
				continue
			}
			s.logger.ErrorContext(ctx, "round creation failed",
				slog.String("symbol", a.Symbol),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.logger.InfoContext(ctx, "round opened",
			slog.String("round_id", round.ID),
			slog.String("symbol", round.Symbol),
			slog.Float64("start_price", round.StartPrice),
			slog.Time("end_time", round.EndTime),
		)
		s.adapter.AnnounceOpen(ctx, round)
	}
}

// ExpirySweep resolves every Active round whose end time has passed, then
// evicts resolved rounds past the retention window. Each expired round is
// handed to the resolver exactly once per sweep (deduplicated by round ID);
// MarkResolved's idempotence protects across overlapping sweeps.
func (s *Scheduler) ExpirySweep(ctx context.Context, now time.Time) {
	seen := make(map[string]bool)
	for _, round := range s.registry.ListExpired(now) {
		if seen[round.ID] {
			continue
		}
		seen[round.ID] = true

		result, err := s.resolver.Resolve(ctx, round, now)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoSnapshot):
				// Provider was down through the round; the round stays
				// Active and the next sweep retries.
				s.logger.WarnContext(ctx, "resolution deferred, no usable snapshot",
					slog.String("round_id", round.ID),
					slog.String("symbol", round.Symbol),
				)
			case errors.Is(err, domain.ErrAlreadyResolved):
				// Another sweep resolved it between ListExpired and here.
			default:
				s.logger.ErrorContext(ctx, "resolution failed",
					slog.String("round_id", round.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		s.adapter.AnnounceResolved(ctx, result.Round, result.Winners)
	}

	s.evictionPass(ctx, now)
}

// evictionPass removes resolved rounds past the retention window, pushing
// them to cold storage first when an archiver is configured.
func (s *Scheduler) evictionPass(ctx context.Context, now time.Time) {
	evictable := s.registry.ListEvictable(now.Add(-s.intervals.Retention))
	if len(evictable) == 0 {
		return
	}

	if s.cold != nil {
		if err := s.cold.ArchiveRounds(ctx, evictable); err != nil {
			s.logger.WarnContext(ctx, "cold archive failed, evicting anyway",
				slog.Int("rounds", len(evictable)),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, round := range evictable {
		if err := s.registry.Evict(round.ID); err != nil {
			s.logger.WarnContext(ctx, "evict failed",
				slog.String("round_id", round.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.DebugContext(ctx, "round evicted", slog.String("round_id", round.ID))
	}
}

// digestTick broadcasts a summary of active rounds and cached prices.
func (s *Scheduler) digestTick(ctx context.Context, _ time.Time) {
	var active []domain.Round
	for _, round := range s.registry.List() {
		if round.Status == domain.RoundStatusActive {
			active = append(active, round)
		}
	}
	s.adapter.AnnounceDigest(ctx, active, s.prices.All())
}
