package reservations

import (
	"context"
	"fmt"
	"time"

	"mise/internal/core/clock"
	"mise/pkg/logger"
)

// SweeperConfig controls the expiry sweep and the released-row purge.
type SweeperConfig struct {
	// SweepInterval is how often expired ACTIVE holds are released.
	SweepInterval time.Duration

	// PurgeInterval is how often RELEASED rows are garbage-collected.
	PurgeInterval time.Duration

	// Retention is how long RELEASED rows are kept before purging.
	Retention time.Duration

	// BatchSize bounds one sweep pass.
	BatchSize int
}

// DefaultSweeperConfig returns production defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		SweepInterval: time.Minute,
		PurgeInterval: time.Hour,
		Retention:     time.Hour,
		BatchSize:     500,
	}
}

// Sweeper releases reservations past their expiry and purges stale released
// rows. No caller waits on it; each release runs in its own transaction and
// races against concurrent commits only through the conditional
// ACTIVE->RELEASED transition.
type Sweeper struct {
	svc *Service
	clk clock.Clock
	cfg SweeperConfig
	log *logger.Logger
}

// NewSweeper creates a new expiry sweeper.
func NewSweeper(svc *Service, clk clock.Clock, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		svc: svc,
		clk: clk,
		cfg: cfg,
		log: log.WithComponent("reservation-sweeper"),
	}
}

// Run blocks until ctx is cancelled, sweeping and purging on their tickers.
func (s *Sweeper) Run(ctx context.Context) {
	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()
	purge := time.NewTicker(s.cfg.PurgeInterval)
	defer purge.Stop()

	s.log.Info("sweeper started",
		"sweep_interval", s.cfg.SweepInterval,
		"purge_interval", s.cfg.PurgeInterval,
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-sweep.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.Errorw("expiry sweep failed", "error", err)
			} else if n > 0 {
				s.log.Infow("released expired reservations", "count", n)
			}
		case <-purge.C:
			if n, err := s.PurgeOnce(ctx); err != nil {
				s.log.Errorw("reservation purge failed", "error", err)
			} else if n > 0 {
				s.log.Infow("purged released reservations", "count", n)
			}
		}
	}
}

// SweepOnce releases every ACTIVE reservation whose expiry has passed.
// Each release is its own transaction so one poisoned row cannot stall the
// rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	expired, err := s.svc.repo.ListExpired(ctx, s.clk.Now(), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	released := 0
	for _, hold := range expired {
		if err := s.svc.Release(ctx, hold.ID); err != nil {
			s.log.Warnw("release of expired reservation failed",
				"reservation_id", hold.ID,
				"group_id", hold.GroupID,
				"error", err,
			)
			continue
		}
		released++
	}

	return released, nil
}

// PurgeOnce hard-deletes RELEASED rows older than the retention window.
func (s *Sweeper) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := s.clk.Now().Add(-s.cfg.Retention)
	return s.svc.repo.DeleteReleasedBefore(ctx, cutoff)
}
