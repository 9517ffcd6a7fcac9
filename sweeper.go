package deviceauth

import (
	"context"
	"time"

	"go.pilab.hu/deviceauth/internal/metrics"
	"go.pilab.hu/deviceauth/log"
)

// DefaultSweepInterval is how often expired records are purged.
const DefaultSweepInterval = time.Minute

// Sweeper periodically purges expired device code records.
type Sweeper struct {
	store    DeviceCodeStore
	interval time.Duration
	logger   log.Logger
}

// NewSweeper returns a sweeper for store. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(store DeviceCodeStore, interval time.Duration, logger log.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on every tick until ctx is done. Failed sweeps are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single purge and returns the number of removed records.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to purge expired device codes", err)
		return 0
	}

	if n > 0 {
		metrics.ExpiredCodesPurgedTotal.Add(float64(n))
		s.logger.Debug(ctx, "Purged expired device codes", map[string]interface{}{"count": n})
	}

	return n
}
