package lobby

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/config"
)

// Reaper periodically collects provisional index entries whose streaming
// bind never arrived, so a crashed client does not block its identifier
// (or an empty room) forever.
type Reaper struct {
	store    *Store
	interval time.Duration
	ttl      time.Duration
	logger   *zap.Logger
	done     chan struct{}
	once     sync.Once
}

// NewReaper creates a Reaper driven by the lobby configuration.
//
// Precondition: store and logger must be non-nil; cfg must be validated.
func NewReaper(store *Store, cfg config.LobbyConfig, logger *zap.Logger) *Reaper {
	return &Reaper{
		store:    store,
		interval: cfg.ReapInterval,
		ttl:      cfg.ProvisionalTTL,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the reap loop until Stop is called.
func (r *Reaper) Start() error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.store.ReapExpired(r.ttl); n > 0 {
				r.logger.Info("reaped stale reservations", zap.Int("count", n))
			}
		case <-r.done:
			return nil
		}
	}
}

// Stop terminates the reap loop. Idempotent.
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.done) })
}
