package wager

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LifecycleManager locks events automatically once their lock time passes.
type LifecycleManager struct {
	svc      *Service
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewLifecycleManager creates a lifecycle manager ticking every interval.
func NewLifecycleManager(svc *Service, interval time.Duration) *LifecycleManager {
	return &LifecycleManager{
		svc:      svc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the lifecycle management goroutine.
func (lm *LifecycleManager) Start(ctx context.Context) {
	lm.wg.Add(1)
	go lm.run(ctx)
}

// Stop stops the lifecycle manager and waits for the current tick.
func (lm *LifecycleManager) Stop() {
	close(lm.stopCh)
	lm.wg.Wait()
}

func (lm *LifecycleManager) run(ctx context.Context) {
	defer lm.wg.Done()

	ticker := time.NewTicker(lm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lm.stopCh:
			return
		case <-ticker.C:
			if locked := lm.svc.LockExpired(ctx); len(locked) > 0 {
				slog.Debug("lifecycle tick", "locked", len(locked))
			}
		}
	}
}
