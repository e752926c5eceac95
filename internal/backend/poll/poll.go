// Package poll turns a periodically checked fingerprint into change events,
// for backends that have no push notifications of their own.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskboard/internal/service"
)

// DefaultInterval is used when a zero interval is passed to Watch.
const DefaultInterval = 15 * time.Second

// FingerprintFunc summarizes the current contents of the table. Any change
// to the table must change the fingerprint.
type FingerprintFunc func(ctx context.Context) (string, error)

// Watch takes an initial fingerprint and then polls every interval. Each
// time the fingerprint differs from the previous one, fn receives an
// EventUnknown. Failed polls are logged and skipped.
//
// The returned subscription stops polling on Close or when ctx is done;
// Close waits for the polling goroutine to exit.
func Watch(ctx context.Context, interval time.Duration, fp FingerprintFunc, fn func(service.Event), logger *slog.Logger) (service.Subscription, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	last, err := fp(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial poll: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cur, err := fp(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("poll failed", "err", err)
				}
				continue
			}
			if cur == last {
				continue
			}
			last = cur
			logger.Debug("poll detected change")
			fn(service.Event{Type: service.EventUnknown})
		}
	}()

	var once sync.Once
	return service.SubscriptionFunc(func() error {
		once.Do(func() {
			cancel()
			<-done
		})
		return nil
	}), nil
}
