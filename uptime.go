package main

import (
	"context"
	"time"
)

// startUptimeTicker publishes elapsed process uptime on the emitter until
// ctx is cancelled.
func startUptimeTicker(ctx context.Context, em *Emitter, interval time.Duration) {
	started := time.Now()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				em.SetUptime(ctx, time.Since(started).Seconds())
			}
		}
	}()
}
