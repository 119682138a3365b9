package audiostore

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanupTicker runs a background goroutine that sweeps the store every
// interval, removing files older than maxAge. It complements the sweep done
// on every audio fetch so storage stays bounded even when nothing is fetched.
// The goroutine stops when the provided context is cancelled.
func StartCleanupTicker(ctx context.Context, store *Store, maxAge, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := store.Sweep(maxAge)
				if removed == 0 {
					continue
				}
				slog.Info("audio retention cleanup", "deleted", removed, "max_age", maxAge.String())
			}
		}
	}()
}
