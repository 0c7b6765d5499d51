package session

import (
	"context"
	"log"
	"time"
)

// RunSweeper invokes st.Sweep on the given interval until ctx is cancelled.
// onEvict, when non-nil, receives the eviction count of each sweep.
func RunSweeper(ctx context.Context, st Store, interval time.Duration, logger *log.Logger, onEvict func(n int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n := st.Sweep(ctx, now)
			if n > 0 {
				logger.Printf("evicted %d expired session(s)", n)
			}
			if onEvict != nil {
				onEvict(n)
			}
		}
	}
}
