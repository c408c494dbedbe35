package shares

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartCleanupWorker starts a background goroutine that periodically removes
// expired and quota-exhausted share links. The sweep is idempotent and safe
// to run concurrently with user-triggered deletions.
func StartCleanupWorker(ctx context.Context, manager *Manager, interval time.Duration, logger *zap.Logger) {
	go func() {
		logger.Info("Starting share link cleanup worker",
			zap.Duration("interval", interval))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				expired := manager.CollectExpired()
				for _, id := range expired {
					manager.Delete(id)
				}
				if len(expired) > 0 {
					logger.Info("Cleaned up dead share links",
						zap.Int("count", len(expired)))
				}
			case <-ctx.Done():
				logger.Info("Share link cleanup worker shutting down")
				return
			}
		}
	}()
}
