package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"filmlog/internal/logging"
)

// heartbeat refreshes the job's liveness until ctx is done. Progress updates
// also refresh it; the ticker covers long waits such as rate-limit cooldowns.
func (o *Orchestrator) heartbeat(ctx context.Context, logger *slog.Logger, username, jobID string, done chan<- struct{}) {
	defer close(done)
	interval := o.heartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.store.UpdateHeartbeat(ctx, username, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_failed"),
					logging.String(logging.FieldErrorHint, "check database access"),
				)
			}
		}
	}
}
