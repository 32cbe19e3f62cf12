package broker

import (
	"context"

	"ima/internal/logging"
)

// InspectCount opens a session, reads the depth of queue and closes the
// session again. Any failure is logged and reported as CountUnknown so callers
// can tell "empty" from "unknown".
func InspectCount(ctx context.Context, a Adapter, queue string) int {
	ch, err := a.Connect(ctx)
	if err != nil {
		logging.L().Error("broker: connect for queue count failed", "queue", queue, "err", err)
		return CountUnknown
	}
	defer func() {
		if err := ch.Close(); err != nil {
			logging.L().Warn("broker: close after queue count failed", "err", err)
		}
	}()

	n, err := ch.Inspect(ctx, queue)
	if err != nil {
		logging.L().Error("broker: queue count failed", "queue", queue, "err", err)
		return CountUnknown
	}
	return n
}
