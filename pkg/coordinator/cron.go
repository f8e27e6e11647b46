package coordinator

import (
	"context"
	"log/slog"

	"github.com/blackgold9/canvas-integration/pkg/log"
)

// cronLogger routes the scheduler's logs through the context logger.
type cronLogger struct {
	ctx context.Context
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	log.Ctx(l.ctx).DebugContext(l.ctx, "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Ctx(l.ctx).ErrorContext(l.ctx, "cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
