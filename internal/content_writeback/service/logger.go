package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
)

// opLogger scopes log lines to one operation. Request and session ids are picked up from ctx by
// the logging hook.
func opLogger(ctx context.Context, base zerolog.Logger, operation string) zerolog.Logger {
	return base.With().Ctx(ctx).Str("operation", operation).Logger()
}

// withSession tags ctx so every log line under it carries the session id
func withSession(ctx context.Context, id string) context.Context {
	return logging.WithSessionID(ctx, id)
}
