package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies request_id and session_id from the event context onto the event.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil || ctx == context.Background() {
		return
	}

	if rid := GetRequestID(ctx); rid != "" {
		e.Str("request_id", rid)
	}
	if sid := GetSessionID(ctx); sid != "" {
		e.Str("session_id", sid)
	}
}
