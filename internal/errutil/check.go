package errutil

import (
	"context"

	"github.com/lucasew/slackoffload/internal/logctx"
)

// LogMsg logs the error with a custom message if it is not nil.
// args are key/value pairs appended to the log event.
func LogMsg(ctx context.Context, err error, msg string, args ...any) {
	if err != nil {
		logger := logctx.FromContext(ctx)
		logger.Warn().Err(err).Fields(args).Msg(msg)
	}
}

// ReportError logs an unexpected error.
// It funnels errors through a centralized reporting mechanism (currently zerolog).
func ReportError(ctx context.Context, err error, msg string, args ...any) {
	if err != nil {
		logger := logctx.FromContext(ctx)
		logger.Error().Err(err).Fields(args).Msg(msg)
	}
}
