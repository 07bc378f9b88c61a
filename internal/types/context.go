package types

import "context"

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxLogger
)

// WithRequestID returns a copy of ctx carrying the API request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

// GetRequestID returns the request ID, or "" outside an API request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// WithLogger attaches a request-scoped logger, normally one already tagged
// with request_id.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxLogger, logger)
}

// LoggerFromContext returns the logger set by WithLogger, or nil.
func LoggerFromContext(ctx context.Context) Logger {
	l, _ := ctx.Value(ctxLogger).(Logger)
	return l
}
