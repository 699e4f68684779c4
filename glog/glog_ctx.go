package glog

import (
	"context"
	"fmt"
)

// requestIDKey is the context key this package looks for to prepend a
// correlation id to log lines, mirroring weed/glog/glog_ctx.go's InfoCtx family.
type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// WithRequestID returns a context carrying a correlation id for subsequent *Ctx calls.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func formatMetaTag(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return fmt.Sprintf("request_id:%s", id)
	}
	return ""
}

// InfoCtx is a context-aware alternative to Info: it prepends a request id tag when present.
func InfoCtx(ctx context.Context, args ...interface{}) {
	if tag := formatMetaTag(ctx); tag != "" {
		args = append([]interface{}{tag}, args...)
	}
	Info(args...)
}

// InfofCtx is a context-aware alternative to Infof.
func InfofCtx(ctx context.Context, format string, args ...interface{}) {
	if tag := formatMetaTag(ctx); tag != "" {
		format = tag + " " + format
	}
	Infof(format, args...)
}

// WarningfCtx is a context-aware alternative to Warningf.
func WarningfCtx(ctx context.Context, format string, args ...interface{}) {
	if tag := formatMetaTag(ctx); tag != "" {
		format = tag + " " + format
	}
	Warningf(format, args...)
}

// ErrorfCtx is a context-aware alternative to Errorf.
func ErrorfCtx(ctx context.Context, format string, args ...interface{}) {
	if tag := formatMetaTag(ctx); tag != "" {
		format = tag + " " + format
	}
	Errorf(format, args...)
}
