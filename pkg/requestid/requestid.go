// Package requestid injects and threads the X-Request-Id correlation
// header used across every external interface (§6) and echoed back on
// every response, including error responses.
package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header is the canonical correlation header name.
	Header = "X-Request-Id"

	contextKey = "request_id"
)

type ctxKey struct{}

// Middleware reuses an inbound X-Request-Id or mints one, sets it on the
// response header, and stores it both on the gin context (for handlers
// using common.GetRequestID) and on the request's context.Context (for
// service-layer code that only has a context).
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(contextKey, id)
		c.Writer.Header().Set(Header, id)

		ctx := context.WithValue(c.Request.Context(), ctxKey{}, id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// FromContext extracts the request id from a context.Context, returning
// "" if none was threaded in (e.g. a background sweeper run).
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a child context carrying requestID, for code that
// originates a request id outside of the gin middleware (cron sweepers,
// orchestrator retries).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}
