package middleware

import (
	"context"
	"strings"

	"codejudge/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"
	UserIDHeader    = "X-User-Id"
)

// TraceContextConfig controls which caller supplied ids are trusted.
type TraceContextConfig struct {
	// AllowUserIDHeader accepts X-User-Id from an upstream gateway.
	AllowUserIDHeader bool
}

// TraceContextMiddleware puts trace, request and user ids into the gin and request contexts.
func TraceContextMiddleware(cfg TraceContextConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = bindID(c, ctx, TraceIDHeader, "trace_id", contextkey.TraceID, true)
		ctx = bindID(c, ctx, RequestIDHeader, "request_id", contextkey.RequestID, true)
		if cfg.AllowUserIDHeader {
			ctx = bindID(c, ctx, UserIDHeader, "user_id", contextkey.UserID, false)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bindID(c *gin.Context, ctx context.Context, header, ginKey string, ctxKey any, generate bool) context.Context {
	id := strings.TrimSpace(c.GetHeader(header))
	if id == "" {
		if !generate {
			return ctx
		}
		id = uuid.NewString()
	}
	c.Set(ginKey, id)
	c.Writer.Header().Set(header, id)
	return context.WithValue(ctx, ctxKey, id)
}
