package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

const (
	ginKey    = "request_id"
	maxLength = 128
)

type ctxKey struct{}

// Middleware tags each request with an id, reusing the caller's when it is
// short printable ASCII. The id is stored on the gin context and on the
// request context so services can attach it to audit entries.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(ginKey, id)
		c.Request = c.Request.WithContext(WithID(c.Request.Context(), id))
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the id stored on the gin context.
func Value(c *gin.Context) string {
	id, _ := c.Get(ginKey)
	s, _ := id.(string)
	return s
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}
