package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/middleware/requestid"
)

// Keys of the response meta object.
const (
	MetaRequestID = "request_id"
	MetaCacheHit  = "cache_hit"
	MetaWarnings  = "warnings"
	MetaElapsed   = "processing_time_ms"
)

const (
	metaKey      = "response_meta"
	metaStartKey = "response_meta_start"
)

// ResponseMeta prepares the meta object handlers fill while serving a request.
// Register it after the request id middleware.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta[MetaRequestID] = id
		}
		c.Set(metaKey, meta)
		c.Set(metaStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit records whether the payload came from the read cache.
func SetCacheHit(c *gin.Context, hit bool) {
	metaOf(c)[MetaCacheHit] = hit
}

// AddWarnings appends non-fatal sync warnings, such as a skipped roster update.
func AddWarnings(c *gin.Context, warnings []models.Warning) {
	if len(warnings) == 0 {
		return
	}
	meta := metaOf(c)
	existing, _ := meta[MetaWarnings].([]models.Warning)
	meta[MetaWarnings] = append(existing, warnings...)
}

// ExtractMeta returns the meta object with the elapsed time stamped, or nil
// when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(metaKey)
	if !ok {
		return nil
	}
	meta, _ := v.(map[string]interface{})
	if meta == nil {
		return nil
	}
	if start, ok := c.Get(metaStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta[MetaElapsed] = time.Since(t).Milliseconds()
		}
	}
	return meta
}

func metaOf(c *gin.Context) map[string]interface{} {
	if v, ok := c.Get(metaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(metaKey, meta)
	return meta
}
