package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	startedAtKey    = "response_started_at"
)

// WithResponseMeta starts the request clock and a metadata map that handlers
// can extend before writing the envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startedAtKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta records one metadata entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	ensureMeta(c)[key] = value
}

// ResponseMeta merges extra into the collected metadata and stamps
// processing_time_ms. Without WithResponseMeta only extra is returned.
func ResponseMeta(c *gin.Context, extra map[string]interface{}) map[string]interface{} {
	meta := make(map[string]interface{}, len(extra)+1)
	for k, v := range ExtractMeta(c) {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	if c != nil {
		if v, ok := c.Get(startedAtKey); ok {
			if started, ok := v.(time.Time); ok {
				meta["processing_time_ms"] = time.Since(started).Milliseconds()
			}
		}
	}
	return meta
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
