package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey  = "response_meta"
	responseStartKey = "response_start"
)

// Sources recorded by MarkServedBy.
const (
	ServedByRegistry      = "registry"
	ServedByProgressCache = "progress_cache"
)

// WithResponseMeta seeds a metadata map on the request context. Handlers
// fill it through MarkServedBy and flush it into the response envelope
// with ExtractMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// MarkServedBy records which store answered the request: the live run
// registry or the Redis progress cache.
func MarkServedBy(c *gin.Context, source string) {
	ensureMeta(c)["served_by"] = source
}

// ExtractMeta returns the metadata map stored on the context, stamping
// the elapsed handler time at the moment of extraction.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := ensureMeta(c)
	if v, exists := c.Get(responseStartKey); exists {
		if start, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
