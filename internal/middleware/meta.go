package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/roster-api/pkg/errors"
	"github.com/noah-isme/roster-api/pkg/response"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	staleKey        = "stale"
	noticeKey       = "notification"
	startedKey      = "response_started"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startedKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records cache hit information for the current response.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// SetStale marks the response as served from a previous roster snapshot and
// surfaces the store failure as an error notice.
func SetStale(c *gin.Context, warning *appErrors.Error) {
	meta := ensureMeta(c)
	meta[staleKey] = true
	if warning != nil {
		meta[noticeKey] = response.Notice{Level: response.NoticeError, Message: warning.Message}
	}
}

// ExtractMeta returns the metadata map stored on the context with the
// processing time filled in. It returns nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := value.(map[string]interface{})
	if !ok || len(meta) == 0 {
		return nil
	}
	if started, ok := c.Get(startedKey); ok {
		if t, ok := started.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(t).Milliseconds()
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
