package mw

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheStatusHeader tells clients whether a response came from the cache.
const CacheStatusHeader = "X-Cache"

// ResponseCache holds rendered GET responses. Every Flush starts a new
// generation; a response rendered across a flush is never stored.
type ResponseCache struct {
	mu    sync.Mutex
	items *cache.Cache
	gen   uint64
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl, cleanupInterval time.Duration) *ResponseCache {
	return &ResponseCache{items: cache.New(ttl, cleanupInterval)}
}

// Flush drops every entry.
func (rc *ResponseCache) Flush() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.gen++
	rc.items.Flush()
}

func (rc *ResponseCache) lookup(key string) (*cachedResponse, uint64, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if hit, ok := rc.items.Get(key); ok {
		return hit.(*cachedResponse), rc.gen, true
	}
	return nil, rc.gen, false
}

func (rc *ResponseCache) store(key string, resp *cachedResponse, gen uint64) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if gen != rc.gen {
		return false
	}
	rc.items.SetDefault(key, resp)
	return true
}

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// recordingWriter copies the response body while it is written.
type recordingWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from rc, keyed by request URI.
// Only 2xx responses are kept.
func Cache(rc *ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		resp, gen, ok := rc.lookup(key)
		if ok {
			for k, v := range resp.header {
				c.Writer.Header()[k] = v
			}
			c.Header(CacheStatusHeader, "HIT")
			c.Writer.WriteHeader(resp.status)
			_, _ = c.Writer.Write(resp.body)
			c.Abort()
			return
		}

		c.Header(CacheStatusHeader, "MISS")
		rw := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		if status := rw.Status(); status >= 200 && status < 300 {
			header := rw.Header().Clone()
			header.Del(CacheStatusHeader)
			rc.store(key, &cachedResponse{status: status, header: header, body: rw.buf.Bytes()}, gen)
		}
	}
}

// Invalidate flushes rc after any successful non-GET request.
func Invalidate(rc *ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			return
		}
		if status := c.Writer.Status(); status >= 200 && status < 300 {
			rc.Flush()
		}
	}
}
