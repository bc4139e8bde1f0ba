package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyLockTTL     = 30 * time.Second
	idempotencyResponseTTL = 24 * time.Hour
)

type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type bodyCaptureWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency guards POST endpoints against duplicate submissions. The
// first request with a client-supplied Idempotency-Key takes a short-lived
// redis lock, runs, and stores its response; a retry after completion gets
// the stored response replayed, and a retry while the first request is
// still in flight gets a conflict.
func Idempotency(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		base := fmt.Sprintf("idemp:%s:%s", c.FullPath(), idempKey)
		respKey := base + ":response"
		lockKey := base + ":lock"

		if cached, err := rdb.Get(ctx, respKey).Result(); err == nil {
			var stored storedResponse
			if json.Unmarshal([]byte(cached), &stored) == nil {
				c.Header("Idempotent-Replay", "true")
				c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
				c.Abort()
				return
			}
		}

		// Short expiry so a crashed request cannot wedge the key forever.
		isNew, _ := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if !isNew {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    "PROCESSING",
				"message": "A request with this idempotency key is already in progress",
			})
			return
		}

		writer := &bodyCaptureWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		// Server errors are never stored for replay.
		if status := writer.Status(); status < http.StatusInternalServerError {
			stored := storedResponse{Status: status, Body: writer.buf.Bytes()}
			if payload, err := json.Marshal(stored); err == nil {
				rdb.Set(ctx, respKey, payload, idempotencyResponseTTL)
			}
		}
		rdb.Del(ctx, lockKey)
	}
}
