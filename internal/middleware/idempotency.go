package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
	"github.com/noah-isme/enrollment-ledger/pkg/response"
)

const (
	// IdempotencyHeader carries the client chosen key of a mutating request.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the idempotency store.
	ReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 200
)

type idempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*models.StoredResponse, error)
	Save(ctx context.Context, key string, resp models.StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type idempotencyRecorder interface {
	RecordIdempotency(result string)
}

// Idempotency replays the first completed response of a mutating request for
// every later request with the same Idempotency-Key, principal, method and
// path. Server errors, panics and failed saves release the key so the client
// may retry. Store outages degrade to normal processing.
func Idempotency(store idempotencyStore, ttl time.Duration, logger *zap.Logger, metrics idempotencyRecorder) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	record := func(result string) {
		if metrics != nil {
			metrics.RecordIdempotency(result)
		}
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" || !isMutating(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Idempotency-Key is too long"))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		scoped := scopedKey(c, key)
		claimed, err := store.Claim(ctx, scoped, ttl)
		if err != nil {
			logger.Warn("idempotency claim failed", zap.Error(err))
			record("error")
			c.Next()
			return
		}

		if !claimed {
			stored, err := store.Get(ctx, scoped)
			switch {
			case err == nil && stored != nil:
				record("replayed")
				c.Header(ReplayedHeader, "true")
				c.Data(stored.Status, stored.ContentType, stored.Body)
				c.Abort()
				return
			case err == nil:
				record("in_flight")
				response.Error(c, appErrors.Clone(appErrors.ErrConflict, "a request with this Idempotency-Key is still being processed"))
				c.Abort()
				return
			case !errors.Is(err, appErrors.ErrCacheMiss):
				logger.Warn("idempotency lookup failed", zap.Error(err))
				record("error")
			}
			c.Next()
			return
		}

		// The claim is dropped unless a response is saved, including when the
		// handler panics and recovery unwinds past this frame.
		saved := false
		defer func() {
			if saved {
				return
			}
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				logger.Warn("idempotency release failed", zap.Error(err))
			}
		}()

		writer := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		stored := models.StoredResponse{
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		}
		if err := store.Save(context.WithoutCancel(ctx), scoped, stored, ttl); err != nil {
			logger.Warn("idempotency save failed", zap.Error(err))
			record("error")
			return
		}
		saved = true
		record("stored")
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func scopedKey(c *gin.Context, key string) string {
	principal := "anonymous"
	if claims, ok := CurrentUser(c); ok {
		principal = claims.UserID
	}
	sum := sha256.Sum256([]byte(principal + "\x00" + c.Request.Method + "\x00" + c.Request.URL.Path + "\x00" + key))
	return "idempotency:" + hex.EncodeToString(sum[:])
}

// capturingWriter tees the response body so it can be stored for replay.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
