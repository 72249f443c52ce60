package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/pkg/actor"
	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	claims map[string]*models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s.claims[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newValidator() stubValidator {
	return stubValidator{claims: map[string]*models.JWTClaims{
		"admin-token":  {UserID: "u-1", Email: "admin@campus.test", Role: models.RoleAdmin},
		"viewer-token": {UserID: "u-2", Role: models.RoleViewer},
	}}
}

func perform(r http.Handler, method, path string, headers map[string]string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := gin.New()
	r.Use(JWT(newValidator()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/", map[string]string{"Authorization": "Token abc"}, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/", map[string]string{"Authorization": "Bearer nope"}, "").Code)
}

func TestJWTAttachesActorToRequestContext(t *testing.T) {
	r := gin.New()
	r.Use(JWT(newValidator()))
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = actor.FromContext(c.Request.Context(), "")
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/", map[string]string{"Authorization": "Bearer admin-token"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin@campus.test", seen)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	r := gin.New()
	r.Use(OptionalJWT(newValidator()))
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = actor.FromContext(c.Request.Context(), "cli")
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", map[string]string{"Authorization": "Bearer bad"}, "").Code)
	assert.Equal(t, "cli", seen)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", map[string]string{"Authorization": "Bearer viewer-token"}, "").Code)
	assert.Equal(t, "u-2", seen)
}

func TestRequireRoles(t *testing.T) {
	r := gin.New()
	r.Use(JWT(newValidator()))
	r.POST("/", RequireRoles(models.RoleAdmin, models.RoleRegistrar), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodPost, "/", map[string]string{"Authorization": "Bearer admin-token"}, "").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodPost, "/", map[string]string{"Authorization": "Bearer viewer-token"}, "").Code)
}

type memIdempotency struct {
	mu       sync.Mutex
	pending  map[string]bool
	stored   map[string]models.StoredResponse
	released []string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{pending: map[string]bool{}, stored: map[string]models.StoredResponse{}}
}

func (m *memIdempotency) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stored[key]; ok || m.pending[key] {
		return false, nil
	}
	m.pending[key] = true
	return true, nil
}

func (m *memIdempotency) Get(_ context.Context, key string) (*models.StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.stored[key]; ok {
		return &resp, nil
	}
	if m.pending[key] {
		return nil, nil
	}
	return nil, appErrors.ErrCacheMiss
}

func (m *memIdempotency) Save(_ context.Context, key string, resp models.StoredResponse, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.stored[key] = resp
	return nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, key)
	m.released = append(m.released, key)
	return nil
}

type countingRecorder struct {
	results map[string]int
}

func (c *countingRecorder) RecordIdempotency(result string) {
	c.results[result]++
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newMemIdempotency()
	metrics := &countingRecorder{results: map[string]int{}}
	calls := 0
	r := gin.New()
	r.Use(Idempotency(store, time.Hour, nil, metrics))
	r.POST("/enrollments", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"call": calls})
	})

	headers := map[string]string{IdempotencyHeader: "abc"}
	first := perform(r, http.MethodPost, "/enrollments", headers, "{}")
	second := perform(r, http.MethodPost, "/enrollments", headers, "{}")

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Empty(t, first.Header().Get(ReplayedHeader))
	assert.Equal(t, 1, metrics.results["stored"])
	assert.Equal(t, 1, metrics.results["replayed"])
}

func TestIdempotencyKeysAreScopedToPath(t *testing.T) {
	store := newMemIdempotency()
	calls := 0
	r := gin.New()
	r.Use(Idempotency(store, time.Hour, nil, nil))
	r.POST("/a", func(c *gin.Context) { calls++; c.Status(http.StatusNoContent) })
	r.POST("/b", func(c *gin.Context) { calls++; c.Status(http.StatusNoContent) })

	headers := map[string]string{IdempotencyHeader: "same"}
	perform(r, http.MethodPost, "/a", headers, "")
	perform(r, http.MethodPost, "/b", headers, "")
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesOnServerError(t *testing.T) {
	store := newMemIdempotency()
	calls := 0
	r := gin.New()
	r.Use(Idempotency(store, time.Hour, nil, nil))
	r.POST("/", func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusCreated)
	})

	headers := map[string]string{IdempotencyHeader: "retry-me"}
	assert.Equal(t, http.StatusServiceUnavailable, perform(r, http.MethodPost, "/", headers, "").Code)
	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/", headers, "").Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.released, 1)
}

func TestIdempotencyReleasesWhenHandlerPanics(t *testing.T) {
	store := newMemIdempotency()
	calls := 0
	r := gin.New()
	r.Use(gin.RecoveryWithWriter(io.Discard))
	r.Use(Idempotency(store, time.Hour, nil, nil))
	r.POST("/", func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		c.Status(http.StatusCreated)
	})

	headers := map[string]string{IdempotencyHeader: "panicky"}
	assert.Equal(t, http.StatusInternalServerError, perform(r, http.MethodPost, "/", headers, "").Code)
	assert.Equal(t, http.StatusCreated, perform(r, http.MethodPost, "/", headers, "").Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.released, 1)
}

type failingSaveStore struct {
	*memIdempotency
}

func (f failingSaveStore) Save(context.Context, string, models.StoredResponse, time.Duration) error {
	return errors.New("redis down")
}

func TestIdempotencyReleasesWhenSaveFails(t *testing.T) {
	store := failingSaveStore{memIdempotency: newMemIdempotency()}
	metrics := &countingRecorder{results: map[string]int{}}
	calls := 0
	r := gin.New()
	r.Use(Idempotency(store, time.Hour, nil, metrics))
	r.DELETE("/", func(c *gin.Context) { calls++; c.Status(http.StatusNoContent) })

	headers := map[string]string{IdempotencyHeader: "unsaved"}
	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodDelete, "/", headers, "").Code)
	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodDelete, "/", headers, "").Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.released, 2)
	assert.Equal(t, 2, metrics.results["error"])
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newMemIdempotency()
	r := gin.New()
	r.Use(Idempotency(store, time.Hour, nil, nil))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	_, err := store.Claim(context.Background(), scopedKey(c, "busy"), time.Hour)
	require.NoError(t, err)

	w := perform(r, http.MethodPost, "/", map[string]string{IdempotencyHeader: "busy"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIdempotencyIgnoresReadsAndMissingKeys(t *testing.T) {
	store := newMemIdempotency()
	calls := 0
	r := gin.New()
	r.Use(Idempotency(store, time.Hour, nil, nil))
	r.GET("/", func(c *gin.Context) { calls++; c.Status(http.StatusOK) })
	r.POST("/", func(c *gin.Context) { calls++; c.Status(http.StatusCreated) })

	perform(r, http.MethodGet, "/", map[string]string{IdempotencyHeader: "k"}, "")
	perform(r, http.MethodGet, "/", map[string]string{IdempotencyHeader: "k"}, "")
	perform(r, http.MethodPost, "/", nil, "")
	perform(r, http.MethodPost, "/", nil, "")
	assert.Equal(t, 4, calls)
	assert.Empty(t, store.stored)

	long := strings.Repeat("x", maxIdempotencyKeyLength+1)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/", map[string]string{IdempotencyHeader: long}, "").Code)
}
