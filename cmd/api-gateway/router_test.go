package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/inbox-manager-api/internal/app"
	"github.com/noah-isme/inbox-manager-api/internal/models"
	"github.com/noah-isme/inbox-manager-api/pkg/config"
)

func newTestRouter(t *testing.T) (*gin.Engine, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:       config.EnvProduction,
		APIPrefix: "/api/v1",
		Store:     config.StoreConfig{Driver: config.StoreDriverMemory},
		Views:     config.ViewsConfig{SettleTimeout: time.Second},
	}
	a, err := app.New(app.Deps{Cfg: cfg})
	require.NoError(t, err)
	a.Start(context.Background())
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return newRouter(cfg, zap.NewNop(), a), a
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndCatalog(t *testing.T) {
	r, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "").Code)

	rec := serve(r, http.MethodGet, "/api/v1/queues", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"manual-reply"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterQueueRequiresConnectionForActions(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/api/v1/queues/sendguard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"disconnected"`)

	rec = serve(r, http.MethodPost, "/api/v1/records/r1/remove", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONNECTION_MISSING")
}

func TestRouterConnectAndModerate(t *testing.T) {
	r, a := newTestRouter(t)
	a.MemoryStore("inbox").Seed(models.Record{
		"id": "r1", "created_at": time.Now().UTC(), "permission": "Waiting", "removed": false, "email_subject": "Refund",
	})

	rec := serve(r, http.MethodPut, "/api/v1/connection", `{"driver":"memory","table":"inbox"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/api/v1/queues/sendguard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Refund"`)

	rec = serve(r, http.MethodPost, "/api/v1/records/r1/decision", `{"permission":"Approval"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/api/v1/queues/sendguard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"empty"`)

	rec = serve(r, http.MethodGet, "/api/v1/dashboard/stats?range=24h", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodDelete, "/api/v1/connection", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
