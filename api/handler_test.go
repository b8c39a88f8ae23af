// mp4conv/api/handler_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mp4conv/batch"
	"mp4conv/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner writes an empty file at the output path instead of encoding.
type mockRunner struct {
	block chan struct{}
}

func (m *mockRunner) Run(ctx context.Context, args []string) (string, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "ok", os.WriteFile(args[len(args)-1], nil, 0o644)
}

func setupTestRouter(t *testing.T, runner batch.ProcessRunner) (*gin.Engine, *config.Config, *batch.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{VideoCodec: "libx264", AudioCodec: "aac"}
	session := batch.NewSession(batch.NewExecutor(cfg, runner))
	router := SetupRouter(context.Background(), session, batch.NewLogBuffer(10), cfg)
	return router, cfg, session
}

func touch(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], nil, 0o644))
	}
	return paths
}

func drop(router *gin.Engine, paths []string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(DropRequest{Paths: paths})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/drop", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleDrop(t *testing.T) {
	router, _, _ := setupTestRouter(t, &mockRunner{})

	t.Run("plan for tape files", func(t *testing.T) {
		w := drop(router, touch(t, "B.mts", "A.mts"))
		require.Equal(t, http.StatusOK, w.Code)

		var plan planView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
		assert.NotEmpty(t, plan.BatchID)
		assert.Equal(t, batch.CategoryMTS, plan.Category)
		require.Len(t, plan.Groups, 2)
		assert.Equal(t, "A", plan.Groups[0].Name)
		assert.Equal(t, batch.StrategyConcatCopy, plan.Groups[0].Strategy)
	})

	t.Run("mixed input", func(t *testing.T) {
		w := drop(router, touch(t, "a.m2ts", "b.mp4"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "mixed_input")
	})

	t.Run("unsupported", func(t *testing.T) {
		w := drop(router, touch(t, "a.txt"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unsupported_format")
	})

	t.Run("mp4 only", func(t *testing.T) {
		w := drop(router, touch(t, "a.mp4"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"noop":true`)
	})

	t.Run("empty body", func(t *testing.T) {
		w := drop(router, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleStartAndStatus(t *testing.T) {
	router, _, session := setupTestRouter(t, &mockRunner{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/batch/start", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	paths := touch(t, "video.avi")
	dw := drop(router, paths)
	require.Equal(t, http.StatusOK, dw.Code)
	var plan planView
	require.NoError(t, json.Unmarshal(dw.Body.Bytes(), &plan))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/batch/start", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	var started struct {
		BatchID string `json:"batchId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, plan.BatchID, started.BatchID)

	require.Eventually(t, func() bool {
		last := session.Snapshot().Last
		return last != nil && last.Kind == batch.OutcomeCompleted
	}, 5*time.Second, 10*time.Millisecond)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/batch", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var snap batch.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, batch.StateIdle, snap.State)
	require.NotNil(t, snap.Last)
	assert.Equal(t, 1, snap.Last.Completed)
	assert.FileExists(t, filepath.Join(filepath.Dir(paths[0]), "converted_mp4", "video.mp4"))
}

func TestHandleCancel(t *testing.T) {
	runner := &mockRunner{block: make(chan struct{})}
	router, _, session := setupTestRouter(t, runner)

	require.Equal(t, http.StatusOK, drop(router, touch(t, "a.mov", "b.mov")).Code)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/batch/start", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PATCH", "/api/v1/batch/cancel", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	snap := session.Snapshot()
	assert.Equal(t, batch.StateIdle, snap.State)
	require.NotNil(t, snap.Last)
	assert.Equal(t, batch.OutcomeCancelled, snap.Last.Kind)
}

func TestHandleLogs(t *testing.T) {
	router, _, _ := setupTestRouter(t, &mockRunner{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/logs", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/v1/logs", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	router, cfg, _ := setupTestRouter(t, &mockRunner{})

	t.Run("Auth disabled", func(t *testing.T) {
		cfg.AuthEnable = false
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/batch", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Auth enabled, no token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/batch", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, wrong scheme", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/batch", nil)
		req.Header.Set("Authorization", "Basic secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, wrong token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/batch", nil)
		req.Header.Set("Authorization", "Bearer wrong-key")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Auth enabled, correct token", func(t *testing.T) {
		cfg.AuthEnable = true
		cfg.AuthKey = "secret"
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/batch", nil)
		req.Header.Set("Authorization", "Bearer secret")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Health is open", func(t *testing.T) {
		cfg.AuthEnable = true
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
