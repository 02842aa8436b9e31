package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Martian-dev/pst-migrate/internal/auth"
	"github.com/Martian-dev/pst-migrate/internal/sync"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthz(t *testing.T) {
	r := NewRouter(sync.NewProgress(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatusReflectsProgress(t *testing.T) {
	ctx := context.Background()
	progress := sync.NewProgress()
	now := time.Now()
	progress.Observe(ctx, sync.Event{RunID: "r1", Scope: sync.ScopeRun, Name: sync.PhaseImport, At: now})
	progress.Observe(ctx, sync.Event{RunID: "r1", Scope: sync.ScopeItem, Kind: sync.KindMail, Folder: "Inbox", Outcome: sync.OutcomeCreated, At: now})
	progress.Observe(ctx, sync.Event{RunID: "r1", Scope: sync.ScopeItem, Kind: sync.KindMail, Folder: "Inbox", Outcome: sync.OutcomeExisting, At: now})

	r := NewRouter(progress, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap sync.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "r1", snap.RunID)
	assert.Equal(t, sync.PhaseImport, snap.Phase)
	assert.True(t, snap.Running)
	assert.Equal(t, "Inbox", snap.Current)
	assert.Equal(t, 2, snap.Items.Mail.Total)
	assert.Equal(t, 1, snap.Items.Mail.SkippedExisting)
}

func TestStatusIdle(t *testing.T) {
	r := NewRouter(sync.NewProgress(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["running"])
	assert.NotContains(t, body, "run_id")
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", sync.NewProgress(), nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type tokenVerifier map[string]string

func (v tokenVerifier) CallerFromRequest(r *http.Request) (*auth.Caller, error) {
	sub, ok := v[r.Header.Get("Authorization")]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Caller{Subject: sub}, nil
}

func TestStatusRequiresToken(t *testing.T) {
	r := NewRouter(sync.NewProgress(), tokenVerifier{"Bearer good": "operator"})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"status without token", "/status", "", http.StatusUnauthorized},
		{"status with bad token", "/status", "Bearer bad", http.StatusUnauthorized},
		{"status with token", "/status", "Bearer good", http.StatusOK},
		{"healthz stays open", "/healthz", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
