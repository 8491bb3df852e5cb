package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"postgate/internal/api"
	"postgate/internal/config"
	"postgate/internal/decision"
	"postgate/internal/logging"
	"postgate/internal/queue"
	"postgate/internal/testsupport"
)

func setupServer(t *testing.T, opts ...testsupport.ConfigOption) (*Server, queue.Store, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	return New(cfg, store, logging.NewNop()), store, cfg
}

func get(t *testing.T, srv *Server, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	srv, _, _ := setupServer(t, testsupport.WithDashboardToken("s3cret"))
	w := get(t, srv, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "healthy", resp.Status)
	_, err := time.Parse(time.RFC3339Nano, resp.Timestamp)
	require.NoError(t, err)
}

func TestAuthRequiredWhenTokenConfigured(t *testing.T) {
	srv, _, _ := setupServer(t, testsupport.WithDashboardToken("s3cret"))

	for _, path := range []string{"/api/stats", "/api/queue", "/"} {
		w := get(t, srv, path, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
		require.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	}

	w := get(t, srv, "/api/stats", http.Header{"Authorization": {"Bearer wrong"}})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(t, srv, "/api/stats", http.Header{"Authorization": {"Bearer s3cret"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = get(t, srv, "/api/queue?token=s3cret", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestNoTokenDisablesAuth(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := get(t, srv, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = get(t, srv, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Postgate Dashboard")
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestStatsCountsBothCollections(t *testing.T) {
	srv, store, _ := setupServer(t)
	decider := decision.New(store, logging.NewNop())
	ctx := context.Background()

	testsupport.NewPending(t, store, "waiting")
	approved := testsupport.NewPending(t, store, "yes")
	rejected := testsupport.NewPending(t, store, "no")
	_, err := decider.Decide(ctx, approved.ID, queue.DecisionApprove)
	require.NoError(t, err)
	_, err = decider.Decide(ctx, rejected.ID, queue.DecisionReject)
	require.NoError(t, err)

	w := get(t, srv, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"pending":1,"approved":1,"rejected":1}`, w.Body.String())
}

func TestQueueReturnsNewestFirstWithLimit(t *testing.T) {
	srv, store, cfg := setupServer(t)
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < cfg.Dashboard.QueueLimit+5; i++ {
		testsupport.NewPending(t, store, fmt.Sprintf("item %d", i), testsupport.CreatedAt(base.Add(time.Duration(i)*time.Minute)))
	}

	w := get(t, srv, "/api/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []queue.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, cfg.Dashboard.QueueLimit)
	require.Equal(t, fmt.Sprintf("item %d", cfg.Dashboard.QueueLimit+4), items[0].Description)
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt), "items not sorted newest first")
	}
}

func TestQueueEmptyIsArray(t *testing.T) {
	srv, _, _ := setupServer(t)
	w := get(t, srv, "/api/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestItemLookupPrefersProcessed(t *testing.T) {
	srv, store, _ := setupServer(t, testsupport.WithDashboardToken("s3cret"))
	item := testsupport.NewApproved(t, store, "look me up", testsupport.WithContent("caption"))
	auth := http.Header{"Authorization": {"Bearer s3cret"}}

	w := get(t, srv, "/api/queue/"+item.ID, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(t, srv, "/api/queue/"+item.ID, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var got queue.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, item.ID, got.ID)
	require.Equal(t, queue.StatusApproved, got.Status)

	w = get(t, srv, "/api/queue/zzzzzzzzzzzz", auth)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"not found"}`, w.Body.String())
}

func TestStartServesAndStops(t *testing.T) {
	srv, _, _ := setupServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Start(ctx))

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.Eventually(t, func() bool {
		_, err := http.Get("http://" + srv.Addr() + "/health")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}
