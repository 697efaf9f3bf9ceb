package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/access"
	"coffee-fleet-backend/internal/conversation"
	"coffee-fleet-backend/internal/db"
	"coffee-fleet-backend/internal/dialogue"
	"coffee-fleet-backend/internal/ledger"
	"coffee-fleet-backend/internal/metrics"
	"coffee-fleet-backend/internal/store"
)

const adminID = 1

type testServer struct {
	router *gin.Engine
	store  store.Store
	token  string
}

func newTestServer(t *testing.T, policy string) *testServer {
	t.Helper()
	return newTestServerWithToken(t, policy, "")
}

// newTestServerWithToken requires apiToken on operator routes when it is non-empty.
func newTestServerWithToken(t *testing.T, policy, apiToken string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})

	s := store.NewGormStore(gormDB)
	gate, err := access.NewGate(s, config.AccessConfig{Policy: policy, AdminIDs: []int64{adminID}, DefaultRole: "staff"})
	require.NoError(t, err)

	dm := dialogue.NewManager(0)
	m := metrics.New(func() float64 { return float64(dm.Active()) })
	recorder, err := ledger.NewRecorder(s, "UTC", m)
	require.NoError(t, err)
	conv := conversation.NewService(gate, ledger.NewEngine(s, ledger.WithMetrics(m)), recorder, s, dm, m)

	h := NewHandler(s, gate, conv, &webpush.Options{VAPIDPublicKey: "test-public-key"})
	router := NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60, APIToken: apiToken}, m.Handler())
	return &testServer{router: router, store: s, token: apiToken}
}

func (ts *testServer) createMachine(t *testing.T, name string) int64 {
	t.Helper()
	machine, err := ts.store.CreateMachine(context.Background(), name)
	require.NoError(t, err)
	return machine.ID
}

// do sends a request with an optional JSON body and operator header (0 means none).
func (ts *testServer) do(method, path string, body any, operator int64) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	if operator != 0 {
		req.Header.Set(operatorHeader, strconv.FormatInt(operator, 10))
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type jsonBody map[string]any
