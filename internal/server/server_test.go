package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/adapters/database/sqlite"
	"github.com/hexgate/hexgate/internal/adapters/telemetry"
	"github.com/hexgate/hexgate/internal/core/catalog"
	"github.com/hexgate/hexgate/internal/core/database/pool"
	"github.com/hexgate/hexgate/internal/core/query/compiler"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/executor"
	"github.com/hexgate/hexgate/internal/core/resource"
	"github.com/hexgate/hexgate/internal/server"
	"github.com/hexgate/hexgate/internal/service"
)

type fixture struct {
	server    *server.Server
	telemetry *telemetry.MemoryTelemetry
}

func newFixture(t *testing.T, opts server.Options, auth server.Authenticator) *fixture {
	t.Helper()
	ctx := context.Background()

	a, err := sqlite.NewSQLiteAdapter(database.Config{URL: "sqlite::memory:", Pool: pool.Config{}})
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx))
	t.Cleanup(func() { a.Disconnect(ctx) })

	_, err = a.Execute(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE, age INTEGER)`)
	require.NoError(t, err)

	cat := catalog.New(a, catalog.Options{})
	_, err = cat.Load(ctx)
	require.NoError(t, err)

	tel := telemetry.NewMemoryTelemetry()
	coord := executor.NewCoordinator(a, tel, executor.Options{StatementTimeout: 5 * time.Second})
	comp := compiler.NewSQLCompiler(domain.SQLite).WithCapabilities(cat.Capabilities())
	gw := service.NewGatewayService(resource.NewResolver(cat), comp, coord)

	s := server.NewServer(server.Deps{Gateway: gw, Auth: auth, Health: a.Pool(), Telemetry: tel}, opts)
	return &fixture{server: s, telemetry: tel}
}

func (f *fixture) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decodeRows(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows), w.Body.String())
	return rows
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestServer_CRUD(t *testing.T) {
	f := newFixture(t, server.Options{}, nil)

	w := f.do(t, http.MethodPost, "/main/users", `[{"name":"ann","age":31},{"name":"bob","age":17}]`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, decodeRows(t, w), 2)
	assert.NotEmpty(t, w.Header().Get(server.RequestIDHeader))

	w = f.do(t, http.MethodGet, "/main/users?columns=name&sort=-name", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"name":"bob"},{"name":"ann"}]`, w.Body.String())

	w = f.do(t, http.MethodPatch, "/main/users?name=eq.bob", `{"age":18}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := decodeRows(t, w)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 18, rows[0]["age"])

	w = f.do(t, http.MethodDelete, "/main/users?age=gte.18", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeRows(t, w), 2)

	w = f.do(t, http.MethodGet, "/main/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestServer_Errors(t *testing.T) {
	f := newFixture(t, server.Options{MaxBodyBytes: 64}, nil)
	w := f.do(t, http.MethodPost, "/main/users", `{"name":"ann"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		kind   string
	}{
		{"unknown table", http.MethodGet, "/main/ghosts", "", http.StatusNotFound, domain.KindUnknownResource},
		{"bad identifier", http.MethodGet, "/main/users?na-me=eq.x", "", http.StatusBadRequest, domain.KindInvalidIdentifier},
		{"bad operator", http.MethodGet, "/main/users?name=zz.x", "", http.StatusBadRequest, domain.KindMalformedQuery},
		{"unfiltered delete", http.MethodDelete, "/main/users", "", http.StatusBadRequest, domain.KindMissingFilter},
		{"unfiltered update", http.MethodPatch, "/main/users", `{"age":1}`, http.StatusBadRequest, domain.KindMissingFilter},
		{"bad payload", http.MethodPost, "/main/users", `[1,2]`, http.StatusBadRequest, domain.KindSchemaMismatch},
		{"unique violation", http.MethodPost, "/main/users", `{"name":"ann"}`, http.StatusConflict, domain.KindBackendError},
		{"unknown column", http.MethodGet, "/main/users?nope=eq.1", "", http.StatusBadRequest, domain.KindBackendError},
		{"functions on sqlite", http.MethodGet, "/main/function/users", "", http.StatusNotFound, domain.KindUnknownResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decodeError(t, w)["error"])
		})
	}

	t.Run("body too large", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/main/users", `{"name":"`+strings.Repeat("x", 100)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := f.do(t, http.MethodHead, "/main/function/fn", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestServer_AllowUnfiltered(t *testing.T) {
	t.Run("ignored without opt-in", func(t *testing.T) {
		f := newFixture(t, server.Options{}, nil)
		w := f.do(t, http.MethodDelete, "/main/users?allow_unfiltered=true", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("query key", func(t *testing.T) {
		f := newFixture(t, server.Options{AllowUnfilteredOptIn: true}, nil)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/main/users", `[{"name":"a"},{"name":"b"}]`).Code)
		w := f.do(t, http.MethodDelete, "/main/users?allow_unfiltered=true", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, decodeRows(t, w), 2)
	})

	t.Run("header", func(t *testing.T) {
		f := newFixture(t, server.Options{AllowUnfilteredOptIn: true}, nil)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/main/users", `{"name":"a"}`).Code)
		w := f.do(t, http.MethodPatch, "/main/users", `{"age":3}`, server.AllowUnfilteredHeader, "true")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Len(t, decodeRows(t, w), 1)
	})
}

func TestServer_TrustedHeaderAuth(t *testing.T) {
	f := newFixture(t, server.Options{}, server.TrustedHeaderAuth{Header: server.DefaultRoleHeader})

	w := f.do(t, http.MethodGet, "/main/users", "", server.DefaultRoleHeader, "bad role")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.KindInvalidIdentifier, decodeError(t, w)["error"])

	// sqlite has no roles
	w = f.do(t, http.MethodGet, "/main/users", "", server.DefaultRoleHeader, "reader")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, domain.KindUnsupported, decodeError(t, w)["error"])

	w = f.do(t, http.MethodGet, "/main/users", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewAuthenticator(t *testing.T) {
	a, err := server.NewAuthenticator("", "")
	require.NoError(t, err)
	assert.IsType(t, server.NoAuth{}, a)

	a, err = server.NewAuthenticator("trusted-header", "")
	require.NoError(t, err)
	assert.Equal(t, server.TrustedHeaderAuth{Header: server.DefaultRoleHeader}, a)

	_, err = server.NewAuthenticator("jwt", "")
	assert.Error(t, err)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	f := newFixture(t, server.Options{}, nil)

	w := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health, "pool")

	f.do(t, http.MethodGet, "/main/users", "")

	w = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap telemetry.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Operations[executor.OperationQuery].Success)
	assert.Equal(t, int64(1), snap.Connections["health_check"])
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := server.NewServer(server.Deps{Gateway: service.NewGatewayService(resource.NewResolver(nil), compiler.NewSQLCompiler(domain.PostgreSQL), nil)}, server.Options{})
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type downChecker struct{}

func (downChecker) HealthCheck(context.Context) error { return errors.New("connection refused") }
func (downChecker) Stats() pool.Stats                 { return pool.Stats{} }

func TestServer_HealthUnavailable(t *testing.T) {
	s := server.NewServer(server.Deps{
		Gateway: service.NewGatewayService(resource.NewResolver(nil), compiler.NewSQLCompiler(domain.PostgreSQL), nil),
		Health:  downChecker{},
	}, server.Options{})
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestServer_RequestIDAndCORS(t *testing.T) {
	f := newFixture(t, server.Options{CORSOrigin: "*"}, nil)

	id := "6f1c2b4e-8d7a-4c3b-9e2f-1a2b3c4d5e6f"
	w := f.do(t, http.MethodGet, "/health", "", server.RequestIDHeader, id)
	assert.Equal(t, id, w.Header().Get(server.RequestIDHeader))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = f.do(t, http.MethodGet, "/health", "", server.RequestIDHeader, "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(server.RequestIDHeader))

	w = f.do(t, http.MethodOptions, "/main/users", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.Errorf(domain.ErrTimeout, "late"), http.StatusGatewayTimeout},
		{domain.Errorf(domain.ErrTransactionAborted, "deadlock"), http.StatusInternalServerError},
		{domain.NewBackendError("42501", "denied", nil).WithCategory(domain.CategoryPermission), http.StatusForbidden},
		{domain.NewBackendError("42P01", "missing", nil).WithCategory(domain.CategoryUndefined), http.StatusNotFound},
		{&domain.Error{Kind: domain.ErrBackend, Connection: true}, http.StatusServiceUnavailable},
		{domain.NewBackendError("XX000", "boom", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, server.StatusFor(tt.err), tt.err.Error())
	}
}

func TestServer_RequestFor(t *testing.T) {
	s := server.NewServer(server.Deps{Gateway: service.NewGatewayService(resource.NewResolver(nil), compiler.NewSQLCompiler(domain.PostgreSQL), nil)}, server.Options{})

	tests := []struct {
		method string
		target string
		want   service.Request
	}{
		{http.MethodGet, "/public/users?id=eq.1", service.Request{Operation: service.OpRead, Schema: "public", Name: "users", RawQuery: "id=eq.1"}},
		{http.MethodPost, "/public/users", service.Request{Operation: service.OpCreate, Schema: "public", Name: "users"}},
		{http.MethodPut, "/public/users?id=eq.1", service.Request{Operation: service.OpUpdate, Schema: "public", Name: "users", RawQuery: "id=eq.1"}},
		{http.MethodDelete, "/public/users?id=eq.1", service.Request{Operation: service.OpDelete, Schema: "public", Name: "users", RawQuery: "id=eq.1"}},
		{http.MethodGet, "/public/function/search?q=x", service.Request{Operation: service.OpCall, Schema: "public", Name: "search", RawQuery: "q=x"}},
		{http.MethodPost, "/public/function/search", service.Request{Operation: service.OpCallWithBody, Schema: "public", Name: "search"}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			got, err := s.RequestFor(tt.method, tt.target, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.RequestFor(http.MethodGet, "/health", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownResource)
	_, err = s.RequestFor(http.MethodGet, "/a/b/c/d", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownResource)
	_, err = s.RequestFor(http.MethodHead, "/public/users", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownResource)
}

func TestServer_Routes(t *testing.T) {
	s := server.NewServer(server.Deps{Gateway: service.NewGatewayService(resource.NewResolver(nil), compiler.NewSQLCompiler(domain.PostgreSQL), nil)}, server.Options{})

	routes := s.Routes()
	require.Len(t, routes, 8)
	assert.Equal(t, "health", routes[0].Name)
	assert.Equal(t, "/health", routes[0].Path)
	assert.Equal(t, []string{http.MethodPatch, http.MethodPut}, routes[6].Methods)
	for _, r := range routes {
		assert.NotEmpty(t, r.Purpose, r.Name)
	}
}
