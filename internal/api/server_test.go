package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/engine"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dbcore/internal/migrate"
	"github.com/nerrad567/gray-logic-dbcore/internal/pool"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqlbuild"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

// newTestServer returns a server over a single SQLite pool named "main".
func newTestServer(t *testing.T, migrator *migrate.Migrator) (*Server, *pool.Manager, *engine.Engine) {
	t.Helper()

	mgr := pool.NewManager(map[string]config.PoolConfig{
		"main": {Conn: config.ConnConfig{URL: filepath.Join(t.TempDir(), "api.db"), Max: 2}},
	})
	t.Cleanup(func() { mgr.Shutdown() })
	eng := engine.New(config.StatementsConfig{})

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			JWT:  config.JWTConfig{Secret: testSecret},
		},
		Logger:   logging.Discard(),
		Pools:    mgr,
		Engine:   eng,
		Migrator: migrator,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, mgr, eng
}

func testToken(t *testing.T) string {
	t.Helper()
	token, err := IssueToken(testSecret, "ops", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

// do sends a request through the router and decodes a JSON object body.
func do(t *testing.T, srv *Server, path, token string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding %s response %q: %v", path, rec.Body.String(), err)
	}
	return rec.Code, body
}

func createTable(t *testing.T, mgr *pool.Manager, eng *engine.Engine) {
	t.Helper()
	ctx := context.Background()
	conn, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer conn.Close()

	stmt := sqlbuild.Bound{SQL: "CREATE TABLE t_user (user_id INTEGER PRIMARY KEY, user_nm VARCHAR(50))"}
	if _, err := eng.Exec(ctx, conn, stmt); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if err := conn.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	mgr := pool.NewManager(nil)
	eng := engine.New(config.StatementsConfig{})

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Pools: mgr, Engine: eng}},
		{"no pools", Deps{Logger: logging.Discard(), Engine: eng}},
		{"no engine", Deps{Logger: logging.Discard(), Pools: mgr}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	code, body := do(t, srv, "/api/v1/health", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", code, body)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
	pools, _ := body["pools"].(map[string]any)
	if pools["main"] != "ok" {
		t.Errorf("pools[main] = %v, want ok", pools["main"])
	}
	stream, _ := body["stream"].(map[string]any)
	if stream["clients"] != float64(0) {
		t.Errorf("stream = %v, want no clients", stream)
	}
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHandleHealth_Components(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	srv.checks = map[string]Checker{
		"influxdb": fakeChecker{},
		"mqtt":     fakeChecker{err: errors.New("broker gone")},
	}

	code, body := do(t, srv, "/api/v1/health", "")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	components, _ := body["components"].(map[string]any)
	if components["influxdb"] != "ok" || components["mqtt"] != "unavailable" {
		t.Errorf("components = %v", components)
	}
}

func TestHandleHealth_UnreachablePool(t *testing.T) {
	mgr := pool.NewManager(map[string]config.PoolConfig{
		"broken": {Conn: config.ConnConfig{URL: filepath.Join(t.TempDir(), "missing", "x.db"), Max: 1}},
	})
	t.Cleanup(func() { mgr.Shutdown() })
	srv, err := New(Deps{Logger: logging.Discard(), Pools: mgr, Engine: engine.New(config.StatementsConfig{})})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	code, body := do(t, srv, "/api/v1/health", "")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestHandleHealth_BusyPoolIsHealthy(t *testing.T) {
	mgr := pool.NewManager(map[string]config.PoolConfig{
		"main": {Conn: config.ConnConfig{URL: filepath.Join(t.TempDir(), "busy.db"), Max: 1}},
	})
	t.Cleanup(func() { mgr.Shutdown() })
	srv, err := New(Deps{Logger: logging.Discard(), Pools: mgr, Engine: engine.New(config.StatementsConfig{})})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	held, err := mgr.Acquire(context.Background(), "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Close()

	code, body := do(t, srv, "/api/v1/health", "")
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	pools, _ := body["pools"].(map[string]any)
	if pools["main"] != "busy" {
		t.Errorf("pools[main] = %v, want busy", pools["main"])
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, "/api/v1/pools", tt.token)
			if code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", code)
			}
			if body["code"] != ErrCodeUnauthorized {
				t.Errorf("code = %v, want %s", body["code"], ErrCodeUnauthorized)
			}
		})
	}
}

func TestHandleListPools(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	code, body := do(t, srv, "/api/v1/pools", testToken(t))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", code, body)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
	pools, _ := body["pools"].([]any)
	if len(pools) != 1 {
		t.Fatalf("len(pools) = %d, want 1", len(pools))
	}
	first, _ := pools[0].(map[string]any)
	if first["name"] != "main" || first["max"] != float64(2) {
		t.Errorf("pools[0] = %v, want name main max 2", first)
	}
}

func TestHandleGetPool(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	token := testToken(t)

	code, body := do(t, srv, "/api/v1/pools/main", token)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["name"] != "main" {
		t.Errorf("name = %v, want main", body["name"])
	}

	code, body = do(t, srv, "/api/v1/pools/nope", token)
	if code != http.StatusNotFound {
		t.Errorf("unknown pool status = %d, want 404", code)
	}
	if body["code"] != ErrCodeNotFound {
		t.Errorf("code = %v, want %s", body["code"], ErrCodeNotFound)
	}
}

func TestHandleGetTable(t *testing.T) {
	srv, mgr, eng := newTestServer(t, nil)
	createTable(t, mgr, eng)
	token := testToken(t)

	code, body := do(t, srv, "/api/v1/pools/main/tables/t_user", token)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", code, body)
	}
	if body["dialect"] != "sqlite" {
		t.Errorf("dialect = %v, want sqlite", body["dialect"])
	}
	cols, _ := body["columns"].([]any)
	if len(cols) != 2 {
		t.Fatalf("len(columns) = %d, want 2", len(cols))
	}
	pk, _ := body["primary_key"].([]any)
	if len(pk) != 1 || pk[0] != "user_id" {
		t.Errorf("primary_key = %v, want [user_id]", pk)
	}

	code, _ = do(t, srv, "/api/v1/pools/main/tables/t_missing", token)
	if code != http.StatusNotFound {
		t.Errorf("missing table status = %d, want 404", code)
	}
}

func TestHandleMigrations_NotConfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	code, _ := do(t, srv, "/api/v1/pools/main/migrations", testToken(t))
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestHandleMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260118_120000_create_users.up.sql":  {Data: []byte("CREATE TABLE t_user (user_id INTEGER PRIMARY KEY);")},
		"m/20260119_090000_create_orders.up.sql": {Data: []byte("CREATE TABLE t_order (order_id INTEGER PRIMARY KEY);")},
	}
	migs, err := migrate.Load(fsys, "m")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	eng := engine.New(config.StatementsConfig{})
	srv, mgr, _ := newTestServer(t, migrate.New(eng, migs))

	ctx := context.Background()
	conn, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := migrate.New(eng, migs[:1]).Up(ctx, conn); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	conn.Close()

	code, body := do(t, srv, "/api/v1/pools/main/migrations", testToken(t))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", code, body)
	}
	applied, _ := body["applied"].([]any)
	pending, _ := body["pending"].([]any)
	if len(applied) != 1 || len(pending) != 1 {
		t.Fatalf("applied = %v, pending = %v, want one of each", applied, pending)
	}
	if p, _ := pending[0].(map[string]any); p["version"] != "20260119_090000" {
		t.Errorf("pending[0] = %v, want version 20260119_090000", p)
	}
}

func TestRequestID(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be generated")
	}
}

func TestStartAndClose(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
