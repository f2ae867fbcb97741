package pool

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
)

// testDSN returns a file-backed SQLite URL; every physical connection of a
// pool sees the same database.
func testDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "pool.db")
}

// newTestManager creates a manager with one pool "main" of the given size.
func newTestManager(t *testing.T, max int) *Manager {
	t.Helper()
	mgr := NewManager(map[string]config.PoolConfig{
		"main": {Conn: config.ConnConfig{URL: testDSN(t), Max: max}},
	})
	t.Cleanup(func() { mgr.Shutdown() })
	return mgr
}

// recorder is an Observer that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) PoolEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func TestAcquire_MaxOneScenario(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 1)

	first, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := mgr.Acquire(ctx, "main"); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("second Acquire() error = %v, want ErrPoolExhausted", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	again, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() after Close error = %v", err)
	}
	defer again.Close()

	if again.ID() != first.ID() {
		t.Errorf("Acquire() after Close got conn %d, want reused conn %d", again.ID(), first.ID())
	}

	s, err := mgr.Stats("main")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.Opened != 1 || s.Acquired != 2 || s.Exhausted != 1 || s.Busy != 1 || s.Idle != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestAcquire_UnknownPool(t *testing.T) {
	mgr := newTestManager(t, 1)

	if _, err := mgr.Acquire(context.Background(), "missing"); !errors.Is(err, ErrPoolNotConfigured) {
		t.Errorf("Acquire() error = %v, want ErrPoolNotConfigured", err)
	}
	if _, err := mgr.Stats("missing"); !errors.Is(err, ErrPoolNotConfigured) {
		t.Errorf("Stats() error = %v, want ErrPoolNotConfigured", err)
	}
}

func TestAcquire_ConnectFailure(t *testing.T) {
	mgr := NewManager(map[string]config.PoolConfig{
		"broken": {Conn: config.ConnConfig{URL: "/nonexistent/dir/x.db", Max: 1}},
	})
	defer mgr.Shutdown()

	if _, err := mgr.Acquire(context.Background(), "broken"); !errors.Is(err, ErrConnectFailed) {
		t.Errorf("Acquire() error = %v, want ErrConnectFailed", err)
	}
	if s, _ := mgr.Stats("broken"); s.Open() != 0 {
		t.Errorf("failed open left %d connections registered", s.Open())
	}
}

func TestAcquire_NoDoubleCheckout(t *testing.T) {
	const (
		max     = 4
		workers = 16
		rounds  = 50
	)
	mgr := newTestManager(t, max)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		inUse    = map[uint64]bool{}
		failures []string
		wg       sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				c, err := mgr.Acquire(ctx, "main")
				if errors.Is(err, ErrPoolExhausted) {
					continue
				}
				if err != nil {
					mu.Lock()
					failures = append(failures, err.Error())
					mu.Unlock()
					return
				}

				mu.Lock()
				if inUse[c.ID()] {
					failures = append(failures, "conn checked out twice")
				}
				inUse[c.ID()] = true
				mu.Unlock()

				mu.Lock()
				delete(inUse, c.ID())
				mu.Unlock()
				c.Close()
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("concurrent acquire failures: %v", failures)
	}
	s, _ := mgr.Stats("main")
	if s.Open() > max {
		t.Errorf("pool grew to %d connections, max %d", s.Open(), max)
	}
	if s.Busy != 0 {
		t.Errorf("Stats().Busy = %d after all releases", s.Busy)
	}
}

func TestConn_CloseRollsBackUncommittedWork(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 2)

	setup, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := setup.ExecContext(ctx, `CREATE TABLE t_item (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table error = %v", err)
	}
	if err := setup.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if _, err := setup.ExecContext(ctx, `INSERT INTO t_item (id) VALUES ('kept')`); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	if err := setup.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := setup.ExecContext(ctx, `INSERT INTO t_item (id) VALUES ('dropped')`); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	if err := setup.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	check, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer check.Close()

	rows, err := check.QueryContext(ctx, `SELECT id FROM t_item ORDER BY id`)
	if err != nil {
		t.Fatalf("select error = %v", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		ids = append(ids, id)
	}
	if len(ids) != 1 || ids[0] != "kept" {
		t.Errorf("rows after release = %v, want [kept]", ids)
	}
}

func TestConn_ExplicitRollback(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 1)

	c, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer c.Close()

	if _, err := c.ExecContext(ctx, `CREATE TABLE t_a (x INTEGER)`); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if err := c.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if err := c.Rollback(); err != nil {
		t.Errorf("Rollback() with no transaction error = %v", err)
	}
	if _, err := c.ExecContext(ctx, `INSERT INTO t_a (x) VALUES (1)`); err == nil {
		t.Error("table survived Rollback()")
	}
}

func TestConn_DoubleCloseAndUseAfterClose(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 1)

	c, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := c.ExecContext(ctx, "SELECT 1"); !errors.Is(err, ErrConnClosed) {
		t.Errorf("ExecContext() after Close error = %v, want ErrConnClosed", err)
	}
	if err := c.Commit(); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Commit() after Close error = %v, want ErrConnClosed", err)
	}

	s, _ := mgr.Stats("main")
	if s.Idle != 1 || s.Busy != 0 {
		t.Errorf("double Close changed membership: %+v", s)
	}
}

// brokenTx is a transaction whose rollback reports a failure after really
// ending the transaction, like a connection that dropped mid-rollback.
type brokenTx struct {
	txn
}

func (b brokenTx) Rollback() error {
	b.txn.Rollback() //nolint:errcheck // the failure below is what matters
	return errors.New("connection reset by peer")
}

func TestConn_CloseDiscardsWhenRollbackFails(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 1)
	rec := &recorder{}
	mgr.SetObserver(rec)

	c, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	brokenID := c.ID()
	if _, err := c.ExecContext(ctx, `CREATE TABLE t_b (x INTEGER)`); err != nil {
		t.Fatalf("create error = %v", err)
	}
	c.e.mu.Lock()
	c.e.tx = brokenTx{txn: c.e.tx}
	c.e.mu.Unlock()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil when the discard succeeds", err)
	}

	s, _ := mgr.Stats("main")
	if s.Discarded != 1 {
		t.Errorf("Stats().Discarded = %d, want 1", s.Discarded)
	}
	if s.Idle != 0 || s.Busy != 0 {
		t.Errorf("broken connection kept: %+v", s)
	}

	next, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() after discard error = %v", err)
	}
	defer next.Close()
	if next.ID() == brokenID {
		t.Errorf("Acquire() reused discarded connection %d", brokenID)
	}
	if _, err := next.ExecContext(ctx, `INSERT INTO t_b (x) VALUES (1)`); err == nil {
		t.Error("uncommitted table survived the failed release")
	}

	kinds := rec.kinds()
	want := []EventKind{EventOpened, EventDiscarded, EventOpened}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("events = %v, want %v", kinds, want)
			break
		}
	}
}

func TestAcquire_EvictsDeadIdleConnection(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 2)
	rec := &recorder{}
	mgr.SetObserver(rec)

	c, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	deadID := c.ID()
	c.Close()

	// Kill the idle connection behind the pool's back.
	p := mgr.pools["main"]
	p.mu.Lock()
	p.idle[deadID].discard()
	p.mu.Unlock()

	fresh, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer fresh.Close()

	if fresh.ID() == deadID {
		t.Errorf("Acquire() returned the dead connection %d", deadID)
	}

	s, _ := mgr.Stats("main")
	if s.Evicted != 1 || s.Opened != 2 || s.Open() != 1 {
		t.Errorf("Stats() = %+v", s)
	}

	kinds := rec.kinds()
	want := []EventKind{EventOpened, EventEvicted, EventOpened}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("events = %v, want %v", kinds, want)
			break
		}
	}
}

func TestShutdown(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 2)
	rec := &recorder{}
	mgr.SetObserver(rec)

	busy, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := busy.ExecContext(ctx, `CREATE TABLE t_b (x INTEGER)`); err != nil {
		t.Fatalf("create error = %v", err)
	}
	idle, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	idle.Close()

	if err := mgr.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := mgr.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}

	if err := busy.Close(); err != nil {
		t.Errorf("Close() after Shutdown error = %v", err)
	}
	if _, err := mgr.Acquire(ctx, "main"); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Acquire() after Shutdown error = %v, want ErrManagerClosed", err)
	}

	s, _ := mgr.Stats("main")
	if s.Open() != 0 {
		t.Errorf("Stats() after Shutdown = %+v", s)
	}

	shutdowns := 0
	for _, k := range rec.kinds() {
		if k == EventShutdown {
			shutdowns++
		}
	}
	if shutdowns != 2 {
		t.Errorf("shutdown events = %d, want 2", shutdowns)
	}
}

func TestOpenDirect(t *testing.T) {
	ctx := context.Background()
	cfg := config.ConnConfig{URL: testDSN(t)}

	c, err := OpenDirect(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenDirect() error = %v", err)
	}
	if c.Policy() != ReleaseClose || c.Pool() != "" {
		t.Errorf("OpenDirect() policy = %s, pool = %q", c.Policy(), c.Pool())
	}
	if c.Dialect().Name() != "sqlite" {
		t.Errorf("Dialect() = %s, want sqlite", c.Dialect().Name())
	}
	if err := c.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if _, err := c.ExecContext(ctx, `CREATE TABLE t_d (x INTEGER)`); err != nil {
		t.Fatalf("create error = %v", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := c.ExecContext(ctx, `INSERT INTO t_d (x) VALUES (1)`); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	again, err := OpenDirect(ctx, cfg)
	if err != nil {
		t.Fatalf("OpenDirect() error = %v", err)
	}
	defer again.Close()
	if again.ID() == c.ID() {
		t.Error("direct connections share a serial id")
	}

	rows, err := again.QueryContext(ctx, `SELECT count(*) FROM t_d`)
	if err != nil {
		t.Fatalf("select error = %v", err)
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		rows.Scan(&n)
	}
	if n != 0 {
		t.Errorf("uncommitted insert survived a direct Close: count = %d", n)
	}
}

func TestOpenDirect_UnknownDriver(t *testing.T) {
	_, err := OpenDirect(context.Background(), config.ConnConfig{URL: "db2://host/db"})
	if !errors.Is(err, ErrConnectFailed) {
		t.Errorf("OpenDirect() error = %v, want ErrConnectFailed", err)
	}
}

func TestManager_Names(t *testing.T) {
	mgr := NewManager(map[string]config.PoolConfig{
		"b": {Conn: config.ConnConfig{URL: ":memory:", Max: 1}},
		"a": {Conn: config.ConnConfig{URL: ":memory:", Max: 1}},
	})
	names := mgr.Names()
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("Names() = %v", names)
	}
}

func TestMultiObserver(t *testing.T) {
	ctx := context.Background()
	mgr := newTestManager(t, 1)
	a, b := &recorder{}, &recorder{}
	var calls int
	mgr.SetObserver(MultiObserver{a, nil, ObserverFunc(func(Event) { calls++ }), b})

	conn, err := mgr.Acquire(ctx, "main")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer conn.Close()
	if _, err := mgr.Acquire(ctx, "main"); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Acquire() error = %v, want ErrPoolExhausted", err)
	}

	want := []EventKind{EventOpened, EventExhausted}
	for _, r := range []*recorder{a, b} {
		got := r.kinds()
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("events = %v, want %v", got, want)
		}
	}
	if calls != 2 {
		t.Errorf("ObserverFunc called %d times, want 2", calls)
	}
}
