package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
)

// Manager owns every named pool of the process. It is constructed once at
// startup and passed to whatever needs a connection.
//
// Thread Safety:
//   - Acquire, Stats, Names and Shutdown are safe for concurrent use.
//   - SetLogger and SetObserver must be called before the first Acquire.
type Manager struct {
	pools    map[string]*namedPool
	serial   atomic.Uint64
	closed   atomic.Bool
	logger   Logger
	observer Observer
}

// namedPool is the membership state of one pool. Every inspect-then-mutate
// of idle and busy happens under mu.
type namedPool struct {
	name string
	conn config.ConnConfig

	mu    sync.Mutex
	db    *sql.DB
	idle  map[uint64]*entry
	busy  map[uint64]*entry
	stats counters
}

type counters struct {
	acquired  uint64
	opened    uint64
	evicted   uint64
	discarded uint64
	exhausted uint64
}

// Stats is a point-in-time view of one pool.
type Stats struct {
	Pool      string
	Max       int
	Idle      int
	Busy      int
	Acquired  uint64
	Opened    uint64
	Evicted   uint64
	Discarded uint64
	Exhausted uint64
}

// Open returns the number of physical connections the pool tracks.
func (s Stats) Open() int { return s.Idle + s.Busy }

// NewManager creates a manager for the configured pools. No connection is
// opened until the first Acquire of each pool.
func NewManager(pools map[string]config.PoolConfig) *Manager {
	m := &Manager{
		pools:  make(map[string]*namedPool, len(pools)),
		logger: noopLogger{},
	}
	for name, pc := range pools {
		m.pools[name] = &namedPool{
			name: name,
			conn: pc.Conn,
			idle: make(map[uint64]*entry),
			busy: make(map[uint64]*entry),
		}
	}
	return m
}

// SetLogger sets the logger for the manager and the connections it hands out.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetObserver registers an observer for pool events.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

// Names returns the configured pool names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Acquire checks out a connection from the named pool.
//
// Idle connections are tried in serial order; one that fails its liveness
// check is evicted and the scan continues. With no usable idle connection a
// new one is opened if the pool is below its ceiling. At the ceiling Acquire
// fails immediately with ErrPoolExhausted; it never waits.
//
// The returned connection is inside an implicit transaction that begins with
// its first statement. Close rolls back whatever was not committed and
// returns the connection to the pool.
func (m *Manager) Acquire(ctx context.Context, name string) (*Conn, error) {
	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPoolNotConfigured, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []Event
	defer func() { m.emit(events) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	for _, id := range sortedIDs(p.idle) {
		e := p.idle[id]
		delete(p.idle, id)
		if err := e.ping(ctx); err != nil {
			e.discard() //nolint:errcheck // dead already
			p.stats.evicted++
			m.logger.Warn("evicting dead connection", "pool", p.name, "conn_id", id, "error", err)
			events = append(events, newEvent(p.name, EventEvicted, id, false, err))
			continue
		}
		p.busy[id] = e
		p.stats.acquired++
		return m.wrap(p, e), nil
	}

	if len(p.busy) >= p.conn.Max {
		p.stats.exhausted++
		events = append(events, newEvent(p.name, EventExhausted, 0, false, nil))
		return nil, fmt.Errorf("%w: %s has %d of %d connections checked out", ErrPoolExhausted, p.name, len(p.busy), p.conn.Max)
	}

	e, err := m.open(ctx, p)
	if err != nil {
		return nil, err
	}
	p.busy[e.id] = e
	p.stats.opened++
	p.stats.acquired++
	m.logger.Debug("opened connection", "pool", p.name, "conn_id", e.id, "dialect", e.dialect.Name())
	events = append(events, newEvent(p.name, EventOpened, e.id, true, nil))
	return m.wrap(p, e), nil
}

// open creates and registers a new physical connection. Called with p.mu held.
func (m *Manager) open(ctx context.Context, p *namedPool) (*entry, error) {
	if p.db == nil {
		driverName, dsn, err := dataSource(p.conn)
		if err != nil {
			return nil, fmt.Errorf("%w: pool %s: %w", ErrConnectFailed, p.name, err)
		}
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("%w: pool %s: %w", ErrConnectFailed, p.name, err)
		}
		// Every physical connection is held by this pool, never by database/sql.
		db.SetMaxOpenConns(p.conn.Max)
		db.SetMaxIdleConns(p.conn.Max)
		p.db = db
	}

	e, err := newEntry(ctx, p.db, m.serial.Add(1), p.name)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %s (%s): %w", ErrConnectFailed, p.name, redact(p.conn.URL), err)
	}
	return e, nil
}

func (m *Manager) wrap(p *namedPool, e *entry) *Conn {
	return &Conn{
		e:      e,
		policy: ReleaseToPool,
		pool:   p,
		mgr:    m,
		logger: m.logger,
	}
}

// release returns a checked-out entry. A healthy entry becomes idle and is
// immediately eligible for the next Acquire; an unhealthy one is dropped.
func (p *namedPool) release(m *Manager, e *entry, healthy bool, cause error) {
	p.mu.Lock()
	delete(p.busy, e.id)
	closed := m.closed.Load()
	switch {
	case closed:
		// Shutdown already closed it.
	case healthy:
		p.idle[e.id] = e
	default:
		p.stats.discarded++
	}
	p.mu.Unlock()

	if !healthy && !closed {
		m.emit([]Event{newEvent(p.name, EventDiscarded, e.id, false, cause)})
	}
}

// Stats returns a snapshot of the named pool.
func (m *Manager) Stats(name string) (Stats, error) {
	p, ok := m.pools[name]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrPoolNotConfigured, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Pool:      p.name,
		Max:       p.conn.Max,
		Idle:      len(p.idle),
		Busy:      len(p.busy),
		Acquired:  p.stats.acquired,
		Opened:    p.stats.opened,
		Evicted:   p.stats.evicted,
		Discarded: p.stats.discarded,
		Exhausted: p.stats.exhausted,
	}, nil
}

// Shutdown rolls back and physically closes every connection of every pool,
// including checked-out ones, then clears all pool state. A checked-out
// connection is logged as a warning; its later Close is a no-op.
//
// It is meant for process teardown. Subsequent Acquire calls fail with
// ErrManagerClosed. Calling Shutdown twice is a no-op.
func (m *Manager) Shutdown() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	var events []Event
	for _, name := range m.Names() {
		p := m.pools[name]

		p.mu.Lock()
		for _, id := range sortedIDs(p.busy) {
			m.logger.Warn("closing checked-out connection at shutdown", "pool", p.name, "conn_id", id)
			if err := p.busy[id].discard(); err != nil {
				errs = append(errs, fmt.Errorf("pool %s conn %d: %w", p.name, id, err))
			}
			events = append(events, newEvent(p.name, EventShutdown, id, true, nil))
		}
		for _, id := range sortedIDs(p.idle) {
			if err := p.idle[id].discard(); err != nil {
				errs = append(errs, fmt.Errorf("pool %s conn %d: %w", p.name, id, err))
			}
			events = append(events, newEvent(p.name, EventShutdown, id, false, nil))
		}
		p.idle = make(map[uint64]*entry)
		p.busy = make(map[uint64]*entry)
		if p.db != nil {
			if err := p.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("pool %s: %w", p.name, err))
			}
			p.db = nil
		}
		p.mu.Unlock()
	}

	m.emit(events)
	m.logger.Info("connection pools shut down", "pools", len(m.pools))
	return errors.Join(errs...)
}

func (m *Manager) emit(events []Event) {
	if m.observer == nil {
		return
	}
	for _, e := range events {
		m.observer.PoolEvent(e)
	}
}

func newEvent(pool string, kind EventKind, id uint64, busy bool, err error) Event {
	return Event{Pool: pool, Kind: kind, ConnID: id, Busy: busy, Err: err, Time: time.Now()}
}

// sortedIDs returns the serial ids of set in ascending order.
func sortedIDs(set map[uint64]*entry) []uint64 {
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
