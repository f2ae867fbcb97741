package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-dbcore/internal/pool"
)

// healthCheckTimeout bounds the liveness probe of each pool.
const healthCheckTimeout = 5 * time.Second

// poolResponse is the JSON form of pool.Stats.
type poolResponse struct {
	Name      string `json:"name"`
	Max       int    `json:"max"`
	Idle      int    `json:"idle"`
	Busy      int    `json:"busy"`
	Acquired  uint64 `json:"acquired"`
	Opened    uint64 `json:"opened"`
	Evicted   uint64 `json:"evicted"`
	Discarded uint64 `json:"discarded"`
	Exhausted uint64 `json:"exhausted"`
}

func newPoolResponse(st pool.Stats) poolResponse {
	return poolResponse{
		Name:      st.Pool,
		Max:       st.Max,
		Idle:      st.Idle,
		Busy:      st.Busy,
		Acquired:  st.Acquired,
		Opened:    st.Opened,
		Evicted:   st.Evicted,
		Discarded: st.Discarded,
		Exhausted: st.Exhausted,
	}
}

// columnResponse is one column of a table response.
type columnResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// handleHealth probes every pool and infrastructure component concurrently.
// A pool at its ceiling is reported as busy rather than failed.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	names := s.pools.Names()
	pools := make([]string, len(names))
	components := make(map[string]string, len(s.checks))
	var mu sync.Mutex

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			pools[i] = s.probe(ctx, name)
			return nil
		})
	}
	for name, c := range s.checks {
		g.Go(func() error {
			state := "ok"
			if err := c.HealthCheck(ctx); err != nil {
				s.logger.Warn("component health check failed", "component", name, "error", err)
				state = "unavailable"
			}
			mu.Lock()
			components[name] = state
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // probes never return errors

	status, code := "ok", http.StatusOK
	byName := make(map[string]string, len(names))
	for i, name := range names {
		byName[name] = pools[i]
		if pools[i] != "ok" && pools[i] != "busy" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	for _, state := range components {
		if state != "ok" {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"pools":      byName,
		"components": components,
		"stream": map[string]any{
			"clients": s.hub.Clients(),
			"dropped": s.hub.Dropped(),
		},
	})
}

// probe checks out a connection and runs the dialect's liveness query.
func (s *Server) probe(ctx context.Context, name string) string {
	conn, err := s.pools.Acquire(ctx, name)
	if err != nil {
		if isExhausted(err) {
			return "busy"
		}
		s.logger.Warn("pool health probe failed", "pool", name, "error", err)
		return "unavailable"
	}
	defer conn.Close() //nolint:errcheck // read-only probe

	if err := conn.HealthCheck(ctx); err != nil {
		s.logger.Warn("pool health probe failed", "pool", name, "error", err)
		return "unavailable"
	}
	return "ok"
}

// handleListPools returns the statistics of every pool.
func (s *Server) handleListPools(w http.ResponseWriter, r *http.Request) {
	names := s.pools.Names()
	out := make([]poolResponse, 0, len(names))
	for _, name := range names {
		st, err := s.pools.Stats(name)
		if err != nil {
			s.writeDBError(w, r, err)
			return
		}
		out = append(out, newPoolResponse(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pools": out,
		"count": len(out),
	})
}

// handleGetPool returns the statistics of one pool.
func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	st, err := s.pools.Stats(chi.URLParam(r, "pool"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(st))
}

// handleGetTable returns the columns and primary key of a table as the
// engine reads them from the catalog.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	conn, err := s.pools.Acquire(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	defer conn.Close() //nolint:errcheck // read-only request

	t, err := s.engine.TableInfo(r.Context(), conn, chi.URLParam(r, "table"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}

	cols := make([]columnResponse, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = columnResponse{Name: c.Name, Type: c.Type.String()}
	}
	pk := t.PrimaryKey
	if pk == nil {
		pk = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":        conn.Pool(),
		"dialect":     conn.Dialect().Name(),
		"table":       t.Name,
		"columns":     cols,
		"primary_key": pk,
	})
}

// handleMigrations returns the applied and pending migrations of a pool.
func (s *Server) handleMigrations(w http.ResponseWriter, r *http.Request) {
	if s.migrator == nil {
		writeNotFound(w, "migrations are not configured")
		return
	}

	conn, err := s.pools.Acquire(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}
	defer conn.Close() //nolint:errcheck // read-only request

	applied, pending, err := s.migrator.Status(r.Context(), conn)
	if err != nil {
		s.writeDBError(w, r, err)
		return
	}

	type appliedResponse struct {
		Version   string    `json:"version"`
		Name      string    `json:"name"`
		AppliedAt time.Time `json:"applied_at"`
	}
	type pendingResponse struct {
		Version string `json:"version"`
		Name    string `json:"name"`
	}

	a := make([]appliedResponse, len(applied))
	for i, rec := range applied {
		a[i] = appliedResponse{Version: rec.Version, Name: rec.Name, AppliedAt: rec.AppliedAt}
	}
	p := make([]pendingResponse, len(pending))
	for i, mig := range pending {
		p[i] = pendingResponse{Version: mig.Version, Name: mig.Name}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":    conn.Pool(),
		"applied": a,
		"pending": p,
	})
}
