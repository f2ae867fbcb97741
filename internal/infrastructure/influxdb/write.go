package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-dbcore/internal/engine"
	"github.com/nerrad567/gray-logic-dbcore/internal/pool"
)

// Measurement names.
const (
	measurementStatement = "db_statement"
	measurementPoolEvent = "db_pool_event"
	measurementPool      = "db_pool"
)

// Statement implements engine.Observer by writing one db_statement point.
func (c *Client) Statement(ev engine.StatementEvent) {
	outcome := "ok"
	switch {
	case ev.Err != nil:
		outcome = "error"
	case ev.Slow:
		outcome = "slow"
	}

	c.writePoint(measurementStatement,
		map[string]string{
			"pool":    poolTag(ev.Pool),
			"dialect": ev.Dialect,
			"kind":    ev.Kind,
			"outcome": outcome,
		},
		map[string]any{
			"elapsed_ms": float64(ev.Elapsed) / float64(time.Millisecond),
			"rows":       ev.Rows,
		},
		ev.Time,
	)
}

// PoolEvent implements pool.Observer by writing one db_pool_event point.
func (c *Client) PoolEvent(ev pool.Event) {
	c.writePoint(measurementPoolEvent,
		map[string]string{
			"pool": poolTag(ev.Pool),
			"kind": string(ev.Kind),
		},
		map[string]any{
			"conn_id": int64(ev.ConnID), // #nosec G115 -- serial ids stay far below MaxInt64
			"busy":    ev.Busy,
		},
		ev.Time,
	)
}

// WritePoolStats writes a db_pool occupancy point for every pool.
func (c *Client) WritePoolStats(stats []pool.Stats) {
	now := time.Now()
	for _, s := range stats {
		c.writePoint(measurementPool,
			map[string]string{"pool": s.Pool},
			map[string]any{
				"max":       s.Max,
				"idle":      s.Idle,
				"busy":      s.Busy,
				"acquired":  int64(s.Acquired),  // #nosec G115 -- counter
				"exhausted": int64(s.Exhausted), // #nosec G115 -- counter
			},
			now,
		)
	}
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

func poolTag(name string) string {
	if name == "" {
		return "direct"
	}
	return name
}
