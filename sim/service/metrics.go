package service

import (
	"sync/atomic"
	"time"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
)

// RunMetrics counts simulation work across all sessions
type RunMetrics struct {
	Runs              int64
	Ticks             int64
	CollisionEvents   int64
	VehiclesSimulated int64
	VehiclesCollided  int64
	TotalRunNs        int64
}

// AddRun records a completed run
func (m *RunMetrics) AddRun(result *engine.RunResult, d time.Duration) {
	atomic.AddInt64(&m.Runs, 1)
	atomic.AddInt64(&m.Ticks, int64(len(result.Ticks)))
	atomic.AddInt64(&m.CollisionEvents, int64(len(result.Collisions)))
	atomic.AddInt64(&m.VehiclesSimulated, int64(len(result.Final)))
	atomic.AddInt64(&m.VehiclesCollided, int64(len(result.Collided())))
	atomic.AddInt64(&m.TotalRunNs, d.Nanoseconds())
}

// Snapshot returns a read-only copy suitable for JSON output
func (m *RunMetrics) Snapshot() map[string]any {
	runs := atomic.LoadInt64(&m.Runs)
	total := atomic.LoadInt64(&m.TotalRunNs)
	var avgMs float64
	if runs > 0 {
		avgMs = float64(total) / float64(runs) / 1e6
	}
	return map[string]any{
		"runs":               runs,
		"ticks":              atomic.LoadInt64(&m.Ticks),
		"collision_events":   atomic.LoadInt64(&m.CollisionEvents),
		"vehicles_simulated": atomic.LoadInt64(&m.VehiclesSimulated),
		"vehicles_collided":  atomic.LoadInt64(&m.VehiclesCollided),
		"avg_run_ms":         avgMs,
	}
}
