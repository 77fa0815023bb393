// Package observability aggregates runtime counters for the debug
// surface. Counters are cheap atomics bumped on the hot path; snapshots
// are computed on demand.
package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the point-in-time snapshot served by the debug endpoint.
type Stats struct {
	Turns             uint64  `json:"turns"`
	Generations       uint64  `json:"generations"`
	FailedGenerations uint64  `json:"failed_generations"`
	ActiveStreams     int64   `json:"active_streams"`
	GenerationsPerSec float64 `json:"generations_per_sec"`

	AllocMemMb uint64 `json:"alloc_mem_mb"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`

	CPUPercent float64 `json:"cpu_percent"`
	RSSMb      uint64  `json:"rss_mb"`
}

// Manager owns the counters. One instance per process, shared by the
// orchestrator, the HTTP layer and the health worker.
type Manager struct {
	turns             atomic.Uint64
	generations       atomic.Uint64
	failedGenerations atomic.Uint64
	activeStreams     atomic.Int64

	mu          sync.Mutex
	lastSnap    time.Time
	lastGenSeen uint64

	procMu     sync.RWMutex
	cpuPercent float64
	rssMb      uint64
}

func NewManager() *Manager {
	return &Manager{lastSnap: time.Now()}
}

func (m *Manager) IncrTurns()             { m.turns.Add(1) }
func (m *Manager) IncrGenerations()       { m.generations.Add(1) }
func (m *Manager) IncrFailedGenerations() { m.failedGenerations.Add(1) }

func (m *Manager) StreamOpened() { m.activeStreams.Add(1) }
func (m *Manager) StreamClosed() { m.activeStreams.Add(-1) }

func (m *Manager) ActiveStreams() int64 { return m.activeStreams.Load() }

// SetProcessStats is fed by the health worker; the sampled values stick
// until the next sample.
func (m *Manager) SetProcessStats(cpuPercent float64, rssMb uint64) {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	m.cpuPercent = cpuPercent
	m.rssMb = rssMb
}

// Snapshot computes the current stats. The generation rate is measured
// over the window since the previous snapshot.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	now := time.Now()
	window := now.Sub(m.lastSnap).Seconds()
	gens := m.generations.Load()
	var rate float64
	if window > 0 {
		rate = float64(gens-m.lastGenSeen) / window
	}
	m.lastSnap = now
	m.lastGenSeen = gens
	m.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.procMu.RLock()
	cpu, rss := m.cpuPercent, m.rssMb
	m.procMu.RUnlock()

	return Stats{
		Turns:             m.turns.Load(),
		Generations:       gens,
		FailedGenerations: m.failedGenerations.Load(),
		ActiveStreams:     m.activeStreams.Load(),
		GenerationsPerSec: rate,
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		Goroutines:        runtime.NumGoroutine(),
		CPUPercent:        cpu,
		RSSMb:             rss,
	}
}
