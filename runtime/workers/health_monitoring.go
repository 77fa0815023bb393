package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"panel-lab/observability"
)

// HealthMonitoringWorker samples the server process's own CPU and RSS
// usage and feeds the monitoring manager, so the debug endpoint reports
// OS-level figures alongside the Go runtime ones.
type HealthMonitoringWorker struct {
	log        *slog.Logger
	monitoring *observability.Manager
	interval   time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, monitoring *observability.Manager,
	interval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	w.log.Info("Starting health monitoring worker", "interval", w.interval)

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cpu, rss, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitoring.SetProcessStats(cpu, rss/1024/1024)
		}
	}
}

func selfStats(p *process.Process) (float64, uint64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return cpuPercent, memInfo.RSS, nil
}
