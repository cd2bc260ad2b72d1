package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"homechat/contract"
	"homechat/observability"
)

// StatsWorker periodically logs relay counters and process self-stats.
// It is purely observational; losing a tick costs nothing.
type StatsWorker struct {
	log      *slog.Logger
	interval time.Duration
	stats    *observability.RelayStats
	registry contract.IRegistry
}

func NewStatsWorker(log *slog.Logger, interval time.Duration,
	stats *observability.RelayStats, registry contract.IRegistry) *StatsWorker {
	return &StatsWorker{log: log, interval: interval, stats: stats, registry: registry}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot := w.stats.GetLatest()
			rss, cpu := selfStats(p)
			w.log.Info("Relay stats",
				"online", w.registry.Count(),
				"joined", snapshot.ConnectionsJoined,
				"relayed", snapshot.EventsRelayed,
				"dropped", snapshot.EventsDropped,
				"persisted", snapshot.MessagesPersisted,
				"rss_mb", rss,
				"cpu_pct", cpu,
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64) {
	var rssMb uint64
	var cpuPct float64
	if mem, err := p.MemoryInfo(); err == nil {
		rssMb = mem.RSS / 1024 / 1024
	}
	if cpu, err := p.CPUPercent(); err == nil {
		cpuPct = cpu
	}
	return rssMb, cpuPct
}
