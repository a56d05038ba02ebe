package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const defaultHealthInterval = 30 * time.Second

// Gauge reads one figure of the daemon, such as the live listener count.
type Gauge struct {
	Name string
	Read func() int
}

// HealthReport is one sample of the daemon process and its gauges.
type HealthReport struct {
	RSS        uint64
	CPUPercent float64
	Status     string
	Gauges     map[string]int
}

// HealthMonitoringWorker periodically logs resource usage of the daemon
// process together with the registered gauges.
type HealthMonitoringWorker struct {
	log      *slog.Logger
	interval time.Duration
	gauges   []Gauge
}

func NewHealthMonitoringWorker(log *slog.Logger, interval time.Duration, gauges ...Gauge) *HealthMonitoringWorker {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthMonitoringWorker{log: log, interval: interval, gauges: gauges}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			report, err := w.collect(p)
			if err != nil {
				w.log.Warn("Failed to collect self stats", "error", err)
				continue
			}
			attrs := []any{"rss", report.RSS, "cpu", report.CPUPercent, "status", report.Status}
			for name, value := range report.Gauges {
				attrs = append(attrs, name, value)
			}
			w.log.Info("Health", attrs...)
		}
	}
}

func (w *HealthMonitoringWorker) collect(p *process.Process) (HealthReport, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return HealthReport{}, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return HealthReport{}, err
	}
	status, err := p.Status()
	if err != nil {
		return HealthReport{}, err
	}

	report := HealthReport{RSS: memInfo.RSS, CPUPercent: cpu, Status: status, Gauges: make(map[string]int, len(w.gauges))}
	for _, g := range w.gauges {
		report.Gauges[g.Name] = g.Read()
	}
	return report, nil
}
