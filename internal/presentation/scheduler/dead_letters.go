package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"github.com/prometheus/client_golang/prometheus"
)

// DeadLetterMonitor periodically samples the dead-letter queue depth into a
// gauge and warns while requests are waiting there.
type DeadLetterMonitor struct {
	deadLetters interfaces.DeadLetters
	gauge       prometheus.Gauge
	cfg         config.MonitorConfig
	stop        chan struct{}
	done        chan struct{}
}

func NewDeadLetterMonitor(deadLetters interfaces.DeadLetters, gauge prometheus.Gauge, cfg config.MonitorConfig) *DeadLetterMonitor {
	return &DeadLetterMonitor{
		deadLetters: deadLetters,
		gauge:       gauge,
		cfg:         cfg,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (m *DeadLetterMonitor) Start(ctx context.Context) {
	slog.Info("Starting dead-letter monitor...", "interval", m.cfg.Interval)
	ticker := time.NewTicker(m.cfg.Interval)
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		ticker.Stop()
		cancel()
		close(m.done)
	}()

	m.sample(ctx)
	for {
		select {
		case <-ticker.C:
			m.sample(ctx)
		case <-m.stop:
			slog.Info("Stopping dead-letter monitor")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *DeadLetterMonitor) sample(ctx context.Context) {
	depth, err := m.deadLetters.DeadLetterDepth(ctx)
	if err != nil {
		slog.Error("error reading dead-letter queue depth", "err", err)
		return
	}
	m.gauge.Set(float64(depth))
	if depth > 0 {
		slog.Warn("deployment requests waiting in the dead-letter queue", "depth", depth)
		return
	}
	slog.Debug("dead-letter queue is empty")
}

// Stop must only be called after Start.
func (m *DeadLetterMonitor) Stop() {
	close(m.stop)
	<-m.done
}
