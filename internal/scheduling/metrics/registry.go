package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/scheduling/staleness"
)

var statuses = []domain.Status{domain.StatusLive, domain.StatusDegraded, domain.StatusDead, domain.StatusGated}

// RecordRegistry refreshes the population gauges from reg.
func RecordRegistry(reg *domain.Registry, now time.Time) {
	counts := reg.CountByStatus()
	for _, s := range statuses {
		RecordsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}

	report := staleness.Build(reg, 0, now)
	for _, b := range staleness.Brackets {
		RecordsByBracket.WithLabelValues(string(b)).Set(float64(report.Brackets[b]))
	}
}

// RecordRun marks command as completed at now.
func RecordRun(command string, now time.Time) {
	LastRunTimestamp.WithLabelValues(command).Set(float64(now.Unix()))
}

// PushConfig holds Pushgateway settings.
type PushConfig struct {
	URL string `yaml:"pushgateway_url"`
	Job string `yaml:"job"`
}

// Push sends the default registry to a Pushgateway. A blank URL is a no-op,
// so cron runs without a gateway configured pay nothing.
func Push(ctx context.Context, cfg PushConfig, instance string) error {
	if cfg.URL == "" {
		return nil
	}
	job := cfg.Job
	if job == "" {
		job = "pinwatch"
	}

	pusher := push.New(cfg.URL, job).Gatherer(prometheus.DefaultGatherer)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
