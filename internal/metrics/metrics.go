// Package metrics собирает метрики гейтов, покрытия и проверок готовности.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "testgen"

// Interface определяет интерфейс для системы метрик
type Interface interface {
	// RecordStage записывает результат стадии гейта
	RecordStage(gate, stage, status string, duration time.Duration)

	// SetCoverage записывает процент покрытия по метрике
	SetCoverage(gate, metric string, percent float64)

	// RecordProbe записывает попытку проверки готовности
	RecordProbe(target string, ok bool)

	// RecordRelease записывает попытку публикации релиза
	RecordRelease(published bool)
}

// Metrics реализует Interface поверх собственного реестра Prometheus
type Metrics struct {
	registry      *prometheus.Registry
	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	coverage      *prometheus.GaugeVec
	probeTotal    *prometheus.CounterVec
	releaseTotal  *prometheus.CounterVec
}

var _ Interface = (*Metrics)(nil)

// New создает метрики на отдельном реестре
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		stageTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_stage_total",
			Help:      "Gate stages by final status.",
		}, []string{"gate", "stage", "status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_stage_duration_seconds",
			Help:      "Wall time of gate stages.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms .. ~27min
		}, []string{"gate", "stage"}),
		coverage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coverage_percent",
			Help:      "Last measured coverage percentage.",
		}, []string{"gate", "metric"}),
		probeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_probe_total",
			Help:      "Datastore readiness probe attempts.",
		}, []string{"target", "result"}),
		releaseTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_total",
			Help:      "Release step outcomes.",
		}, []string{"result"}),
	}
}

// RecordStage записывает результат стадии гейта
func (m *Metrics) RecordStage(gate, stage, status string, duration time.Duration) {
	m.stageTotal.WithLabelValues(gate, stage, status).Inc()
	if duration > 0 {
		m.stageDuration.WithLabelValues(gate, stage).Observe(duration.Seconds())
	}
}

// SetCoverage записывает процент покрытия по метрике
func (m *Metrics) SetCoverage(gate, metric string, percent float64) {
	m.coverage.WithLabelValues(gate, metric).Set(percent)
}

// RecordProbe записывает попытку проверки готовности
func (m *Metrics) RecordProbe(target string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.probeTotal.WithLabelValues(target, result).Inc()
}

// RecordRelease записывает попытку публикации релиза
func (m *Metrics) RecordRelease(published bool) {
	result := "skipped"
	if published {
		result = "published"
	}
	m.releaseTotal.WithLabelValues(result).Inc()
}

// Registry возвращает реестр для тестов и экспорта
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Nop метрики, которые ничего не записывают
type Nop struct{}

var _ Interface = Nop{}

func (Nop) RecordStage(string, string, string, time.Duration) {}
func (Nop) SetCoverage(string, string, float64)               {}
func (Nop) RecordProbe(string, bool)                          {}
func (Nop) RecordRelease(bool)                                {}
