package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 分发过程的 Prometheus 指标
//
//   - xpostr_upstream_attempts_total: 每次凭证尝试，按结果和错误分类
//   - xpostr_upstream_attempt_duration_seconds: 单次上游调用耗时
//   - xpostr_dispatch_total: 每次分发的最终结果
//   - xpostr_dispatch_attempts: 每次分发用掉的凭证数
type Metrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	dispatches      *prometheus.CounterVec
	attemptsPerCall prometheus.Histogram
}

// NewMetrics 创建指标并注册到给定 registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xpostr",
				Name:      "upstream_attempts_total",
				Help:      "Total upstream attempts by outcome and error kind",
			},
			[]string{"outcome", "kind"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "xpostr",
				Name:      "upstream_attempt_duration_seconds",
				Help:      "Upstream chat-completion call latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"model"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "xpostr",
				Name:      "dispatch_total",
				Help:      "Total dispatches by final result",
			},
			[]string{"result"},
		),
		attemptsPerCall: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "xpostr",
				Name:      "dispatch_attempts",
				Help:      "Credentials tried per dispatch",
				Buckets:   []float64{1, 2, 3, 5, 8, 13},
			},
		),
	}

	if registry != nil {
		registry.MustRegister(m.attempts, m.attemptDuration, m.dispatches, m.attemptsPerCall)
	}
	return m
}

func (m *Metrics) observeAttempt(a Attempt, model string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(a.Outcome), a.Kind).Inc()
	m.attemptDuration.WithLabelValues(model).Observe(a.Duration.Seconds())
}

func (m *Metrics) observeDispatch(result string, attempts int) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(result).Inc()
	if attempts > 0 {
		m.attemptsPerCall.Observe(float64(attempts))
	}
}
