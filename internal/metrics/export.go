package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "folioforge",
			Subsystem: "export",
			Name:      "documents_total",
			Help:      "文档导出次数，按格式与结果区分。",
		},
		[]string{"format", "outcome"},
	)

	exportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "folioforge",
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "文档导出耗时分布（秒）。",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"format"},
	)

	watermarkTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "folioforge",
			Subsystem: "export",
			Name:      "watermarked_total",
			Help:      "带水印导出的次数。",
		},
	)

	aiCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "folioforge",
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "AI 调用次数，按功能与结果区分。",
		},
		[]string{"feature", "outcome"},
	)
)

// ObserveExport 记录一次导出。
func ObserveExport(format string, err error, watermarked bool, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	exportTotal.WithLabelValues(format, outcome).Inc()
	exportDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	if err == nil && watermarked {
		watermarkTotal.Inc()
	}
}

// ObserveAICall 记录一次 AI 调用。
func ObserveAICall(feature string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiCallsTotal.WithLabelValues(feature, outcome).Inc()
}
