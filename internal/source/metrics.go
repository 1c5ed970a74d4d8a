package source

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/starford/dagaz/internal/apperr"
)

var (
	sourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dagaz",
		Subsystem: "source",
		Name:      "fetches_total",
		Help:      "Record source fetches broken down by view and result.",
	}, []string{"view", "result"})

	sourceFetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dagaz",
		Subsystem: "source",
		Name:      "fetch_seconds",
		Help:      "Latency of record source fetches.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"view"})

	sourceRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dagaz",
		Subsystem: "source",
		Name:      "records",
		Help:      "Records held by each mounted source.",
	}, []string{"view"})
)

func observeFetch(view string, err error, elapsed time.Duration) {
	result := "ok"
	var fe *apperr.FetchError
	switch {
	case err == nil:
	case errors.As(err, &fe) && fe.Status >= 500:
		result = "5xx"
	case errors.As(err, &fe) && fe.Status >= 400:
		result = "4xx"
	default:
		result = "error"
	}
	sourceFetches.WithLabelValues(view, result).Inc()
	sourceFetchLatency.WithLabelValues(view).Observe(elapsed.Seconds())
}
