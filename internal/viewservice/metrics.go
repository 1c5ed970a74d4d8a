package viewservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagaz",
			Subsystem: "views",
			Name:      "exports_total",
			Help:      "Grid exports by view, format and result.",
		},
		[]string{"view", "format", "result"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagaz",
			Subsystem: "review",
			Name:      "downloads_total",
			Help:      "Review document downloads by result.",
		},
		[]string{"result"},
	)

	returnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dagaz",
			Subsystem: "review",
			Name:      "returns_total",
			Help:      "Review document returns that reached the platform, by outcome.",
		},
		[]string{"result"},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
