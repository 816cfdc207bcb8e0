package bulk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bulk_jobs_submitted_total",
		Help: "Bulk invoice jobs accepted by the billing API.",
	})

	jobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_jobs_completed_total",
		Help: "Bulk jobs reaching terminal state, by cause (event, orders, timeout).",
	}, []string{"cause"})
)
