package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	retriesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoice_retries_started_total",
		Help: "Manual invoice retries issued to the billing API.",
	})

	retriesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_retries_resolved_total",
		Help: "Retries resolved by a push-channel event, by outcome.",
	}, []string{"outcome"})
)
