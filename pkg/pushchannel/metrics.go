package pushchannel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pushchannel_events_dispatched_total",
		Help: "Decoded push-channel events dispatched to handlers, by type.",
	}, []string{"event_type"})

	messagesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pushchannel_messages_discarded_total",
		Help: "Channel messages dropped at the decode boundary (heartbeats, unknown types, malformed payloads).",
	})
)
