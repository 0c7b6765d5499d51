package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Name:      "uploads_total",
		Help:      "Documents successfully ingested and summarized.",
	})
	chatsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Name:      "chats_total",
		Help:      "Chat questions answered.",
	})
	sessionsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Name:      "sessions_evicted_total",
		Help:      "Sessions evicted by the TTL sweep.",
	})
	upstreamFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docchat",
		Name:      "upstream_failures_total",
		Help:      "Embedding/completion provider failures.",
	})
)
