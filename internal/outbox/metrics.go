package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet_worker",
			Name:      "outbox_enqueued_total",
			Help:      "Entries accepted into the outbox.",
		},
		[]string{"kind"},
	)

	entriesReplayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet_worker",
			Name:      "outbox_replayed_total",
			Help:      "Entries successfully replayed against the remote store.",
		},
		[]string{"kind"},
	)

	flushAbortsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "duet_worker",
			Name:      "outbox_flush_aborts_total",
			Help:      "Flush passes aborted on the first replay failure.",
		},
	)
)
