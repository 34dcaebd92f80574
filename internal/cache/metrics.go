package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet_worker",
			Name:      "cache_hits_total",
			Help:      "Requests answered from a cache partition.",
		},
		[]string{"class", "strategy"},
	)

	cacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet_worker",
			Name:      "cache_misses_total",
			Help:      "Requests that had to go to the network.",
		},
		[]string{"class", "strategy"},
	)

	cacheStoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "duet_worker",
			Name:      "cache_stores_total",
			Help:      "Responses written into a cache partition.",
		},
		[]string{"class"},
	)
)
