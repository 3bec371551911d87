package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_registry_entities",
		Help: "Number of tracked entities.",
	})
	mDirty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plaza_registry_updates_total",
		Help: "Number of local updates that marked an entity dirty.",
	})
	mEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_registry_events_total",
		Help: "Number of events dispatched to observers.",
	}, []string{"event"})
)
