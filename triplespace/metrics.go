package triplespace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_triplespace_reconciled_total",
		Help: "Number of loaded records applied to the registry, by outcome.",
	}, []string{"result"})
	mUpstream = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_triplespace_upstream_writes_total",
		Help: "Number of changes pushed to the remote store.",
	}, []string{"method", "status"})
	mPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plaza_triplespace_upstream_pending",
		Help: "Number of upstream writes in flight.",
	})
)
