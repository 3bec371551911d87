package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "plaza_client_request_seconds",
		Help: "Time spent on remote requests.",
	}, []string{"method"})
	mRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plaza_client_request_errors",
		Help: "Number of remote requests that failed.",
	}, []string{"method"})
)
