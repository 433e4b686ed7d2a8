package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Device manager metrics
var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devmgr_registrations_total",
		Help: "Node registrations by result",
	}, []string{"result"})

	driverTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devmgr_driver_transitions_total",
		Help: "Driver loads and unloads",
	}, []string{"action"})

	matchCandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devmgr_match_candidates_total",
		Help: "Candidate drivers scored during dynamic matching",
	}, []string{"selected"})

	matchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devmgr_match_score",
		Help:    "Scores returned by supports_device",
		Buckets: []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0},
	})

	liveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devmgr_nodes",
		Help: "Nodes currently attached to device trees",
	})
)
