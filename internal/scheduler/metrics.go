package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	phasesTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_journey_phases_triggered_total",
		Help: "Journey phases handed to the orchestration engine.",
	})
	startupsLaunched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_startups_launched_total",
		Help: "Startups that completed the final journey day.",
	})
)
