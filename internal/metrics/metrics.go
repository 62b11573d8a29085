package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubevents_events_recorded_total",
		Help: "Total number of events written to the event log, labelled by schema and action.",
	}, []string{"schema", "action"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubevents_events_rejected_total",
		Help: "Total number of events that failed validation or could not be written, labelled by reason.",
	}, []string{"reason"})

	EventsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubevents_events_filtered_total",
		Help: "Total number of events dropped because their schema is not in the allow list.",
	}, []string{"schema"})

	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubevents_config_reloads_total",
		Help: "Total number of config reload attempts, labelled by status.",
	}, []string{"status"})
)
