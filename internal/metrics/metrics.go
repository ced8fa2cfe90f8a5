package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waypoint_commands_dispatched_total",
		Help: "Commands accepted by the broker, by command name.",
	}, []string{"command"})

	dispatchRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waypoint_dispatch_rejected_total",
		Help: "Dispatch attempts rejected before publish, by reason.",
	}, []string{"reason"})

	publishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waypoint_publish_failures_total",
		Help: "Publishes the broker rejected or never received.",
	})

	uplinksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waypoint_uplinks_processed_total",
		Help: "Device uplinks parsed and persisted.",
	})

	uplinksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waypoint_uplinks_dropped_total",
		Help: "Uplinks dropped because the worker queue was full.",
	})

	correlations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waypoint_command_correlations_total",
		Help: "Commands marked delivered, by correlation mode (ack or heuristic).",
	}, []string{"mode"})

	analyticsQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waypoint_analytics_queries_total",
		Help: "Analytics queries served, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		commandsDispatched,
		dispatchRejected,
		publishFailures,
		uplinksProcessed,
		uplinksDropped,
		correlations,
		analyticsQueries,
	)
}

func IncCommandDispatched(command string) { commandsDispatched.WithLabelValues(command).Inc() }
func IncDispatchRejected(reason string)   { dispatchRejected.WithLabelValues(reason).Inc() }
func IncPublishFailure()                  { publishFailures.Inc() }
func IncUplinkProcessed()                 { uplinksProcessed.Inc() }
func IncUplinkDropped()                   { uplinksDropped.Inc() }
func IncCorrelation(mode string)          { correlations.WithLabelValues(mode).Inc() }
func IncAnalyticsQuery(kind string)       { analyticsQueries.WithLabelValues(kind).Inc() }
