// Package metrics exposes the Prometheus instrumentation for the session
// engine and sandbox provisioner (spec expansion component H).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jstsdebug_sessions_created_total",
		Help: "Total debug sessions created.",
	})
	sessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jstsdebug_sessions_closed_total",
		Help: "Total debug sessions closed.",
	})
	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jstsdebug_commands_executed_total",
		Help: "Total CDP commands executed, by method.",
	}, []string{"method"})
	commandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jstsdebug_command_errors_total",
		Help: "Total command execution errors, by class.",
	}, []string{"class"})
	quiescenceWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jstsdebug_quiescence_wait_seconds",
		Help:    "Time spent waiting for a session to quiesce.",
		Buckets: prometheus.DefBuckets,
	})
	provisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jstsdebug_provision_duration_seconds",
		Help:    "Time spent provisioning a sandboxed debuggee.",
		Buckets: prometheus.DefBuckets,
	})
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jstsdebug_active_sessions",
		Help: "Number of sessions currently registered.",
	})
)

func IncSessionsCreated()                      { sessionsCreated.Inc() }
func IncSessionsClosed()                       { sessionsClosed.Inc() }
func IncCommandsExecuted(method string)        { commandsExecuted.WithLabelValues(method).Inc() }
func IncCommandErrors(class string)            { commandErrors.WithLabelValues(class).Inc() }
func ObserveQuiescenceWait(seconds float64)    { quiescenceWait.Observe(seconds) }
func ObserveProvisionDuration(seconds float64) { provisionDuration.Observe(seconds) }
func SetActiveSessions(n int)                  { activeSessions.Set(float64(n)) }
