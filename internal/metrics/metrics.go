// Package metrics exposes coordinator and command measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "saic"

// Recorder implements coordinator.Recorder on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	polls          *prometheus.CounterVec
	pollDuration   *prometheus.HistogramVec
	fetchFailures  *prometheus.CounterVec
	genericReplies *prometheus.CounterVec
	commands       *prometheus.CounterVec
	interval       *prometheus.GaugeVec
	mode           *prometheus.GaugeVec
	actionActive   *prometheus.GaugeVec
}

// New creates a Recorder with its collectors registered. Go runtime and
// process collectors are included.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of poll cycles by result.",
			},
			[]string{"vin", "result"}, // result: success/partial/auth_error/cancelled
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Duration of poll cycles including retries.",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 15, 30, 60, 120},
			},
			[]string{"vin"},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Failed fetch attempts, including generic responses that were retried.",
			},
			[]string{"vin", "payload"},
		),
		genericReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generic_responses_total",
				Help:      "Responses rejected as placeholder data.",
			},
			[]string{"vin", "payload"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Vehicle commands sent by action and status.",
			},
			[]string{"vin", "action", "status"}, // status: success/failed/unsupported
		),
		interval: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "update_interval_seconds",
				Help:      "Currently active polling interval.",
			},
			[]string{"vin"},
		),
		mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduler_mode",
				Help:      "Rule that selected the interval (1 for the active mode).",
			},
			[]string{"vin", "mode"},
		),
		actionActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "action_refresh_active",
				Help:      "Whether an action refresh sequence owns the schedule (1=active).",
			},
			[]string{"vin"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.polls,
		r.pollDuration,
		r.fetchFailures,
		r.genericReplies,
		r.commands,
		r.interval,
		r.mode,
		r.actionActive,
	)
	return r
}

// Registry returns the registry the collectors live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObservePoll(vin, result string, duration time.Duration) {
	r.polls.WithLabelValues(vin, result).Inc()
	r.pollDuration.WithLabelValues(vin).Observe(duration.Seconds())
}

func (r *Recorder) ObserveFetchAttempt(vin, payload string, err error) {
	if err == nil {
		return
	}
	r.fetchFailures.WithLabelValues(vin, payload).Inc()
}

func (r *Recorder) ObserveGeneric(vin, payload string) {
	r.genericReplies.WithLabelValues(vin, payload).Inc()
}

// SetInterval records the interval and flips the mode gauge so that exactly
// one mode reads 1 for the vehicle.
func (r *Recorder) SetInterval(vin string, interval time.Duration, mode string) {
	r.interval.WithLabelValues(vin).Set(interval.Seconds())
	r.mode.DeletePartialMatch(prometheus.Labels{"vin": vin})
	r.mode.WithLabelValues(vin, mode).Set(1)
}

func (r *Recorder) SetActionActive(vin string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	r.actionActive.WithLabelValues(vin).Set(v)
}

// ObserveCommand counts a command by its outcome.
func (r *Recorder) ObserveCommand(vin, action, status string) {
	r.commands.WithLabelValues(vin, action, status).Inc()
}
