// Package telemetry exposes Prometheus metrics for the console:
//
//	tradeconsole_poll_cycles_total            completed poll cycles
//	tradeconsole_poll_skipped_total           refreshes coalesced into an in-flight cycle
//	tradeconsole_poll_cycle_seconds           cycle latency
//	tradeconsole_fetch_errors_total{category} failed fetches per category
//	tradeconsole_bot_up                       1 while the status endpoint answers
//	tradeconsole_open_trades                  open positions in the snapshot
//	tradeconsole_balance_total                account balance in stake currency
//	tradeconsole_commands_total{command,result} operator commands
//
// Metrics live on a private registry so tests can build as many as they like.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/tradeconsole/internal/domain"
)

const namespace = "tradeconsole"

// Command results.
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultDeclined = "declined"
	ResultBusy     = "busy"
)

// Metrics holds every collector the console updates.
type Metrics struct {
	registry *prometheus.Registry

	pollCycles   prometheus.Counter
	pollSkipped  prometheus.Counter
	cycleSeconds prometheus.Histogram
	fetchErrors  *prometheus.CounterVec
	botUp        prometheus.Gauge
	openTrades   prometheus.Gauge
	balanceTotal prometheus.Gauge
	commands     *prometheus.CounterVec
}

// New creates and registers the console metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles.",
		}),
		pollSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_skipped_total",
			Help:      "Refresh requests skipped because a cycle was already in flight.",
		}),
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_seconds",
			Help:      "Duration of a full poll cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches split by snapshot category.",
		}, []string{"category"}),
		botUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bot_up",
			Help:      "1 when the last status fetch succeeded.",
		}),
		openTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_trades",
			Help:      "Open positions in the current snapshot.",
		}),
		balanceTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_total",
			Help:      "Total balance in stake currency.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Operator commands split by command and result.",
		}, []string{"command", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pollCycles, m.pollSkipped, m.cycleSeconds, m.fetchErrors,
		m.botUp, m.openTrades, m.balanceTotal, m.commands,
	)
	return m
}

// Handler serves the Prometheus exposition for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveCycle records one completed poll cycle and refreshes the snapshot
// gauges.
func (m *Metrics) ObserveCycle(d time.Duration, snap domain.Snapshot) {
	m.pollCycles.Inc()
	m.cycleSeconds.Observe(d.Seconds())
	for cat := range snap.CategoryErrors {
		m.fetchErrors.WithLabelValues(string(cat)).Inc()
	}
	if snap.State == domain.BotStateError {
		m.botUp.Set(0)
	} else {
		m.botUp.Set(1)
	}
	m.openTrades.Set(float64(len(snap.OpenTrades)))
	if snap.Balance != nil {
		m.balanceTotal.Set(snap.Balance.Total.InexactFloat64())
	}
}

// CycleSkipped counts a coalesced refresh.
func (m *Metrics) CycleSkipped() { m.pollSkipped.Inc() }

// Command counts one operator command outcome.
func (m *Metrics) Command(command, result string) {
	m.commands.WithLabelValues(command, result).Inc()
}
