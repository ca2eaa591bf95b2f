package metrics

import (
	"strconv"
	"time"

	"github.com/angelmondragon/ptm-finance-backend/pkg/enums"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "finance"

// Finance records balance, dues, import and HTTP metrics. A nil *Finance,
// or one built without a registerer, drops every observation.
type Finance struct {
	balanceChanges  *prometheus.CounterVec
	duesTransitions *prometheus.CounterVec
	importRuns      *prometheus.CounterVec
	importDuration  *prometheus.HistogramVec
	importCells     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewFinance registers the finance metrics on the provided registerer.
func NewFinance(reg prometheus.Registerer) *Finance {
	if reg == nil {
		return &Finance{}
	}
	m := &Finance{
		balanceChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_changes_total",
			Help:      "Cash balance deltas applied, by source and direction.",
		}, []string{"source", "direction"}),
		duesTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dues_transitions_total",
			Help:      "Membership dues transitions committed.",
		}, []string{"action"}),
		importRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dues_import_runs_total",
			Help:      "Dues imports by outcome.",
		}, []string{"outcome"}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dues_import_duration_seconds",
			Help:      "Duration of dues imports in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		importCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dues_import_cells_total",
			Help:      "Dues import cells acted on, by action and result.",
		}, []string{"action", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.balanceChanges,
		m.duesTransitions,
		m.importRuns,
		m.importDuration,
		m.importCells,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// ObserveBalanceChange counts one applied delta. status true is a credit.
func (m *Finance) ObserveBalanceChange(source string, status bool) {
	if m == nil || m.balanceChanges == nil {
		return
	}
	direction := "debit"
	if status {
		direction = "credit"
	}
	m.balanceChanges.WithLabelValues(normalizeLabel(source), direction).Inc()
}

func (m *Finance) ObserveDuesTransition(action string) {
	if m == nil || m.duesTransitions == nil {
		return
	}
	m.duesTransitions.WithLabelValues(normalizeLabel(action)).Inc()
}

// ObserveImport records one finished import.
func (m *Finance) ObserveImport(outcome string, elapsed time.Duration) {
	if m == nil || m.importRuns == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.importRuns.WithLabelValues(outcome).Inc()
	m.importDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Finance) ObserveImportCell(action enums.ImportAction, ok bool) {
	if m == nil || m.importCells == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.importCells.WithLabelValues(normalizeLabel(string(action)), result).Inc()
}

// ObserveRequest records one served HTTP request. route is the chi pattern.
func (m *Finance) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
