package validate

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records validation runs on a private Prometheus registry, which
// the CLI writes out in the node_exporter textfile format.
type Metrics struct {
	registry     *prometheus.Registry
	ruleDuration *prometheus.HistogramVec
	ruleResults  *prometheus.CounterVec
	gateScore    *prometheus.GaugeVec
	gatePassed   *prometheus.GaugeVec
	reliability  prometheus.Gauge
	confidence   prometheus.Gauge
}

// NewMetrics creates and registers the validation collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ruleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archstatus",
			Subsystem: "validation",
			Name:      "rule_duration_seconds",
			Help:      "Wall-clock duration of one validation rule.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"rule_id"}),
		ruleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archstatus",
			Subsystem: "validation",
			Name:      "rule_results_total",
			Help:      "Validation rule outcomes by status.",
		}, []string{"rule_id", "status"}),
		gateScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "archstatus",
			Subsystem: "validation",
			Name:      "gate_score",
			Help:      "Weighted score of the most recent evaluation of a quality gate.",
		}, []string{"gate_id"}),
		gatePassed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "archstatus",
			Subsystem: "validation",
			Name:      "gate_passed",
			Help:      "1 when the most recent evaluation of a quality gate passed.",
		}, []string{"gate_id"}),
		reliability: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "archstatus",
			Subsystem: "validation",
			Name:      "reliability_score",
			Help:      "Reliability score (0-100) of the most recent report.",
		}),
		confidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "archstatus",
			Subsystem: "validation",
			Name:      "confidence_level",
			Help:      "Confidence level (0-1) of the most recent report.",
		}),
	}
	m.registry.MustRegister(m.ruleDuration, m.ruleResults, m.gateScore, m.gatePassed, m.reliability, m.confidence)
	return m
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

func (m *Metrics) observeResult(r Result) {
	if m == nil {
		return
	}
	m.ruleDuration.WithLabelValues(r.RuleID).Observe(r.ExecutionTime)
	m.ruleResults.WithLabelValues(r.RuleID, string(r.Status)).Inc()
}

func (m *Metrics) observeReport(rep *Report) {
	if m == nil {
		return
	}
	for _, g := range rep.QualityGateResults {
		m.gateScore.WithLabelValues(g.GateID).Set(g.Score)
		passed := 0.0
		if g.Passed {
			passed = 1
		}
		m.gatePassed.WithLabelValues(g.GateID).Set(passed)
	}
	m.reliability.Set(rep.ReliabilityScore)
	m.confidence.Set(rep.ConfidenceLevel)
}
