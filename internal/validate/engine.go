package validate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single check when no timeout is configured.
const DefaultCheckTimeout = 30 * time.Second

// Engine executes the rules of a registry against an input. An Engine is
// safe for concurrent use once built.
type Engine struct {
	registry    *Registry
	checks      map[string]Check
	timeout     time.Duration
	parallelism int
	logger      *zap.Logger
	metrics     *Metrics
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each check. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithParallelism limits how many checks run at once. Non-positive values
// keep the default of GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records every run on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces the wall clock used for result and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCheck binds check to rule id, replacing any built-in check.
func WithCheck(id string, check Check) Option {
	return func(e *Engine) { e.checks[id] = check }
}

// NewEngine builds an engine over reg. A nil reg means DefaultRegistry.
func NewEngine(reg *Registry, opts ...Option) *Engine {
	if reg == nil {
		reg = DefaultRegistry()
	}
	e := &Engine{
		registry:    reg,
		checks:      BuiltinChecks(),
		timeout:     DefaultCheckTimeout,
		parallelism: runtime.GOMAXPROCS(0),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine runs.
func (e *Engine) Registry() *Registry {
	return e.registry
}

type checkReturn struct {
	out Outcome
	err error
}

// Execute runs one rule and always produces a result. A disabled rule is
// skipped. A check that errors, panics or outlives the per-check timeout
// yields an error result; siblings are unaffected.
func (e *Engine) Execute(ctx context.Context, rule Rule, in *Input) Result {
	start := time.Now()
	res := Result{
		RuleID:          rule.ID,
		Details:         map[string]any{},
		Recommendations: []string{},
	}
	finish := func() Result {
		res.Timestamp = e.now().UTC()
		res.ExecutionTime = time.Since(start).Seconds()
		res.Score = clampScore(res.Score)
		return res
	}

	if !rule.Enabled {
		res.Status = Skipped
		res.Message = "Rule disabled"
		return finish()
	}
	check, ok := e.checks[rule.ID]
	if !ok {
		res.Status = Error
		res.Message = fmt.Sprintf("no check registered for rule %s", rule.ID)
		return finish()
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan checkReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- checkReturn{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := check(cctx, in, rule)
		done <- checkReturn{out: out, err: err}
	}()

	var ret checkReturn
	select {
	case ret = <-done:
	case <-cctx.Done():
		ret.err = cctx.Err()
	}

	switch {
	case errors.Is(ret.err, context.DeadlineExceeded):
		res.Status = Error
		res.Message = "timeout"
		res.Details = map[string]any{"timeout_seconds": e.timeout.Seconds()}
	case ret.err != nil:
		res.Status = Error
		res.Message = ret.err.Error()
		res.Details = map[string]any{"error": ret.err.Error()}
	default:
		res.Status = ret.out.Status
		res.Score = ret.out.Score
		res.Message = ret.out.Message
		if ret.out.Details != nil {
			res.Details = ret.out.Details
		}
		if ret.out.Recommendations != nil {
			res.Recommendations = ret.out.Recommendations
		}
	}

	if res.Status == Error {
		e.logger.Warn("validation rule errored", zap.String("rule_id", rule.ID), zap.String("error", res.Message))
	}
	return finish()
}

// Run executes every enabled rule concurrently, evaluates every enabled
// gate and aggregates the report. Result order follows registry order.
func (e *Engine) Run(ctx context.Context, in *Input) *Report {
	start := e.now()
	began := time.Now()

	var rules []Rule
	for _, r := range e.registry.Rules() {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	e.logger.Info("starting validation",
		zap.Int("rules", len(rules)),
		zap.Int("parallelism", e.parallelism),
		zap.Duration("check_timeout", e.timeout))

	results := make([]Result, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			results[i] = e.Execute(gctx, rule, in)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		e.metrics.observeResult(r)
		e.logger.Debug("validation rule finished",
			zap.String("rule_id", r.RuleID),
			zap.String("status", string(r.Status)),
			zap.Float64("score", r.Score),
			zap.Float64("execution_time", r.ExecutionTime))
	}

	var gates []GateResult
	for _, gate := range e.registry.Gates() {
		if gate.Enabled {
			gates = append(gates, EvaluateGate(gate, e.registry, results))
		}
	}

	report := Aggregate(e.registry, results, gates, start, time.Since(began))
	e.metrics.observeReport(report)
	e.logger.Info("validation complete",
		zap.String("report_id", report.ReportID),
		zap.String("overall_status", string(report.OverallStatus)),
		zap.Float64("reliability_score", report.ReliabilityScore),
		zap.Int("gates_passed", report.QualityGatesPassed),
		zap.Int("gates_total", report.TotalQualityGates))
	return report
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}
