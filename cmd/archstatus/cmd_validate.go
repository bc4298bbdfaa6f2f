package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"archstatus/internal/model"
	"archstatus/internal/validate"
)

// ---------------------------------------------------------------------------
// normalize
// ---------------------------------------------------------------------------

func (a *app) normalizeCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "normalize <in>",
		Short: "Convert a status document into the v3 format",
		Long: `Read a v3 or legacy status document and write it in canonical v3 form
with statuses normalized and reliability recomputed.

Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := model.Convert(data, a.now())
			if err != nil {
				return err
			}
			return writeJSON(cmd, output, doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	return cmd
}

// ---------------------------------------------------------------------------
// validate
// ---------------------------------------------------------------------------

type validateFlags struct {
	agents      string
	output      string
	metricsFile string
	strict      bool
}

func (a *app) validateCmd() *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate <doc>",
		Short: "Run the validation rules and quality gates over a status document",
		Long: `Run every enabled validation rule over a v3 status document, evaluate the
quality gates and write the validation report as JSON.

Rules, gates, the per-check timeout and parallelism come from the
validation section of the config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.agents, "agents", "", "agent results JSON")
	fl.StringVarP(&f.output, "output", "o", "", "report output path (default stdout)")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	fl.BoolVar(&f.strict, "strict", false, "exit non-zero when the overall status is failed or error")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, path string, f validateFlags) error {
	report, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	var agents []byte
	if f.agents != "" {
		if agents, err = readInput(cmd, f.agents); err != nil {
			return err
		}
	}
	in, err := validate.DecodeInput(report, agents)
	if err != nil {
		return err
	}

	reg, err := a.cfg.Registry()
	if err != nil {
		return err
	}
	opts := append(a.cfg.EngineOptions(), validate.WithLogger(a.logger))
	var metrics *validate.Metrics
	if f.metricsFile != "" {
		metrics = validate.NewMetrics()
		opts = append(opts, validate.WithMetrics(metrics))
	}

	rep := validate.NewEngine(reg, opts...).Run(cmd.Context(), in)
	a.logger.Info("validation finished",
		zap.String("status", string(rep.OverallStatus)),
		zap.Float64("reliability", rep.ReliabilityScore),
		zap.Int("gates_passed", rep.QualityGatesPassed),
		zap.Int("gates_total", rep.TotalQualityGates))

	if err := writeJSON(cmd, f.output, rep); err != nil {
		return err
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(f.metricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if f.strict {
		return strictError(rep)
	}
	return nil
}

// strictError reports a run whose overall status is failed or error.
func strictError(rep *validate.Report) error {
	switch rep.OverallStatus {
	case validate.Failed:
		return fmt.Errorf("validation failed: %d of %d quality gates passed", rep.QualityGatesPassed, rep.TotalQualityGates)
	case validate.Error:
		return fmt.Errorf("validation errored: %d of %d quality gates passed", rep.QualityGatesPassed, rep.TotalQualityGates)
	}
	return nil
}
