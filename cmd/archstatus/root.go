package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"archstatus/internal/config"
	"archstatus/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

// app holds the state shared by every subcommand of one invocation.
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:   "archstatus",
		Short: "Track, validate and visualize architecture status",
		Long: `archstatus models a software system as a graph of assets and their
relationships, each carrying a lifecycle state, progress, quality and a
derived reliability score.

It scans Go repositories into status documents, validates them against
weighted rules and quality gates, merges per-repository graphs into one
network and exports diagrams and markdown reports.

Examples:
  archstatus init platform
  archstatus add platform billing --set path=./billing
  archstatus scan platform
  archstatus validate status.json -o report.json
  archstatus report status.json --validation report.json -o ./site`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initConfig,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.archstatus/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		a.initCmd(),
		a.addCmd(),
		a.listCmd(),
		a.removeCmd(),
		a.scanCmd(),
		a.normalizeCmd(),
		a.validateCmd(),
		a.mergeCmd(),
		a.diagramCmd(),
		a.reportCmd(),
		a.snapshotCmd(),
		versionCmd(),
	)
	return root
}

// initConfig loads the configuration file and builds the logger before any
// subcommand runs.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	path := a.cfgFile
	if path == "" {
		def, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = def
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Named(cmd.Name())
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "archstatus version %s\n", version)
		},
	}
}

// ---------------------------------------------------------------------------
// I/O helpers
// ---------------------------------------------------------------------------

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-".
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return writeOutput(cmd, path, append(data, '\n'))
}
