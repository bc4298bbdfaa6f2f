package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"archstatus/internal/scanner"
	"archstatus/internal/workspace"
)

func (a *app) scanCmd() *cobra.Command {
	var dir, output string
	cmd := &cobra.Command{
		Use:   "scan [workspace]",
		Short: "Scan every source of a workspace, or one directory",
		Long: `Run the configured scanner for every source in the workspace and store
the resulting status documents under ~/.archstatus/<workspace>/<source>/.

With --dir, scan a single Go module and write its status document to
--output (stdout by default).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				return a.runScanDir(cmd, dir, output)
			}
			return a.runScanWorkspace(cmd, args[0])
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "scan a local module instead of a workspace")
	cmd.Flags().StringVarP(&output, "output", "o", "", "status document output with --dir (default stdout)")
	return cmd
}

func (a *app) runScanDir(cmd *cobra.Command, dir, output string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	sc := &scanner.GoPackages{Options: a.scannerOptions()}
	doc, err := sc.ScanDir(cmd.Context(), abs, abs)
	if err != nil {
		return err
	}
	return writeJSON(cmd, output, doc)
}

func (a *app) runScanWorkspace(cmd *cobra.Command, name string) error {
	ws, err := workspace.Open(name)
	if err != nil {
		return err
	}
	sources, err := ws.ListSources()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(sources) == 0 {
		fmt.Fprintf(out, "no sources in workspace %q\n", name)
		return nil
	}

	var failed int
	for _, srcName := range sources {
		log := a.logger.With(zap.String("source", srcName))
		if err := a.scanSource(cmd, ws, srcName); err != nil {
			log.Error("scan failed", zap.Error(err))
			failed++
			continue
		}
		fmt.Fprintf(out, "  %s → %s\n", srcName, ws.StatusPath(srcName))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed to scan", failed, len(sources))
	}
	return nil
}

func (a *app) scanSource(cmd *cobra.Command, ws *workspace.Workspace, name string) error {
	src, err := ws.LoadSource(name)
	if err != nil {
		return err
	}
	sc, err := scanner.New(src.Scanner, a.scannerOptions())
	if err != nil {
		return err
	}
	conf := make(map[string]string, len(src.Options)+2)
	for k, v := range src.Options {
		conf[k] = v
	}
	if src.Repository != "" {
		conf["repository"] = src.Repository
	}
	if src.Path != "" {
		conf["path"] = src.Path
	}

	a.logger.Info("scanning", zap.String("source", name), zap.String("scanner", sc.Name()), zap.String("location", src.Location()))
	doc, err := sc.Scan(cmd.Context(), conf)
	if err != nil {
		return err
	}
	return ws.WriteStatus(name, doc)
}
