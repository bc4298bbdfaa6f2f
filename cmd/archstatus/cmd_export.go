package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/export"
	"archstatus/internal/merge"
	"archstatus/internal/model"
	"archstatus/internal/validate"
	"archstatus/internal/workspace"
)

// ---------------------------------------------------------------------------
// merge
// ---------------------------------------------------------------------------

func (a *app) mergeCmd() *cobra.Command {
	var output string
	var asDocument bool
	cmd := &cobra.Command{
		Use:   "merge <workspace|files...>",
		Short: "Merge per-source graphs into one repository network",
		Long: `Merge the scanned sources of a workspace, or a list of source graph
files, into one namespaced graph. Each source becomes a root node laid out
on a square grid, and related roots are linked by shared topics or
language.

Sources lacking nodes or edges are skipped with a warning.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := a.mergeSources(args)
			if err != nil {
				return err
			}
			m := &merge.Merger{Logger: a.logger, Now: a.now}
			res := m.Merge(sources)
			for _, name := range res.Skipped {
				a.logger.Warn("source skipped", zap.String("source", name))
			}
			if asDocument {
				return writeJSON(cmd, output, res.Graph.Document())
			}
			return writeJSON(cmd, output, res.Graph)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")
	cmd.Flags().BoolVar(&asDocument, "document", false, "write the merged graph as a v3 status document")
	return cmd
}

// mergeSources resolves merge arguments: a single argument that is not a
// file names a workspace, anything else is a list of source graph files.
func (a *app) mergeSources(args []string) ([]merge.SourceGraph, error) {
	if len(args) == 1 {
		if _, err := os.Stat(args[0]); os.IsNotExist(err) {
			ws, err := workspace.Open(args[0])
			if err != nil {
				return nil, err
			}
			graphs, missing, err := ws.Graphs()
			if err != nil {
				return nil, err
			}
			if len(missing) > 0 {
				a.logger.Warn("sources not scanned yet", zap.Strings("sources", missing))
			}
			return graphs, nil
		}
	}
	sources := make([]merge.SourceGraph, 0, len(args))
	for _, path := range args {
		src, err := merge.ReadSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ---------------------------------------------------------------------------
// diagram
// ---------------------------------------------------------------------------

func (a *app) diagramCmd() *cobra.Command {
	var mermaidOut, dotOut string
	cmd := &cobra.Command{
		Use:   "diagram <doc>",
		Short: "Render a status document as Mermaid or Graphviz",
		Long: `Render a v3 status document as a Mermaid flowchart and/or a Graphviz
digraph. Without --mermaid or --dot the Mermaid source is written to stdout.

Node limits come from the export section of the config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			if mermaidOut == "" && dotOut == "" {
				mermaidOut = "-"
			}
			if mermaidOut != "" {
				if err := writeOutput(cmd, mermaidOut, []byte(export.Mermaid(doc, a.cfg.Export.MermaidMaxNodes))); err != nil {
					return err
				}
			}
			if dotOut != "" {
				if err := writeOutput(cmd, dotOut, []byte(export.Graphviz(doc, a.cfg.Export.DotMaxNodes))); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mermaidOut, "mermaid", "", "Mermaid output path (\"-\" for stdout)")
	cmd.Flags().StringVar(&dotOut, "dot", "", "Graphviz DOT output path (\"-\" for stdout)")
	return cmd
}

// ---------------------------------------------------------------------------
// report
// ---------------------------------------------------------------------------

func (a *app) reportCmd() *cobra.Command {
	var validation, output string
	var force bool
	cmd := &cobra.Command{
		Use:   "report <doc>",
		Short: "Generate a markdown report bundle",
		Long: `Generate a linked markdown bundle from a status document: an index, an
asset table with one note per asset, the validation report, a risk page
and the architecture diagram.

Pass --validation with the output of 'archstatus validate' to include the
rule and gate results. A bundle written for another graph is not
overwritten unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			var rep *validate.Report
			if validation != "" {
				if rep, err = readReport(cmd, validation); err != nil {
					return err
				}
			}
			bundle, err := export.GenerateBundle(doc, rep, export.Options{
				MermaidMaxNodes: a.cfg.Export.MermaidMaxNodes,
				Generated:       a.now().UTC().Format("2006-01-02T15:04:05Z"),
			})
			if err != nil {
				return err
			}
			if err := a.checkReportTarget(output, doc.GraphID, force); err != nil {
				return err
			}
			if err := export.WriteBundle(bundle, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d pages to %s\n", len(bundle.Paths()), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&validation, "validation", "", "validation report JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite a bundle written for another graph")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// checkReportTarget refuses to write over a bundle of a different graph.
func (a *app) checkReportTarget(output, graphID string, force bool) error {
	existing, err := export.ExistingGraphID(output)
	switch {
	case err != nil && !force:
		return apperrors.Wrap(apperrors.TypeInput, "output directory holds an unrecognized index.md (use --force)", err)
	case err != nil:
		a.logger.Warn("overwriting unrecognized index.md", zap.String("output", output), zap.Error(err))
	case existing != "" && existing != graphID && !force:
		return apperrors.Inputf("%s holds the report of graph %q, not %q (use --force)", output, existing, graphID)
	case existing != "" && existing != graphID:
		a.logger.Warn("overwriting report of another graph", zap.String("output", output), zap.String("graph_id", existing))
	}
	return nil
}

func (a *app) readDocument(cmd *cobra.Command, path string) (*model.Document, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	doc, err := model.Parse(data)
	if err != nil {
		return nil, err
	}
	doc.Enrich()
	return doc, nil
}

func readReport(cmd *cobra.Command, path string) (*validate.Report, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var rep validate.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInput, "malformed validation report "+path, err)
	}
	return &rep, nil
}
