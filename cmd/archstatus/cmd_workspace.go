package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/merge"
	"archstatus/internal/scanner"
	"archstatus/internal/workspace"
)

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <workspace>",
		Short: "Create a new workspace",
		Long: `Create a new workspace at ~/.archstatus/<workspace>/.

Errors if the workspace already exists.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Init(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created workspace %q at %s\n", ws.Name, ws.Dir)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// add
// ---------------------------------------------------------------------------

type addFlags struct {
	scanner     string
	set         map[string]string
	description string
	topics      []string
	language    string
}

func (a *app) addCmd() *cobra.Command {
	var f addFlags
	cmd := &cobra.Command{
		Use:   "add <workspace> <source>",
		Short: "Add a source repository to a workspace",
		Long: `Add a new source to an existing workspace.

Prompts for every scanner question not answered with --set and writes
~/.archstatus/<workspace>/<source>.yaml.

Errors if the source already exists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAdd(cmd, args[0], args[1], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.scanner, "scanner", "gopkg", "scanner producing the source's status document ("+strings.Join(scanner.Names(), ", ")+")")
	fl.StringToStringVar(&f.set, "set", nil, "answer a scanner question without prompting (key=value)")
	fl.StringVar(&f.description, "description", "", "repository description")
	fl.StringSliceVar(&f.topics, "topics", nil, "repository topics used to link related sources")
	fl.StringVar(&f.language, "language", "", "primary repository language")
	return cmd
}

func (a *app) runAdd(cmd *cobra.Command, wsName, name string, f addFlags) error {
	ws, err := workspace.Open(wsName)
	if err != nil {
		return err
	}
	sc, err := scanner.New(f.scanner, a.scannerOptions())
	if err != nil {
		return err
	}

	answers := make(map[string]string, len(f.set))
	for k, v := range f.set {
		answers[k] = v
	}
	var pending []scanner.Question
	for _, q := range sc.Questions() {
		if _, ok := answers[q.Key]; !ok {
			pending = append(pending, q)
		}
	}
	prompted, err := promptQuestions(pending)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	for k, v := range prompted {
		answers[k] = v
	}

	src, err := sourceFromAnswers(sc, answers)
	if err != nil {
		return err
	}
	src.Metadata = merge.SourceMetadata{
		Description: f.description,
		Topics:      f.topics,
		Language:    f.language,
	}
	if err := ws.AddSource(name, src); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added source %q to workspace %q\n", name, wsName)
	return nil
}

// sourceFromAnswers maps scanner answers onto a source config. The
// repository and path answers become first-class fields, every other
// non-empty answer is kept as a scanner option.
func sourceFromAnswers(sc scanner.Scanner, answers map[string]string) (workspace.Source, error) {
	for _, q := range sc.Questions() {
		if q.Required && strings.TrimSpace(answers[q.Key]) == "" {
			return workspace.Source{}, apperrors.Inputf("%s: %q is required", sc.Name(), q.Key)
		}
	}
	src := workspace.Source{
		Scanner:    sc.Name(),
		Repository: strings.TrimSpace(answers["repository"]),
		Path:       strings.TrimSpace(answers["path"]),
	}
	for k, v := range answers {
		if k == "repository" || k == "path" || v == "" {
			continue
		}
		if src.Options == nil {
			src.Options = map[string]string{}
		}
		src.Options[k] = v
	}
	if src.Location() == "" {
		return workspace.Source{}, apperrors.Input("a repository URL or local path is required")
	}
	return src, nil
}

// ---------------------------------------------------------------------------
// list / remove
// ---------------------------------------------------------------------------

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [workspace]",
		Short: "List workspaces, or the sources of one workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				names, err := workspace.List()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			ws, err := workspace.Open(args[0])
			if err != nil {
				return err
			}
			names, err := ws.ListSources()
			if err != nil {
				return err
			}
			for _, n := range names {
				src, err := ws.LoadSource(n)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-20s %-8s %s\n", n, src.Scanner, src.Location())
			}
			return nil
		},
	}
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <workspace> [source]",
		Short: "Remove a workspace, or one source of it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := workspace.Remove(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed workspace %q\n", args[0])
				return nil
			}
			ws, err := workspace.Open(args[0])
			if err != nil {
				return err
			}
			if err := ws.RemoveSource(args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed source %q from workspace %q\n", args[1], args[0])
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// snapshot
// ---------------------------------------------------------------------------

func (a *app) snapshotCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "snapshot <workspace> <dst>",
		Short: "Copy the latest status documents of a workspace",
		Long: `Copy every stored status document into <dst>/<source>.status.json and
write a note to <dst>/index.md.

Errors if <dst> already exists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Open(args[0])
			if err != nil {
				return err
			}
			if note == "" {
				note = snapshotNote(ws.Name, a.now().UTC().Format("2006-01-02T15:04:05Z"))
			}
			if err := ws.Snapshot(args[1], note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot of %q written to %s\n", ws.Name, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "markdown written to index.md")
	return cmd
}

func snapshotNote(ws, when string) string {
	return fmt.Sprintf("# Snapshot of %s\n\nTaken %s.\n", ws, when)
}

// scannerOptions builds the options every scanner receives.
func (a *app) scannerOptions() scanner.Options {
	return scanner.Options{
		Deny:   scanner.DenyList(a.cfg.Scan.Deny),
		Logger: a.logger.Named("scanner"),
		Now:    a.now,
	}
}
