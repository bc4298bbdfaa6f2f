package scanner

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/model"
	"archstatus/internal/status"
)

// activityWindow is the git history window behind activityLast30Days.
const activityWindow = 30 * 24 * time.Hour

const (
	commandType = "component.command"
	libraryType = "library.go"
)

// GoPackages scans a Go module: one asset per package, one dependsOn edge
// per import between packages of the module, analytics from git history.
type GoPackages struct {
	Options
}

func (g *GoPackages) Name() string { return "gopkg" }

func (g *GoPackages) Questions() []Question {
	return []Question{
		{Key: "repository", Prompt: "Git repository URL (empty for a local path)"},
		{Key: "path", Prompt: "Local module path (empty to clone the repository)"},
	}
}

// Scan resolves the source from config["path"] or, failing that, clones
// config["repository"], then analyzes the checkout.
func (g *GoPackages) Scan(ctx context.Context, config map[string]string) (*model.Document, error) {
	root := config["path"]
	ref := root
	if root == "" {
		repo := config["repository"]
		if repo == "" {
			return nil, apperrors.Input("gopkg: one of 'path' or 'repository' is required")
		}
		dir, err := cloneOrPull(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("gopkg: fetch repo: %w", err)
		}
		root, ref = dir, repo
	}
	return g.ScanDir(ctx, root, ref)
}

// pkgInfo is one scanned package.
type pkgInfo struct {
	Rel     string
	Path    string
	Name    string
	Files   int
	Tests   int
	Imports []string
	Errors  []string
}

// ScanDir analyzes the module rooted at root. ref names the source in the
// document's graph id.
func (g *GoPackages) ScanDir(ctx context.Context, root, ref string) (*model.Document, error) {
	log := g.logger().With(zap.String("scanner", g.Name()), zap.String("root", root))

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("gopkg: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, apperrors.Inputf("gopkg: %s is not a directory", root)
	}

	deny := g.Deny
	repoDeny, err := RepoDeny(abs)
	if err != nil {
		return nil, err
	}
	deny = append(append(DenyList{}, deny...), repoDeny...)

	dirs, err := collectGoFiles(abs, deny)
	if err != nil {
		return nil, fmt.Errorf("gopkg: walk: %w", err)
	}

	pkgs, err := loadPackages(ctx, abs, dirs)
	if err != nil {
		log.Warn("package loading failed, falling back to import parsing", zap.Error(err))
		pkgs, err = parsePackages(abs, dirs)
		if err != nil {
			return nil, fmt.Errorf("gopkg: %w", err)
		}
	}

	now := g.now()
	var hist map[string]*dirHistory
	prefix := ""
	if isGitRepo(ctx, abs) {
		if top, err := topLevel(ctx, abs); err == nil {
			if resolved, err := filepath.EvalSymlinks(top); err == nil {
				top = resolved
			}
			if p, err := filepath.Rel(top, abs); err == nil && p != "." {
				prefix = filepath.ToSlash(p)
			}
		}
		if hist, err = history(ctx, abs, now.Add(-activityWindow)); err != nil {
			log.Warn("git history unavailable", zap.Error(err))
		}
	}
	histFor := func(rel string) *dirHistory {
		if hist == nil {
			return nil
		}
		key := rel
		if prefix != "" {
			key = path.Join(prefix, rel)
		}
		if h, ok := hist[key]; ok {
			return h
		}
		return &dirHistory{}
	}

	doc := buildDocument(pkgs, histFor, now)
	if ref == "" {
		ref = abs
	}
	doc.GraphID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(ref)).String()
	doc.Enrich()

	log.Info("scanned go module",
		zap.Int("packages", len(doc.Assets)),
		zap.Int("edges", len(doc.Edges)),
		zap.Bool("git", hist != nil))
	return doc, nil
}

// ---------------------------------------------------------------------------
// File collection
// ---------------------------------------------------------------------------

type dirFiles struct {
	Sources []string
	Tests   []string
}

// collectGoFiles groups the .go files under root by slash-separated
// directory relative to root. vendor, testdata, hidden and denied
// directories are skipped.
func collectGoFiles(root string, deny DenyList) (map[string]*dirFiles, error) {
	out := make(map[string]*dirFiles)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()
		if d.IsDir() {
			if p == root {
				return nil
			}
			if name == "vendor" || name == "testdata" ||
				strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				deny.Denied(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(name) != ".go" || deny.Denied(rel) {
			return nil
		}
		dir := path.Dir(rel)
		f := out[dir]
		if f == nil {
			f = &dirFiles{}
			out[dir] = f
		}
		if strings.HasSuffix(name, "_test.go") {
			f.Tests = append(f.Tests, rel)
		} else {
			f.Sources = append(f.Sources, rel)
		}
		return nil
	})
	for dir, f := range out {
		if len(f.Sources) == 0 {
			delete(out, dir)
		}
	}
	return out, err
}

func sortedDirs(m map[string]*dirFiles) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Package loading
// ---------------------------------------------------------------------------

// loadPackages resolves the packages of dirs with the go tool.
func loadPackages(ctx context.Context, root string, dirs map[string]*dirFiles) ([]pkgInfo, error) {
	if len(dirs) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(dirs))
	for _, d := range sortedDirs(dirs) {
		if d == "." {
			patterns = append(patterns, ".")
			continue
		}
		patterns = append(patterns, "./"+d)
	}
	cfg := &packages.Config{
		Context: ctx,
		Dir:     root,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedImports,
	}
	loaded, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var out []pkgInfo
	for _, p := range loaded {
		if len(p.GoFiles) == 0 {
			continue
		}
		rel, err := filepath.Rel(root, filepath.Dir(p.GoFiles[0]))
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		files, ok := dirs[rel]
		if !ok {
			continue
		}
		info := pkgInfo{
			Rel:   rel,
			Path:  p.PkgPath,
			Name:  p.Name,
			Files: len(files.Sources),
			Tests: len(files.Tests),
		}
		for imp := range p.Imports {
			info.Imports = append(info.Imports, imp)
		}
		sort.Strings(info.Imports)
		for _, e := range p.Errors {
			info.Errors = append(info.Errors, e.Msg)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, nil
}

// parsePackages reads package clauses and imports directly from source,
// deriving import paths from the go.mod module path when one exists.
func parsePackages(root string, dirs map[string]*dirFiles) ([]pkgInfo, error) {
	module := ""
	if data, err := os.ReadFile(filepath.Join(root, "go.mod")); err == nil {
		module = modfile.ModulePath(data)
	}

	fset := token.NewFileSet()
	var out []pkgInfo
	for _, dir := range sortedDirs(dirs) {
		files := dirs[dir]
		info := pkgInfo{Rel: dir, Files: len(files.Sources), Tests: len(files.Tests)}
		info.Path = dir
		if module != "" {
			info.Path = module
			if dir != "." {
				info.Path = module + "/" + dir
			}
		}
		imports := map[string]bool{}
		for _, rel := range files.Sources {
			f, err := parser.ParseFile(fset, filepath.Join(root, filepath.FromSlash(rel)), nil, parser.ImportsOnly)
			if err != nil {
				info.Errors = append(info.Errors, err.Error())
				continue
			}
			if info.Name == "" {
				info.Name = f.Name.Name
			}
			for _, imp := range f.Imports {
				if p, err := strconv.Unquote(imp.Path.Value); err == nil {
					imports[p] = true
				}
			}
		}
		for p := range imports {
			info.Imports = append(info.Imports, p)
		}
		sort.Strings(info.Imports)
		out = append(out, info)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Document building
// ---------------------------------------------------------------------------

func buildDocument(pkgs []pkgInfo, histFor func(string) *dirHistory, now time.Time) *model.Document {
	doc := &model.Document{
		LastScan: now.UTC().Format(time.RFC3339),
		Assets:   make([]model.Asset, 0, len(pkgs)),
		Edges:    []model.Edge{},
	}

	byPath := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		byPath[p.Path] = true
	}
	inDegree := map[string]int{}
	outDegree := map[string]int{}
	for _, p := range pkgs {
		for _, imp := range p.Imports {
			if !byPath[imp] || imp == p.Path {
				continue
			}
			strength := 1.0
			doc.Edges = append(doc.Edges, model.Edge{From: p.Path, To: imp, Type: model.DependsOn, Strength: &strength})
			outDegree[p.Path]++
			inDegree[imp]++
		}
	}

	n := len(pkgs)
	for _, p := range pkgs {
		a := model.Asset{
			ID:       p.Path,
			Type:     libraryType,
			Source:   "gopkg",
			Location: p.Rel,
			Metadata: model.Metadata{
				Title:       p.Rel,
				Description: fmt.Sprintf("Go package %s", p.Name),
				Tags:        []string{"go"},
				Language:    "go",
			},
			Status: packageStatus(p),
		}
		if p.Name == "main" {
			a.Type = commandType
			a.Metadata.Tags = append(a.Metadata.Tags, "command")
		}
		if p.Rel == "." {
			a.Metadata.Title = p.Path
		}

		connectivity := float64(inDegree[p.Path] + outDegree[p.Path])
		a.Analytics.Connectivity = &connectivity
		centrality := 0.0
		if n > 1 {
			centrality = float64(inDegree[p.Path]) / float64(n-1)
		}
		a.Analytics.CentralityScore = &centrality

		if h := histFor(p.Rel); h != nil {
			activity := float64(h.Commits)
			a.Analytics.ActivityLast30Days = &activity
			a.Metadata.Authors = h.Authors
			if !h.LastUpdate.IsZero() {
				a.Metadata.LastUpdate = h.LastUpdate.UTC().Format(time.RFC3339)
			}
		}
		doc.Assets = append(doc.Assets, a)
	}
	return doc
}

// packageStatus derives a status from what the scan observed: packages that
// fail to load are broken, tested packages are built, the rest are still
// building.
func packageStatus(p pkgInfo) status.StatusInfo {
	notes := fmt.Sprintf("%d source files, %d test files", p.Files, p.Tests)
	switch {
	case len(p.Errors) > 0:
		return status.New(status.Broken).WithQuality(0, p.Errors[0])
	case p.Tests > 0:
		return status.New(status.Built).WithQuality(min(1, float64(p.Tests)/float64(max(p.Files, 1))), notes)
	default:
		return status.New(status.Building).WithQuality(0, notes)
	}
}
