// Package scanner produces v3 status documents from source repositories.
//
// A Scanner is the producer side of the pipeline: the workspace stores one
// config per source, `archstatus scan` runs the configured scanner and the
// resulting document is validated, merged and exported downstream.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/model"
)

// Question describes a single configuration prompt for a scanner.
type Question struct {
	Key      string
	Prompt   string
	Required bool
}

// Scanner turns one configured source into a status document.
type Scanner interface {
	// Name returns the scanner's short identifier (e.g. "gopkg").
	Name() string

	// Questions returns the config keys the scanner reads.
	Questions() []Question

	// Scan analyzes the source described by config.
	Scan(ctx context.Context, config map[string]string) (*model.Document, error)
}

// Options are shared by every scanner.
type Options struct {
	Deny   DenyList
	Logger *zap.Logger
	Now    func() time.Time
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

var constructors = map[string]func(Options) Scanner{
	"gopkg": func(o Options) Scanner { return &GoPackages{Options: o} },
}

// Names returns the registered scanner names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New returns the scanner registered under name.
func New(name string, opts Options) (Scanner, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, apperrors.NotFound("scanner", name).WithContext("available", Names())
	}
	return ctor(opts), nil
}

// ---------------------------------------------------------------------------
// Deny rules
// ---------------------------------------------------------------------------

// DenyList holds glob patterns for paths a scanner must not read. Patterns
// may be bare doublestar globs ("gen/**") or wrapped in a Read() verb
// ("Read(./gen/**)").
type DenyList []string

// Denied reports whether rel (slash-separated, relative to the scan root)
// matches any rule. A nil list denies nothing.
func (d DenyList) Denied(rel string) bool {
	for _, rule := range d {
		pattern := parseDenyRule(rule)
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok && rel == prefix {
			return true
		}
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// parseDenyRule extracts the path glob from a deny rule.
//
//	"Read(./gen/**)" -> "gen/**"
//	"gen/**"         -> "gen/**"
func parseDenyRule(rule string) string {
	rule = strings.TrimSpace(rule)
	if strings.HasPrefix(rule, "Read(") && strings.HasSuffix(rule, ")") {
		rule = rule[5 : len(rule)-1]
	}
	return strings.TrimPrefix(rule, "./")
}

type repoSettings struct {
	Permissions struct {
		Deny []string `yaml:"deny"`
	} `yaml:"permissions"`
}

// RepoDeny reads the deny list a repository carries in
// .archstatus/settings.yaml. A missing file yields an empty list.
func RepoDeny(root string) (DenyList, error) {
	path := filepath.Join(root, ".archstatus", "settings.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var s repoSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, apperrors.Config("parse "+path, err)
	}
	return DenyList(s.Permissions.Deny), nil
}
