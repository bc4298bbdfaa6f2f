package scanner

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// cloneDepth bounds the history fetched for remote repositories.
const cloneDepth = 200

// cloneOrPull clones repoURL into a stable temp directory, or pulls when a
// previous clone exists, and returns the checkout path.
func cloneOrPull(ctx context.Context, repoURL string) (string, error) {
	sum := sha256.Sum256([]byte(repoURL))
	dir := filepath.Join(os.TempDir(), "archstatus-scan-"+hex.EncodeToString(sum[:8]))
	depth := fmt.Sprint(cloneDepth)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		cmd := exec.CommandContext(ctx, "git", "-C", dir, "pull", "--depth", depth, "--ff-only")
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("git pull: %w\n%s", err, out)
		}
		return dir, nil
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", depth, repoURL, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git clone: %w\n%s", err, out)
	}
	return dir, nil
}

// isGitRepo reports whether dir is inside a git work tree.
func isGitRepo(ctx context.Context, dir string) bool {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--is-inside-work-tree").Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// dirHistory is the recent git activity of one directory.
type dirHistory struct {
	Commits    int
	Authors    []string
	LastUpdate time.Time
}

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// history summarizes commits since the given time per directory. Paths are
// slash-separated and relative to the repository top level.
func history(ctx context.Context, dir string, since time.Time) (map[string]*dirHistory, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "log",
		"--no-merges",
		"--since="+since.UTC().Format(time.RFC3339),
		"--name-only",
		"--format="+recordSep+"%an"+fieldSep+"%aI")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	return parseHistory(out), nil
}

func parseHistory(out []byte) map[string]*dirHistory {
	result := map[string]*dirHistory{}
	authors := map[string]map[string]bool{}

	for _, rec := range bytes.Split(out, []byte(recordSep)) {
		sc := bufio.NewScanner(bytes.NewReader(rec))
		if !sc.Scan() {
			continue
		}
		author, date, _ := strings.Cut(sc.Text(), fieldSep)
		when, _ := time.Parse(time.RFC3339, strings.TrimSpace(date))

		touched := map[string]bool{}
		for sc.Scan() {
			file := strings.TrimSpace(sc.Text())
			if file == "" {
				continue
			}
			touched[path.Dir(file)] = true
		}
		for d := range touched {
			h := result[d]
			if h == nil {
				h = &dirHistory{}
				result[d] = h
				authors[d] = map[string]bool{}
			}
			h.Commits++
			if author != "" && !authors[d][author] {
				authors[d][author] = true
				h.Authors = append(h.Authors, author)
			}
			if when.After(h.LastUpdate) {
				h.LastUpdate = when
			}
		}
	}
	for _, h := range result {
		sort.Strings(h.Authors)
	}
	return result
}

// topLevel returns the repository root containing dir.
func topLevel(ctx context.Context, dir string) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
