package nixconfig

import (
	"context"
	"fmt"
	"strings"

	"nixstrap/internal/terminal"
)

// Change is one entry of `git status --porcelain`.
type Change struct {
	Status string
	Path   string
}

func (c Change) String() string {
	return c.Status + " " + c.Path
}

// UntrackedChanges lists modified, added and untracked files in the tree.
func (t *Tree) UntrackedChanges(ctx context.Context) ([]Change, error) {
	cmd := terminal.NewCommand("git", "status", "--porcelain", "--untracked-files=all").WithDir(t.Path)

	out, err := t.runner.Execute(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("reading git status: %w", err)
	}

	return parsePorcelain(out), nil
}

func parsePorcelain(out string) []Change {
	var changes []Change

	for _, line := range strings.Split(out, "\n") {
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		// Execute trims the output, so the first entry may have lost its
		// leading status column.
		status, path, ok := strings.Cut(strings.TrimLeft(line, " "), " ")
		if !ok {
			continue
		}
		path = strings.TrimSpace(path)
		if _, renamed, ok := strings.Cut(path, " -> "); ok {
			path = renamed
		}
		changes = append(changes, Change{Status: status, Path: strings.Trim(path, `"`)})
	}

	return changes
}

// Diff shows the working tree diff for one file.
func (t *Tree) Diff(ctx context.Context, path string) (string, error) {
	cmd := terminal.NewCommand("git", "--no-pager", "diff", "--", path).WithDir(t.Path)
	return t.runner.Execute(ctx, cmd)
}
