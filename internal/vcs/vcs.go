// Package vcs is the narrow git adapter the validation engine depends on:
// changed-file sets against a baseline ref and retrieval of baseline file
// contents for backward-compatibility rules.
package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/contentops/packlint/internal/content"
)

// Change is one file-level difference between the baseline and the working tree.
type Change struct {
	Path    string
	OldPath string // set for renames
	Status  content.GitStatus
}

// Adapter is the engine-facing surface. Implementations must be safe for
// sequential use within a single run.
type Adapter interface {
	// Changes computes file changes between baselineRef and the working tree.
	Changes(baselineRef string, includeUntracked bool) ([]Change, error)
	// FileAt returns the file contents at the given ref. Results are cached
	// per (ref, path) for the run.
	FileAt(ref, path string) ([]byte, error)
}

// GitAdapter implements Adapter with go-git, falling back to the git CLI for
// diffs when go-git cannot open the repository.
type GitAdapter struct {
	root      string
	repo      *git.Repository
	fileCache map[string][]byte
}

// Open opens the repository at root. A nil repo is tolerated; the adapter
// then relies on the git CLI.
func Open(root string) (*GitAdapter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	a := &GitAdapter{root: abs, fileCache: make(map[string][]byte)}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err == nil {
		a.repo = repo
	} else if _, lookErr := exec.LookPath("git"); lookErr != nil {
		return nil, fmt.Errorf("open repository %s: %w", root, err)
	}
	return a, nil
}

// Changes diffs baselineRef against HEAD (committed changes) and merges in the
// worktree status (staged, unstaged and optionally untracked files).
func (a *GitAdapter) Changes(baselineRef string, includeUntracked bool) ([]Change, error) {
	if a.repo != nil {
		if changes, err := a.changesGoGit(baselineRef, includeUntracked); err == nil {
			return changes, nil
		}
	}
	return a.changesCLI(baselineRef, includeUntracked)
}

func (a *GitAdapter) changesGoGit(baselineRef string, includeUntracked bool) ([]Change, error) {
	baseTree, err := a.treeAt(baselineRef)
	if err != nil {
		return nil, err
	}
	headTree, err := a.treeAt("HEAD")
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]Change)

	diffs, err := object.DiffTreeWithOptions(context.Background(), baseTree, headTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, err
	}
	for _, d := range diffs {
		action, err := d.Action()
		if err != nil {
			continue
		}
		from, to := d.From.Name, d.To.Name
		switch action {
		case merkletrie.Insert:
			byPath[to] = Change{Path: to, Status: content.StatusAdded}
		case merkletrie.Delete:
			byPath[from] = Change{Path: from, Status: content.StatusDeleted}
		case merkletrie.Modify:
			if from != "" && to != "" && from != to {
				byPath[to] = Change{Path: to, OldPath: from, Status: content.StatusRenamed}
			} else {
				byPath[to] = Change{Path: to, Status: content.StatusModified}
			}
		}
	}

	wt, err := a.repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	for path, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			if includeUntracked {
				byPath[path] = Change{Path: path, Status: content.StatusAdded}
			}
			continue
		}
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		if s.Staging == git.Deleted || s.Worktree == git.Deleted {
			byPath[path] = Change{Path: path, Status: content.StatusDeleted}
			continue
		}
		if existing, ok := byPath[path]; ok && existing.Status == content.StatusAdded {
			continue // added against baseline stays added
		}
		if s.Staging == git.Added {
			byPath[path] = Change{Path: path, Status: content.StatusAdded}
			continue
		}
		byPath[path] = Change{Path: path, Status: content.StatusModified}
	}

	out := make([]Change, 0, len(byPath))
	for _, c := range byPath {
		c.Path = filepath.ToSlash(c.Path)
		c.OldPath = filepath.ToSlash(c.OldPath)
		out = append(out, c)
	}
	return out, nil
}

func (a *GitAdapter) treeAt(ref string) (*object.Tree, error) {
	hash, err := a.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	commit, err := a.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

// changesCLI parses `git diff --name-status -M` plus `git ls-files --others`.
func (a *GitAdapter) changesCLI(baselineRef string, includeUntracked bool) ([]Change, error) {
	out, err := a.runGit("diff", "--name-status", "-M", baselineRef)
	if err != nil {
		return nil, err
	}
	var changes []Change
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		code := fields[0]
		switch {
		case code == "A":
			changes = append(changes, Change{Path: fields[1], Status: content.StatusAdded})
		case code == "M":
			changes = append(changes, Change{Path: fields[1], Status: content.StatusModified})
		case code == "D":
			changes = append(changes, Change{Path: fields[1], Status: content.StatusDeleted})
		case strings.HasPrefix(code, "R") && len(fields) >= 3:
			changes = append(changes, Change{Path: fields[2], OldPath: fields[1], Status: content.StatusRenamed})
		}
	}
	if includeUntracked {
		out, err := a.runGit("ls-files", "--others", "--exclude-standard")
		if err == nil {
			scanner := bufio.NewScanner(bytes.NewReader(out))
			for scanner.Scan() {
				if path := strings.TrimSpace(scanner.Text()); path != "" {
					changes = append(changes, Change{Path: path, Status: content.StatusAdded})
				}
			}
		}
	}
	return changes, nil
}

// FileAt returns the contents of path at ref, caching per run.
func (a *GitAdapter) FileAt(ref, path string) ([]byte, error) {
	key := ref + ":" + path
	if data, ok := a.fileCache[key]; ok {
		return data, nil
	}
	var data []byte
	var err error
	if a.repo != nil {
		data, err = a.fileAtGoGit(ref, path)
	} else {
		data, err = a.runGit("show", key)
	}
	if err != nil {
		return nil, err
	}
	a.fileCache[key] = data
	return data, nil
}

func (a *GitAdapter) fileAtGoGit(ref, path string) ([]byte, error) {
	tree, err := a.treeAt(ref)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(filepath.ToSlash(path))
	if err != nil {
		return nil, fmt.Errorf("file %s at %s: %w", path, ref, err)
	}
	reader, err := file.Blob.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close() //nolint:errcheck
	return io.ReadAll(reader)
}

func (a *GitAdapter) runGit(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = a.root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}
