package vcs

import (
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/packlint/internal/content"
)

func writeFile(t *testing.T, fs billy.Filesystem, path, data string) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	_, err = f.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func commitAll(t *testing.T, repo *git.Repository, msg string) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func memAdapter(t *testing.T) (*GitAdapter, billy.Filesystem, *git.Repository) {
	t.Helper()
	fs := memfs.New()
	repo, err := git.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	return &GitAdapter{repo: repo, fileCache: make(map[string][]byte)}, fs, repo
}

func statusByPath(changes []Change) map[string]Change {
	out := make(map[string]Change, len(changes))
	for _, c := range changes {
		out[c.Path] = c
	}
	return out
}

func TestChangesAgainstBaseline(t *testing.T) {
	adapter, fs, repo := memAdapter(t)

	writeFile(t, fs, "Packs/Alpha/Integrations/Alpha/Alpha.yml", "name: Alpha\n")
	writeFile(t, fs, "Packs/Alpha/Scripts/Old/Old.yml", "name: Old\n")
	base := commitAll(t, repo, "base")

	writeFile(t, fs, "Packs/Alpha/Integrations/Alpha/Alpha.yml", "name: Alpha\ndeprecated: true\n")
	writeFile(t, fs, "Packs/Alpha/Playbooks/playbook-New.yml", "name: New\n")
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Remove("Packs/Alpha/Scripts/Old/Old.yml")
	require.NoError(t, err)
	commitAll(t, repo, "change")

	changes, err := adapter.Changes(base, false)
	require.NoError(t, err)
	byPath := statusByPath(changes)

	assert.Equal(t, content.StatusModified, byPath["Packs/Alpha/Integrations/Alpha/Alpha.yml"].Status)
	assert.Equal(t, content.StatusAdded, byPath["Packs/Alpha/Playbooks/playbook-New.yml"].Status)
	assert.Equal(t, content.StatusDeleted, byPath["Packs/Alpha/Scripts/Old/Old.yml"].Status)
}

func TestChangesUntracked(t *testing.T) {
	adapter, fs, repo := memAdapter(t)

	writeFile(t, fs, "Packs/Alpha/pack_metadata.json", "{}\n")
	base := commitAll(t, repo, "base")

	writeFile(t, fs, "Packs/Alpha/Scripts/New/New.yml", "name: New\n")

	changes, err := adapter.Changes(base, false)
	require.NoError(t, err)
	assert.NotContains(t, statusByPath(changes), "Packs/Alpha/Scripts/New/New.yml")

	changes, err = adapter.Changes(base, true)
	require.NoError(t, err)
	byPath := statusByPath(changes)
	require.Contains(t, byPath, "Packs/Alpha/Scripts/New/New.yml")
	assert.Equal(t, content.StatusAdded, byPath["Packs/Alpha/Scripts/New/New.yml"].Status)
}

func TestFileAtReturnsBaselineContent(t *testing.T) {
	adapter, fs, repo := memAdapter(t)

	writeFile(t, fs, "Packs/Alpha/Integrations/Alpha/Alpha.yml", "name: Alpha\n")
	base := commitAll(t, repo, "base")

	writeFile(t, fs, "Packs/Alpha/Integrations/Alpha/Alpha.yml", "name: AlphaRenamed\n")
	commitAll(t, repo, "rename field")

	data, err := adapter.FileAt(base, "Packs/Alpha/Integrations/Alpha/Alpha.yml")
	require.NoError(t, err)
	assert.Equal(t, "name: Alpha\n", string(data))

	// Second read hits the cache.
	again, err := adapter.FileAt(base, "Packs/Alpha/Integrations/Alpha/Alpha.yml")
	require.NoError(t, err)
	assert.Equal(t, data, again)

	_, err = adapter.FileAt(base, "Packs/Alpha/Integrations/Alpha/missing.yml")
	assert.Error(t, err)
}

func TestChangesSortStable(t *testing.T) {
	adapter, fs, repo := memAdapter(t)

	writeFile(t, fs, "Packs/Alpha/pack_metadata.json", "{}\n")
	base := commitAll(t, repo, "base")

	writeFile(t, fs, "Packs/Alpha/Scripts/B/B.yml", "name: B\n")
	writeFile(t, fs, "Packs/Alpha/Scripts/A/A.yml", "name: A\n")
	commitAll(t, repo, "add scripts")

	changes, err := adapter.Changes(base, false)
	require.NoError(t, err)
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{
		"Packs/Alpha/Scripts/A/A.yml",
		"Packs/Alpha/Scripts/B/B.yml",
	}, paths)
}
