package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/vcs"
)

func writeRepoFile(t *testing.T, root, rel, data string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(data), 0o644))
}

func fixtureRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeRepoFile(t, root, "Packs/Alpha/pack_metadata.json", "{}")
	writeRepoFile(t, root, "Packs/Alpha/Integrations/Alpha/Alpha.yml", "name: Alpha")
	writeRepoFile(t, root, "Packs/Alpha/Integrations/Alpha/README.md", "docs")
	writeRepoFile(t, root, "Packs/Alpha/Scripts/Helper/Helper.yml", "name: Helper")
	writeRepoFile(t, root, "Packs/Alpha/Scripts/Helper/Helper_test.yml", "test body")
	writeRepoFile(t, root, "Packs/Alpha/ReleaseNotes/1_0_1.md", "notes")
	writeRepoFile(t, root, "Packs/Beta/pack_metadata.json", "{}")
	writeRepoFile(t, root, "Packs/Beta/Playbooks/playbook-Beta.yml", "name: Beta")
	return root
}

func paths(files []DiscoveredFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestDiscoverAllFiles(t *testing.T) {
	root := fixtureRepo(t)
	result, err := Discover(Options{Root: root, Mode: ModeAllFiles}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Packs/Alpha/Integrations/Alpha/Alpha.yml",
		"Packs/Alpha/Scripts/Helper/Helper.yml",
		"Packs/Alpha/pack_metadata.json",
		"Packs/Beta/Playbooks/playbook-Beta.yml",
		"Packs/Beta/pack_metadata.json",
	}, paths(result.Files))
	// README is redirected material, unit tests and release notes are skipped.
	assert.NotContains(t, paths(result.Files), "Packs/Alpha/Scripts/Helper/Helper_test.yml")
}

func TestDiscoverAllFilesExcludeGlobs(t *testing.T) {
	root := fixtureRepo(t)
	result, err := Discover(Options{
		Root:         root,
		Mode:         ModeAllFiles,
		ExcludeGlobs: []string{"Packs/Beta/**"},
	}, nil)
	require.NoError(t, err)
	for _, p := range paths(result.Files) {
		assert.NotContains(t, p, "Packs/Beta/")
	}
}

func TestDiscoverSpecificFiles(t *testing.T) {
	root := fixtureRepo(t)
	result, err := Discover(Options{
		Root: root,
		Mode: ModeSpecificFiles,
		FilePaths: []string{
			"Packs/Alpha/Integrations/Alpha/Alpha.yml",
			"Packs/Alpha/Integrations/Alpha/Alpha_description.md",
			"Packs/Alpha/Scripts/Gone/Gone.yml",
		},
	}, nil)
	require.NoError(t, err)

	byPath := map[string]DiscoveredFile{}
	for _, f := range result.Files {
		byPath[f.Path] = f
	}
	require.Contains(t, byPath, "Packs/Alpha/Integrations/Alpha/Alpha.yml")
	// The description change redirects to the owning integration.
	assert.Contains(t, byPath["Packs/Alpha/Integrations/Alpha/Alpha.yml"].RelatedChanged, content.RelatedDescription)
	// A path that no longer exists surfaces as deleted.
	assert.Equal(t, content.StatusDeleted, byPath["Packs/Alpha/Scripts/Gone/Gone.yml"].Status)
}

func TestDiscoverSpecificFilesKeepsUnclassifiable(t *testing.T) {
	root := fixtureRepo(t)
	writeRepoFile(t, root, "Packs/Alpha/Notes/random.yml", "key: value")

	result, err := Discover(Options{
		Root:      root,
		Mode:      ModeSpecificFiles,
		FilePaths: []string{"Packs/Alpha/Notes/random.yml"},
	}, nil)
	require.NoError(t, err)

	// An explicitly named file stays in scope even when it matches no known
	// content layout; only excluded globs are dropped.
	assert.Equal(t, []string{"Packs/Alpha/Notes/random.yml"}, paths(result.Files))
	assert.Empty(t, result.Ignored)

	excludedResult, err := Discover(Options{
		Root:         root,
		Mode:         ModeSpecificFiles,
		FilePaths:    []string{"Packs/Alpha/Notes/random.yml"},
		ExcludeGlobs: []string{"Packs/Alpha/Notes/**"},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, excludedResult.Files)
	assert.Equal(t, []string{"Packs/Alpha/Notes/random.yml"}, excludedResult.Ignored)
}

type fakeAdapter struct {
	changes []vcs.Change
	files   map[string][]byte
}

func (f *fakeAdapter) Changes(string, bool) ([]vcs.Change, error) { return f.changes, nil }
func (f *fakeAdapter) FileAt(_, path string) ([]byte, error) {
	if data, ok := f.files[path]; ok {
		return data, nil
	}
	return nil, os.ErrNotExist
}

func TestDiscoverGit(t *testing.T) {
	root := fixtureRepo(t)
	adapter := &fakeAdapter{changes: []vcs.Change{
		{Path: "Packs/Alpha/Integrations/Alpha/Alpha.yml", Status: content.StatusModified},
		{Path: "Packs/Alpha/Integrations/Alpha/README.md", Status: content.StatusModified},
		{Path: "Packs/Alpha/.pack-ignore", Status: content.StatusModified},
		{Path: "Packs/Alpha/ReleaseNotes/1_0_1.md", Status: content.StatusAdded},
		{Path: "Packs/Beta/Playbooks/playbook-Beta.yml", OldPath: "Packs/Alpha/Playbooks/playbook-Beta.yml", Status: content.StatusRenamed},
		{Path: ".github/workflow.yml", Status: content.StatusModified},
	}}

	result, err := Discover(Options{Root: root, Mode: ModeUseGit, BaselineRef: "origin/master"}, adapter)
	require.NoError(t, err)

	assert.Equal(t, []string{"Packs/Alpha/.pack-ignore"}, result.ChangedPackIgnores)
	assert.Equal(t, []string{"Packs/Alpha/ReleaseNotes/1_0_1.md"}, result.ChangedReleaseNotes["Alpha"])
	assert.Contains(t, result.Ignored, ".github/workflow.yml")

	byPath := map[string]DiscoveredFile{}
	for _, f := range result.Files {
		byPath[f.Path] = f
	}
	assert.Contains(t, byPath["Packs/Alpha/Integrations/Alpha/Alpha.yml"].RelatedChanged, content.RelatedReadme)
	assert.Equal(t, content.StatusRenamed, byPath["Packs/Beta/Playbooks/playbook-Beta.yml"].Status)
	assert.Equal(t, "Packs/Alpha/Playbooks/playbook-Beta.yml", byPath["Packs/Beta/Playbooks/playbook-Beta.yml"].OldPath)
}

func TestDiscoverUnknownMode(t *testing.T) {
	_, err := Discover(Options{Root: t.TempDir(), Mode: "bogus"}, nil)
	assert.Error(t, err)
}
