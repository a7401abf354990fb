package validate_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/packlint/internal/repo"
	"github.com/contentops/packlint/internal/validate"
	_ "github.com/contentops/packlint/internal/validate/rules"
	"github.com/contentops/packlint/pkg/exitcode"
)

const mismatchIntegration = `commonfields:
  id: AlphaAPI
name: WrongName
display: Alpha API
fromversion: 4.5.0
configuration:
  - name: url
script:
  dockerimage: demisto/python3:latest
  commands:
    - name: alpha-get
      description: Get things.
`

const helperScript = `commonfields:
  id: Helper
name: Helper
fromversion: 6.0.0
args:
  - name: input
`

const flowPlaybook = `id: Flow
name: Flow
fromversion: 6.0.0
tasks:
  "1":
    type: condition
    task:
      scriptName: Ghost
    conditions:
      - label: "yes"
    nexttasks:
      "yes":
        - "2"
  "2":
    type: regular
    task:
      scriptName: Helper
`

const alphaMetadata = `{
    "name": "Alpha",
    "description": "Alpha pack",
    "support": "xsoar",
    "currentVersion": "1.0.0",
    "author": "Tester",
    "categories": ["Utilities"]
}`

const alphaIgnore = `[file:Helper.yml]
ignore=SC100,BC105
`

func writeRepoFile(t *testing.T, root, rel, data string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(data), 0o644))
}

func fixtureRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeRepoFile(t, root, "Packs/Alpha/pack_metadata.json", alphaMetadata)
	writeRepoFile(t, root, "Packs/Alpha/.pack-ignore", alphaIgnore)
	writeRepoFile(t, root, "Packs/Alpha/Integrations/AlphaAPI/AlphaAPI.yml", mismatchIntegration)
	writeRepoFile(t, root, "Packs/Alpha/Scripts/Helper/Helper.yml", helperScript)
	writeRepoFile(t, root, "Packs/Alpha/Playbooks/playbook-Flow.yml", flowPlaybook)
	return root
}

func runAllFiles(t *testing.T, root string, fix bool) *validate.RunReport {
	t.Helper()
	engine := validate.NewEngine(validate.RunOptions{
		Root: root,
		Mode: repo.ModeAllFiles,
		Fix:  fix,
	})
	rep, err := engine.Run()
	require.NoError(t, err)
	return rep
}

func codesByPath(rep *validate.RunReport) map[string][]string {
	out := map[string][]string{}
	for _, res := range rep.Results {
		out[res.Path] = append(out[res.Path], res.Code)
	}
	return out
}

func TestEngineAllFiles(t *testing.T) {
	root := fixtureRepo(t)
	rep := runAllFiles(t, root, false)
	codes := codesByPath(rep)

	integration := codes["Packs/Alpha/Integrations/AlphaAPI/AlphaAPI.yml"]
	assert.Contains(t, integration, "BA100")
	assert.Contains(t, integration, "BA106")
	assert.Contains(t, integration, "DO100")

	playbook := codes["Packs/Alpha/Playbooks/playbook-Flow.yml"]
	assert.Contains(t, playbook, "PB100")
	assert.Contains(t, playbook, "GR103")

	// SC100 on Helper.yml is suppressed via .pack-ignore; the BC105 entry is
	// not suppressible and surfaces as BA120 against the ignore file.
	assert.NotContains(t, codes["Packs/Alpha/Scripts/Helper/Helper.yml"], "SC100")
	assert.Contains(t, codes["Packs/Alpha/.pack-ignore"], "BA120")

	assert.True(t, rep.HasErrors())
	assert.Equal(t, exitcode.ValidationError, rep.ExitCode(false))
}

func TestEngineResultsSortedAndDeterministic(t *testing.T) {
	root := fixtureRepo(t)

	first := runAllFiles(t, root, false)
	second := runAllFiles(t, root, false)

	a, err := json.Marshal(first.Results)
	require.NoError(t, err)
	b, err := json.Marshal(second.Results)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	sorted := sort.SliceIsSorted(first.Results, func(i, j int) bool {
		ri, rj := first.Results[i], first.Results[j]
		if ri.Path != rj.Path {
			return ri.Path < rj.Path
		}
		if ri.Code != rj.Code {
			return ri.Code < rj.Code
		}
		return ri.Message <= rj.Message
	})
	assert.True(t, sorted)
}

func TestEngineFixConverges(t *testing.T) {
	root := fixtureRepo(t)

	fixed := runAllFiles(t, root, true)
	assert.NotEmpty(t, fixed.Fixes)

	// The fixed file now carries the aligned name and raised fromversion.
	data, err := os.ReadFile(filepath.Join(root, "Packs/Alpha/Integrations/AlphaAPI/AlphaAPI.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: AlphaAPI")
	assert.Contains(t, string(data), "fromversion: 5.0.0")

	// A second pass reports no fixable base violations on the integration.
	again := runAllFiles(t, root, false)
	codes := codesByPath(again)
	integration := codes["Packs/Alpha/Integrations/AlphaAPI/AlphaAPI.yml"]
	assert.NotContains(t, integration, "BA100")
	assert.NotContains(t, integration, "BA106")
	// The unfixable docker violation remains.
	assert.Contains(t, integration, "DO100")
}

func TestEngineCategoryFilter(t *testing.T) {
	root := fixtureRepo(t)
	engine := validate.NewEngine(validate.RunOptions{
		Root:       root,
		Mode:       repo.ModeAllFiles,
		Categories: []string{"DO"},
	})
	rep, err := engine.Run()
	require.NoError(t, err)
	for _, res := range rep.Results {
		if res.Code == "BA120" {
			continue // suppression misuse is reported regardless of category
		}
		assert.Equal(t, "DO", res.Code[:2])
	}
}

func TestEngineDenylist(t *testing.T) {
	root := fixtureRepo(t)
	engine := validate.NewEngine(validate.RunOptions{
		Root:      root,
		Mode:      repo.ModeAllFiles,
		DenyCodes: []string{"DO100"},
	})
	rep, err := engine.Run()
	require.NoError(t, err)
	for _, res := range rep.Results {
		assert.NotEqual(t, "DO100", res.Code)
	}
}

func TestEngineSpecificFiles(t *testing.T) {
	root := fixtureRepo(t)
	engine := validate.NewEngine(validate.RunOptions{
		Root:      root,
		Mode:      repo.ModeSpecificFiles,
		FilePaths: []string{"Packs/Alpha/Integrations/AlphaAPI/AlphaAPI.yml"},
	})
	rep, err := engine.Run()
	require.NoError(t, err)
	codes := codesByPath(rep)
	assert.Contains(t, codes["Packs/Alpha/Integrations/AlphaAPI/AlphaAPI.yml"], "BA100")
	assert.NotContains(t, codes, "Packs/Alpha/Playbooks/playbook-Flow.yml")
}

func TestEngineSpecificFilesUnknownType(t *testing.T) {
	root := fixtureRepo(t)
	writeRepoFile(t, root, "Packs/Alpha/Notes/random.yml", "key: value\n")

	engine := validate.NewEngine(validate.RunOptions{
		Root:      root,
		Mode:      repo.ModeSpecificFiles,
		FilePaths: []string{"Packs/Alpha/Notes/random.yml"},
	})
	rep, err := engine.Run()
	require.NoError(t, err)
	assert.Contains(t, codesByPath(rep)["Packs/Alpha/Notes/random.yml"], "BA102")
}

func TestEngineParallelMatchesSequential(t *testing.T) {
	root := fixtureRepo(t)
	sequential := runAllFiles(t, root, false)

	engine := validate.NewEngine(validate.RunOptions{
		Root: root,
		Mode: repo.ModeAllFiles,
		Jobs: 4,
	})
	parallel, err := engine.Run()
	require.NoError(t, err)

	a, err := json.Marshal(sequential.Results)
	require.NoError(t, err)
	b, err := json.Marshal(parallel.Results)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReportExitCodes(t *testing.T) {
	rep := &validate.RunReport{Results: []validate.Result{{Severity: validate.SeverityWarning}}}
	assert.Equal(t, exitcode.Success, rep.ExitCode(false))
	assert.Equal(t, exitcode.ValidationError, rep.ExitCode(true))

	rep.Results = append(rep.Results, validate.Result{Severity: validate.SeverityError})
	assert.Equal(t, exitcode.ValidationError, rep.ExitCode(false))
}
