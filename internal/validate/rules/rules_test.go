package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/graph"
	"github.com/contentops/packlint/internal/validate"
	"github.com/contentops/packlint/pkg/versioning"
)

func item(t content.ContentType, packID, id string) *content.ContentItem {
	return &content.ContentItem{
		Type:        t,
		ObjectID:    id,
		Name:        id,
		Path:        "Packs/" + packID + "/" + string(t) + "s/" + id + ".yml",
		PackID:      packID,
		FromVersion: versioning.MustParse(versioning.Floor),
		ToVersion:   versioning.MustParse(versioning.Ceiling),
		Data:        map[string]any{},
	}
}

func codes(results []validate.Result) []string {
	out := make([]string, 0, len(results))
	for _, res := range results {
		out = append(out, res.Code)
	}
	return out
}

func TestPackMovedRule(t *testing.T) {
	moved := item(content.TypeScript, "Beta", "S")
	moved.GitStatus = content.StatusRenamed
	moved.OldPath = "Packs/Alpha/Scripts/S.yml"

	renamedInPlace := item(content.TypeScript, "Alpha", "R")
	renamedInPlace.GitStatus = content.StatusRenamed
	renamedInPlace.OldPath = "Packs/Alpha/Scripts/Old.yml"

	results := (&packMoved{}).Check(validate.Input{Items: []*content.ContentItem{moved, renamedInPlace}})
	require.Len(t, results, 1)
	assert.Equal(t, "BA114", results[0].Code)
	assert.Equal(t, moved.Path, results[0].Path)
}

func TestVersionRangeOrderRule(t *testing.T) {
	bad := item(content.TypeScript, "Alpha", "S")
	bad.FromVersion = versioning.MustParse("7.0.0")
	bad.ToVersion = versioning.MustParse("6.0.0")

	results := (&versionRangeOrder{}).Check(validate.Input{Items: []*content.ContentItem{bad}})
	require.Len(t, results, 1)
	assert.Equal(t, "BA118", results[0].Code)
}

func TestMarketplacesSubsetRule(t *testing.T) {
	pack := &content.Pack{ID: "Alpha", Marketplaces: []content.Marketplace{content.MarketplaceXSOAR}}
	wide := item(content.TypeScript, "Alpha", "S")
	wide.Pack = pack
	wide.MarketplacesDeclared = true
	wide.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR, content.MarketplaceXPANSE}

	results := (&marketplacesSubsetOfPack{}).Check(validate.Input{Items: []*content.ContentItem{wide}})
	require.Len(t, results, 1)
	assert.Equal(t, "BA121", results[0].Code)
}

func TestCommandRemovedRule(t *testing.T) {
	old := item(content.TypeIntegration, "Alpha", "API")
	old.Integration = &content.IntegrationDetail{Commands: []content.Command{
		{Name: "api-get"}, {Name: "api-delete"},
	}}
	current := item(content.TypeIntegration, "Alpha", "API")
	current.Integration = &content.IntegrationDetail{Commands: []content.Command{{Name: "api-get"}}}
	current.OldBase = old

	results := (&commandRemoved{}).Check(validate.Input{Items: []*content.ContentItem{current}})
	require.Len(t, results, 1)
	assert.Equal(t, "BC105", results[0].Code)
	assert.Contains(t, results[0].Message, "api-delete")
}

func TestMarketplaceRemovedRule(t *testing.T) {
	old := item(content.TypeScript, "Alpha", "S")
	old.MarketplacesDeclared = true
	old.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR, content.MarketplaceV2}

	current := item(content.TypeScript, "Alpha", "S")
	current.MarketplacesDeclared = true
	current.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR}
	current.OldBase = old

	results := (&marketplaceRemoved{}).Check(validate.Input{Items: []*content.ContentItem{current}})
	require.Len(t, results, 1)
	assert.Equal(t, "BC108", results[0].Code)
}

func TestModuleRemovedRule(t *testing.T) {
	old := item(content.TypeScript, "Alpha", "S")
	old.ModulesDeclared = true
	old.SupportedModules = []string{"C1", "C3"}

	current := item(content.TypeScript, "Alpha", "S")
	current.ModulesDeclared = true
	current.SupportedModules = []string{"C1"}
	current.OldBase = old

	results := (&moduleRemoved{}).Check(validate.Input{Items: []*content.ContentItem{current}})
	require.Len(t, results, 1)
	assert.Equal(t, "BC115", results[0].Code)

	// Dropping the declaration entirely means "all modules": not a removal.
	undeclared := item(content.TypeScript, "Alpha", "S")
	undeclared.OldBase = old
	assert.Empty(t, (&moduleRemoved{}).Check(validate.Input{Items: []*content.ContentItem{undeclared}}))
}

func TestMarketplaceRemovedOnPackMetadata(t *testing.T) {
	rule := &marketplaceRemoved{}
	assert.Contains(t, rule.Meta().AppliesTo, content.TypePack)
	assert.Contains(t, (&moduleRemoved{}).Meta().AppliesTo, content.TypePack)

	old := item(content.TypePack, "Alpha", "Alpha")
	old.MarketplacesDeclared = true
	old.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR, content.MarketplaceV2}

	current := item(content.TypePack, "Alpha", "Alpha")
	current.Path = "Packs/Alpha/pack_metadata.json"
	current.MarketplacesDeclared = true
	current.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR}
	current.OldBase = old

	results := rule.Check(validate.Input{Items: []*content.ContentItem{current}})
	require.Len(t, results, 1)
	assert.Equal(t, "BC108", results[0].Code)
	assert.Equal(t, "Packs/Alpha/pack_metadata.json", results[0].Path)
}

func TestIDEqualsNameOnJSONContent(t *testing.T) {
	rule := &idEqualsName{}
	assert.Contains(t, rule.Meta().AppliesTo, content.TypeDashboard)
	assert.Contains(t, rule.Meta().AppliesTo, content.TypeIncidentType)

	dash := item(content.TypeDashboard, "Alpha", "abc")
	dash.Name = "ABC Dashboard"
	dash.Data = map[string]any{"id": "abc", "name": "ABC Dashboard"}

	results := rule.Check(validate.Input{Items: []*content.ContentItem{dash}})
	require.Len(t, results, 1)
	assert.Equal(t, "BA100", results[0].Code)
	assert.True(t, results[0].Fixable)

	require.NoError(t, rule.Fix(dash))
	assert.Equal(t, "abc", dash.Name)
	assert.Empty(t, rule.Check(validate.Input{Items: []*content.ContentItem{dash}}))
}

func TestModuleMismatchPackDependencyRule(t *testing.T) {
	rule := &moduleMismatch{}
	assert.Contains(t, rule.Meta().AppliesTo, content.TypePack)

	alpha := &content.Pack{
		ID:           "Alpha",
		MetadataPath: "Packs/Alpha/pack_metadata.json",
		Metadata: content.PackMetadata{
			Dependencies: map[string]content.PackDependency{"Beta": {Mandatory: true}},
		},
	}
	beta := &content.Pack{
		ID:               "Beta",
		MetadataPath:     "Packs/Beta/pack_metadata.json",
		ModulesDeclared:  true,
		SupportedModules: []string{"C1"},
	}
	packs := map[string]*content.Pack{"Alpha": alpha, "Beta": beta}

	alphaMeta := item(content.TypePack, "Alpha", "Alpha")
	alphaMeta.Path = alpha.MetadataPath
	alphaMeta.ModulesDeclared = true
	alphaMeta.SupportedModules = []string{"C1", "X9"}

	g := graph.Build(packs, []*content.ContentItem{alphaMeta})
	results := rule.Check(validate.Input{Items: []*content.ContentItem{alphaMeta}, Graph: g})
	require.Len(t, results, 1)
	assert.Equal(t, "GR108", results[0].Code)
	assert.Contains(t, results[0].Message, "X9")
	assert.Contains(t, results[0].Message, "Beta")
}

func TestMarketplaceMismatchReportsOncePerSource(t *testing.T) {
	pack := &content.Pack{ID: "Alpha", Marketplaces: []content.Marketplace{content.MarketplaceXSOAR, content.MarketplaceV2}}
	packs := map[string]*content.Pack{"Alpha": pack}

	first := item(content.TypeScript, "Alpha", "First")
	first.MarketplacesDeclared = true
	first.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR}

	second := item(content.TypeScript, "Alpha", "Second")
	second.MarketplacesDeclared = true
	second.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR}

	flow := item(content.TypePlaybook, "Alpha", "Flow")
	flow.MarketplacesDeclared = true
	flow.Marketplaces = []content.Marketplace{content.MarketplaceXSOAR, content.MarketplaceV2}
	flow.Playbook = &content.PlaybookDetail{Tasks: []content.Task{
		{ID: "1", ScriptName: "First"},
		{ID: "2", ScriptName: "Second"},
	}}

	g := graph.Build(packs, []*content.ContentItem{first, second, flow})
	results := (&marketplaceMismatchUses{}).Check(validate.Input{Items: []*content.ContentItem{flow}, Graph: g})
	require.Len(t, results, 1)
	assert.Equal(t, "GR100", results[0].Code)
	assert.Equal(t, flow.Path, results[0].Path)
	assert.Contains(t, results[0].Message, "First")
	assert.Contains(t, results[0].Message, "Second")
	assert.Contains(t, results[0].Message, string(content.MarketplaceV2))
}

func TestPackVersionRaisedRule(t *testing.T) {
	changed := item(content.TypeScript, "Alpha", "S")
	changed.GitStatus = content.StatusModified

	pack := &content.Pack{
		ID:             "Alpha",
		MetadataPath:   "Packs/Alpha/pack_metadata.json",
		CurrentVersion: versioning.MustParse("1.0.0"),
	}
	in := validate.Input{
		Items: []*content.ContentItem{changed},
		Packs: map[string]*content.Pack{"Alpha": pack},
	}

	// No metadata change at all: the version cannot have been raised.
	results := (&packVersionRaised{}).Check(in)
	require.Len(t, results, 1)
	assert.Equal(t, "PA114", results[0].Code)
	assert.Contains(t, results[0].Message, "1.0.1")

	// Same version as the baseline is still a violation.
	pack.OldBase = &content.Pack{CurrentVersion: versioning.MustParse("1.0.0")}
	results = (&packVersionRaised{}).Check(in)
	require.Len(t, results, 1)

	// A raised version passes.
	pack.CurrentVersion = versioning.MustParse("1.0.1")
	assert.Empty(t, (&packVersionRaised{}).Check(in))
}

func TestReleaseNotesAddedRule(t *testing.T) {
	changed := item(content.TypeScript, "Alpha", "S")
	changed.GitStatus = content.StatusModified

	pack := &content.Pack{ID: "Alpha", MetadataPath: "Packs/Alpha/pack_metadata.json"}
	in := validate.Input{
		Items:               []*content.ContentItem{changed},
		Packs:               map[string]*content.Pack{"Alpha": pack},
		ChangedReleaseNotes: map[string][]string{},
	}

	results := (&releaseNotesAdded{}).Check(in)
	require.Len(t, results, 1)
	assert.Equal(t, "RN100", results[0].Code)

	in.ChangedReleaseNotes["Alpha"] = []string{"Packs/Alpha/ReleaseNotes/1_0_1.md"}
	assert.Empty(t, (&releaseNotesAdded{}).Check(in))

	// Brand-new packs need no release note.
	pack.GitStatus = content.StatusAdded
	in.ChangedReleaseNotes = map[string][]string{}
	assert.Empty(t, (&releaseNotesAdded{}).Check(in))
}

func TestDeprecatedDisplayFix(t *testing.T) {
	deprecated := item(content.TypeIntegration, "Alpha", "API")
	deprecated.Deprecated = true
	deprecated.DisplayName = "Alpha API"
	deprecated.Data = map[string]any{"display": "Alpha API"}

	rule := &deprecatedDisplaySuffix{}
	results := rule.Check(validate.Input{Items: []*content.ContentItem{deprecated}})
	require.Len(t, results, 1)
	assert.Equal(t, "IN101", results[0].Code)
	assert.True(t, results[0].Fixable)

	require.NoError(t, rule.Fix(deprecated))
	assert.Equal(t, "Alpha API (Deprecated)", deprecated.DisplayName)
	assert.Empty(t, rule.Check(validate.Input{Items: []*content.ContentItem{deprecated}}))
}

func TestEmptySupportedModulesRule(t *testing.T) {
	empty := item(content.TypeScript, "Alpha", "S")
	empty.ModulesDeclared = true
	empty.SupportedModules = []string{}

	results := (&emptySupportedModules{}).Check(validate.Input{Items: []*content.ContentItem{empty}})
	assert.Equal(t, []string{"BA119"}, codes(results))

	undeclared := item(content.TypeScript, "Alpha", "S")
	assert.Empty(t, (&emptySupportedModules{}).Check(validate.Input{Items: []*content.ContentItem{undeclared}}))
}
