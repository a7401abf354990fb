// Package content models the typed entities of a platform content repository:
// packs and the items they aggregate, as parsed from YAML and JSON sources.
package content

import (
	"github.com/contentops/packlint/pkg/versioning"
)

// ContentType tags a content item with its kind. The set is closed: file
// typing must resolve every parsed item to exactly one of these.
type ContentType string

const (
	TypeIntegration       ContentType = "Integration"
	TypeScript            ContentType = "Script"
	TypePlaybook          ContentType = "Playbook"
	TypeIncidentField     ContentType = "IncidentField"
	TypeIndicatorField    ContentType = "IndicatorField"
	TypeCaseField         ContentType = "CaseField"
	TypeLayout            ContentType = "Layout"
	TypeLayoutRule        ContentType = "LayoutRule"
	TypeMapper            ContentType = "Mapper"
	TypeClassifier        ContentType = "Classifier"
	TypeDashboard         ContentType = "Dashboard"
	TypeWidget            ContentType = "Widget"
	TypeReport            ContentType = "Report"
	TypeCorrelationRule   ContentType = "CorrelationRule"
	TypeModelingRule      ContentType = "ModelingRule"
	TypeParsingRule       ContentType = "ParsingRule"
	TypeXSIAMDashboard    ContentType = "XSIAMDashboard"
	TypeXSIAMReport       ContentType = "XSIAMReport"
	TypeTrigger           ContentType = "Trigger"
	TypeWizard            ContentType = "Wizard"
	TypeJob               ContentType = "Job"
	TypeGenericField      ContentType = "GenericField"
	TypeGenericType       ContentType = "GenericType"
	TypeGenericModule     ContentType = "GenericModule"
	TypeGenericDefinition ContentType = "GenericDefinition"
	TypeIncidentType      ContentType = "IncidentType"
	TypeIndicatorType     ContentType = "IndicatorType"
	TypeList              ContentType = "List"
	TypePreProcessRule    ContentType = "PreProcessRule"
	TypeCaseLayout        ContentType = "CaseLayout"
	TypeCaseLayoutRule    ContentType = "CaseLayoutRule"
	TypePack              ContentType = "Pack"
	TypeTestPlaybook      ContentType = "TestPlaybook"
	TypeTestScript        ContentType = "TestScript"
)

// AllTypes lists every content type in a stable order.
var AllTypes = []ContentType{
	TypeIntegration, TypeScript, TypePlaybook, TypeIncidentField,
	TypeIndicatorField, TypeCaseField, TypeLayout, TypeLayoutRule, TypeMapper,
	TypeClassifier, TypeDashboard, TypeWidget, TypeReport, TypeCorrelationRule,
	TypeModelingRule, TypeParsingRule, TypeXSIAMDashboard, TypeXSIAMReport,
	TypeTrigger, TypeWizard, TypeJob, TypeGenericField, TypeGenericType,
	TypeGenericModule, TypeGenericDefinition, TypeIncidentType,
	TypeIndicatorType, TypeList, TypePreProcessRule, TypeCaseLayout,
	TypeCaseLayoutRule, TypePack, TypeTestPlaybook, TypeTestScript,
}

// NonPackTypes is AllTypes without Pack itself; the default applicability set
// for item-level validators.
var NonPackTypes = func() []ContentType {
	out := make([]ContentType, 0, len(AllTypes)-1)
	for _, t := range AllTypes {
		if t != TypePack {
			out = append(out, t)
		}
	}
	return out
}()

// IsTestContent reports whether the type is a test-only artifact.
func (t ContentType) IsTestContent() bool {
	return t == TypeTestPlaybook || t == TypeTestScript
}

// Marketplace is a product variant a content item may ship in.
type Marketplace string

const (
	MarketplaceXSOAR     Marketplace = "xsoar"
	MarketplaceXSOARSaaS Marketplace = "xsoar_saas"
	MarketplaceV2        Marketplace = "marketplacev2"
	MarketplaceXPANSE    Marketplace = "xpanse"
)

// KnownMarketplaces is the closed marketplace set.
var KnownMarketplaces = []Marketplace{
	MarketplaceXSOAR, MarketplaceXSOARSaaS, MarketplaceV2, MarketplaceXPANSE,
}

// DefaultMarketplaces applies when a pack declares none.
var DefaultMarketplaces = []Marketplace{MarketplaceXSOAR}

// MarketplaceSubset reports whether every marketplace in sub is present in super.
func MarketplaceSubset(sub, super []Marketplace) bool {
	set := make(map[Marketplace]struct{}, len(super))
	for _, m := range super {
		set[m] = struct{}{}
	}
	for _, m := range sub {
		if _, ok := set[m]; !ok {
			return false
		}
	}
	return true
}

// MarketplacesIntersect reports whether a and b share at least one marketplace.
func MarketplacesIntersect(a, b []Marketplace) bool {
	set := make(map[Marketplace]struct{}, len(a))
	for _, m := range a {
		set[m] = struct{}{}
	}
	for _, m := range b {
		if _, ok := set[m]; ok {
			return true
		}
	}
	return false
}

// MissingMarketplaces returns the members of want absent from have, in order.
func MissingMarketplaces(want, have []Marketplace) []Marketplace {
	set := make(map[Marketplace]struct{}, len(have))
	for _, m := range have {
		set[m] = struct{}{}
	}
	var missing []Marketplace
	for _, m := range want {
		if _, ok := set[m]; !ok {
			missing = append(missing, m)
		}
	}
	return missing
}

// GitStatus describes how a file changed relative to the run's baseline.
type GitStatus string

const (
	StatusAdded     GitStatus = "added"
	StatusModified  GitStatus = "modified"
	StatusRenamed   GitStatus = "renamed"
	StatusDeleted   GitStatus = "deleted"
	StatusUnchanged GitStatus = "unchanged"
)

// RelatedFileType names an auxiliary file owned by a content item.
type RelatedFileType string

const (
	RelatedReadme      RelatedFileType = "readme"
	RelatedDescription RelatedFileType = "description"
	RelatedImage       RelatedFileType = "image"
	RelatedSchema      RelatedFileType = "schema"
	RelatedTestData    RelatedFileType = "test_data"
	RelatedReleaseNote RelatedFileType = "release_note"
)

// Command is a single integration command.
type Command struct {
	Name        string
	Description string
	Deprecated  bool
	Arguments   []Argument
}

// Argument belongs to an integration command or a script.
type Argument struct {
	Name        string
	Description string
	Required    bool
}

// IntegrationDetail carries integration-specific derived fields.
type IntegrationDetail struct {
	Category    string
	DockerImage string
	IsFetch     bool
	Commands    []Command
}

// ScriptDetail carries script-specific derived fields.
type ScriptDetail struct {
	DockerImage string
	Arguments   []Argument
	ScriptType  string
}

// Task is a playbook task with its outgoing references.
type Task struct {
	ID              string
	Type            string
	ScriptName      string // scriptName field: references a script by name
	ScriptID        string // script field: script id or "integration|||command"
	PlaybookName    string // sub-playbook reference
	ConditionLabels []string
	NextTasks       map[string][]string // branch label -> task ids
	// SkipUnavailable marks the referenced content optional for this task.
	SkipUnavailable bool
}

// BranchTargets returns the condition labels that have an outgoing edge.
func (t Task) BranchTargets() map[string]bool {
	out := make(map[string]bool, len(t.NextTasks))
	for label := range t.NextTasks {
		out[label] = true
	}
	return out
}

// PlaybookDetail carries the parsed task graph.
type PlaybookDetail struct {
	Tasks []Task
}

// FieldDetail covers incident, indicator, case and generic fields.
type FieldDetail struct {
	CliName         string
	Group           int
	FieldType       string
	AssociatedTypes []string
}

// MapperDetail covers mappers and classifiers.
type MapperDetail struct {
	Type            string // mapping-incoming, mapping-outgoing, classification
	FieldCliNames   []string
	IncidentTypeIDs []string
}

// LayoutDetail carries references mined from layout tabs and sections.
type LayoutDetail struct {
	FieldCliNames []string
	ScriptIDs     []string
}

// ContentItem is one unit of platform content. Items are built once by the
// loader, mutated only by auto-fixers, and read-only to validators.
type ContentItem struct {
	Type        ContentType
	ObjectID    string
	Name        string
	DisplayName string

	Path         string
	RelatedFiles map[RelatedFileType]string

	FromVersion versioning.Version
	ToVersion   versioning.Version

	Marketplaces         []Marketplace
	MarketplacesDeclared bool
	Deprecated           bool

	// SupportedModules is nil when the key is absent ("all modules"); a
	// declared empty list is itself a violation.
	SupportedModules []string
	ModulesDeclared  bool

	GitStatus GitStatus
	// OldBase holds the baseline form of a modified or renamed item so
	// backward-compatibility rules can diff against it.
	OldBase *ContentItem
	OldPath string

	PackID string
	Pack   *Pack

	// Data is the raw parsed mapping for fields not modeled explicitly.
	Data map[string]any

	// LoadError marks the item unloadable; rules other than the structural
	// family skip it.
	LoadError error
	// TypeError records an ambiguous or unsupported file-type classification.
	TypeError error

	Integration *IntegrationDetail
	Script      *ScriptDetail
	Playbook    *PlaybookDetail
	Field       *FieldDetail
	Mapper      *MapperDetail
	Layout      *LayoutDetail

	doc    *yamlDoc
	isJSON bool
}

// Loadable reports whether the item parsed cleanly.
func (c *ContentItem) Loadable() bool {
	return c.LoadError == nil
}

// EffectiveMarketplaces returns the item's declared marketplaces, falling back
// to its pack's set when undeclared.
func (c *ContentItem) EffectiveMarketplaces() []Marketplace {
	if c.MarketplacesDeclared || c.Pack == nil {
		return c.Marketplaces
	}
	return c.Pack.Marketplaces
}

// PackDependency is one entry of pack metadata's dependencies map.
type PackDependency struct {
	Mandatory bool `json:"mandatory"`
}

// PackMetadata mirrors pack_metadata.json.
type PackMetadata struct {
	Name             string
	Description      string
	Support          string
	CurrentVersion   string
	Author           string
	Categories       []string
	Tags             []string
	UseCases         []string
	Keywords         []string
	Dependencies     map[string]PackDependency
	Marketplaces     []string
	SupportedModules []string
	Certification    string
	Price            int
	Created          string
	Updated          string
}

// Pack aggregates content items plus distribution metadata.
type Pack struct {
	ID           string // directory name under Packs/
	Path         string
	MetadataPath string
	Metadata     PackMetadata

	Marketplaces     []Marketplace
	SupportedModules []string
	ModulesDeclared  bool

	CurrentVersion versioning.Version

	Items []*ContentItem

	IgnorePath      string
	ReleaseNotesDir string

	GitStatus GitStatus
	OldBase   *Pack
	LoadError error

	Data map[string]any
}

// SupportLevel values accepted in pack metadata.
const (
	SupportXSOAR     = "xsoar"
	SupportPartner   = "partner"
	SupportDeveloper = "developer"
	SupportCommunity = "community"
)

// ModuleSubset reports whether every module in sub appears in super. A nil
// super means the pack does not constrain modules.
func ModuleSubset(sub, super []string) bool {
	if super == nil {
		return true
	}
	set := make(map[string]struct{}, len(super))
	for _, m := range super {
		set[m] = struct{}{}
	}
	for _, m := range sub {
		if _, ok := set[m]; !ok {
			return false
		}
	}
	return true
}

// MissingModules returns members of want absent from have, preserving order.
func MissingModules(want, have []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, m := range have {
		set[m] = struct{}{}
	}
	var missing []string
	for _, m := range want {
		if _, ok := set[m]; !ok {
			missing = append(missing, m)
		}
	}
	return missing
}
