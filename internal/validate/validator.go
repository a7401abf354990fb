package validate

import (
	"sort"
	"sync"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/graph"
	"github.com/contentops/packlint/internal/repo"
)

// Result is a single validation finding.
type Result struct {
	Code         string   `json:"code"`
	Path         string   `json:"path"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	RelatedField string   `json:"related_field,omitempty"`
	Fixable      bool     `json:"fixable"`

	// Item is the offending entity; nil for run-level synthetic results.
	Item *content.ContentItem `json:"-"`
}

// FixOutcome records one applied (or failed) fix.
type FixOutcome struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Failed  bool   `json:"failed,omitempty"`
}

// Metadata declares a validator's identity and selection constraints.
type Metadata struct {
	Code        string
	Description string
	Rationale   string
	FixMessage  string
	AutoFixable bool

	// AppliesTo restricts the entity types; nil means every non-pack type.
	AppliesTo []content.ContentType
	// GitStatuses restricts by change status; nil means all statuses.
	GitStatuses []content.GitStatus
	// Modes restricts by execution mode; nil means all modes.
	Modes []repo.ExecutionMode
	// RelatedFiles, when set, keeps only entities for which one of these
	// auxiliary file kinds changed in this run.
	RelatedFiles []content.RelatedFileType
	// IncludeTestContent opts test playbooks/scripts into the filtered set.
	IncludeTestContent bool
	// NeedsGraph marks graph-dependent validators; they are skipped with a
	// single run-level error when the graph failed to build.
	NeedsGraph bool
	// IncludeUnloadable opts parse-failed items in (structural family only).
	IncludeUnloadable bool
}

// Input is what a validator sees: its filtered entity batch plus the run's
// read-only context.
type Input struct {
	Items []*content.ContentItem
	Graph graph.Backend
	// Packs holds every pack loaded for this run, keyed by id.
	Packs map[string]*content.Pack
	// ChangedReleaseNotes maps pack id to release-note files added in this run.
	ChangedReleaseNotes map[string][]string
}

// Validator is a single rule: stable code, declarative filters, and a pure
// check over its batch of entities.
type Validator interface {
	Meta() Metadata
	Check(in Input) []Result
}

// Fixer is implemented by validators that can repair their own findings. Fix
// mutates the item in memory; the dispatcher persists and re-checks.
type Fixer interface {
	Validator
	Fix(item *content.ContentItem) error
}

// Fail builds a Result for an offending item from the catalog entry backing
// this metadata.
func (m Metadata) Fail(item *content.ContentItem, args ...any) Result {
	record, _ := Lookup(m.Code)
	return Result{
		Code:         m.Code,
		Path:         item.Path,
		Message:      Message(m.Code, args...),
		Severity:     record.DefaultSeverity,
		RelatedField: record.RelatedField,
		Fixable:      m.AutoFixable,
		Item:         item,
	}
}

var (
	registryMu sync.Mutex
	registry   []Validator
)

// Register adds a validator to the process-wide registry. Rule files call
// this from init; a duplicate code panics since the catalog forbids reuse.
func Register(v Validator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	code := v.Meta().Code
	if _, ok := Lookup(code); !ok {
		panic("validator registered with code missing from catalog: " + code)
	}
	for _, existing := range registry {
		if existing.Meta().Code == code {
			panic("duplicate validator registration for code " + code)
		}
	}
	registry = append(registry, v)
}

// Registered returns all validators in stable error-code order.
func Registered() []Validator {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := append([]Validator(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].Meta().Code < out[j].Meta().Code })
	return out
}

// resetRegistryForTesting swaps in an empty registry and returns a restore
// function, for test isolation.
func resetRegistryForTesting() func() { //nolint:unused
	registryMu.Lock()
	saved := registry
	registry = nil
	registryMu.Unlock()
	return func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	}
}
