// Package validate is the engine core: the error catalog, the validator
// registry and contract, per-pack suppression, and the dispatch pipeline.
package validate

import (
	"fmt"
	"sort"
	"strings"
)

// Severity shapes how a result affects the run outcome.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ErrorRecord is one catalog entry. Codes are two capital letters plus three
// digits; the letter prefix groups the rule family. Codes are append-only and
// never reused.
type ErrorRecord struct {
	Code            string
	Template        string
	RelatedField    string
	UIApplicable    bool
	DefaultSeverity Severity
}

// catalog is the process-wide immutable code table. It is populated once
// below; there is deliberately no mutation entry point.
var catalog = func() map[string]ErrorRecord {
	records := []ErrorRecord{
		// Structural
		{Code: "ST100", Template: "The file could not be parsed: %s", DefaultSeverity: SeverityError},
		{Code: "ST110", Template: "The file is missing the required %s key", DefaultSeverity: SeverityError},

		// Base (all content)
		{Code: "BA100", Template: "The id %q should equal the name %q", RelatedField: "id", UIApplicable: true, DefaultSeverity: SeverityError},
		{Code: "BA102", Template: "Unsupported or ambiguous file type: %s", DefaultSeverity: SeverityError},
		{Code: "BA106", Template: "The fromversion %s is below the supported platform floor %s", RelatedField: "fromversion", DefaultSeverity: SeverityError},
		{Code: "BA114", Template: "The file moved from pack %q to pack %q; content may not change packs without a migration", DefaultSeverity: SeverityError},
		{Code: "BA118", Template: "The fromversion %s is greater than the toversion %s", RelatedField: "fromversion", DefaultSeverity: SeverityError},
		{Code: "BA119", Template: "supportedModules is declared but empty; omit the key to support all modules", RelatedField: "supportedModules", DefaultSeverity: SeverityError},
		{Code: "BA120", Template: "Cannot ignore %s: the code is not in the allowed-ignore list", DefaultSeverity: SeverityWarning},
		{Code: "BA121", Template: "The marketplaces %v are not declared by the owning pack", RelatedField: "marketplaces", DefaultSeverity: SeverityError},

		// Integrations
		{Code: "IN101", Template: "The deprecated integration's display name %q must end with %q", RelatedField: "display", UIApplicable: true, DefaultSeverity: SeverityError},

		// Scripts
		{Code: "SC100", Template: "The argument %q is missing a description", RelatedField: "args", DefaultSeverity: SeverityWarning},

		// Playbooks
		{Code: "PB100", Template: "The condition task %q does not handle the branch(es): %s", RelatedField: "tasks", DefaultSeverity: SeverityError},

		// Incident fields
		{Code: "IF104", Template: "The group value %d is invalid; incident fields must use group %d", RelatedField: "group", DefaultSeverity: SeverityError},

		// Docker
		{Code: "DO100", Template: "The docker image %q must pin a version tag (latest or none is not allowed)", RelatedField: "dockerimage", DefaultSeverity: SeverityError},

		// Pack metadata
		{Code: "PA100", Template: "pack_metadata.json violates the metadata contract: %s", DefaultSeverity: SeverityError},
		{Code: "PA114", Template: "Content was modified; raise currentVersion (expected %s or later, found %s)", RelatedField: "currentVersion", DefaultSeverity: SeverityError},

		// Release notes
		{Code: "RN100", Template: "The pack %q has modified content but no release note was added", DefaultSeverity: SeverityError},

		// Backward compatibility
		{Code: "BC105", Template: "The command(s) %s were removed; removing commands breaks backward compatibility", RelatedField: "script.commands", DefaultSeverity: SeverityError},
		{Code: "BC108", Template: "The marketplaces %v were removed; remove the dependent content or force the merge", RelatedField: "marketplaces", DefaultSeverity: SeverityError},
		{Code: "BC115", Template: "The supported module(s) %v were removed from an existing item", RelatedField: "supportedModules", DefaultSeverity: SeverityError},

		// Graph-wide
		{Code: "GR100", Template: "Uses %q which does not serve the marketplace(s) %v", DefaultSeverity: SeverityError},
		{Code: "GR103", Template: "References %s %q which does not exist in any pack", DefaultSeverity: SeverityError},
		{Code: "GR105", Template: "Duplicate id %q: already defined by %s", DefaultSeverity: SeverityError},
		{Code: "GR106", Template: "The test playbook %q is not referenced by any content item's tests section", DefaultSeverity: SeverityWarning},
		{Code: "GR107", Template: "Uses %s %q which is deprecated", DefaultSeverity: SeverityWarning},
		{Code: "GR108", Template: "Supported module(s) %v are not provided by %s", DefaultSeverity: SeverityError},
		// Run-level diagnostic, not a rule: the graph could not be built and
		// every graph rule was skipped.
		{Code: "GR199", Template: "The content graph could not be built (%s); graph rules were skipped for this run", DefaultSeverity: SeverityError},
	}
	m := make(map[string]ErrorRecord, len(records))
	for _, r := range records {
		if _, dup := m[r.Code]; dup {
			panic(fmt.Sprintf("duplicate error code %s in catalog", r.Code))
		}
		m[r.Code] = r
	}
	return m
}()

// Lookup returns the catalog record for a code.
func Lookup(code string) (ErrorRecord, bool) {
	r, ok := catalog[code]
	return r, ok
}

// Message renders a catalog template with positional arguments. Unknown codes
// are a programming error.
func Message(code string, args ...any) string {
	r, ok := catalog[code]
	if !ok {
		panic(fmt.Sprintf("unknown error code %s", code))
	}
	return fmt.Sprintf(r.Template, args...)
}

// Codes returns every catalog code in sorted order.
func Codes() []string {
	out := make([]string, 0, len(catalog))
	for code := range catalog {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Family returns the two-letter rule family prefix of a code.
func Family(code string) string {
	if len(code) < 2 {
		return code
	}
	return code[:2]
}

// AllowedIgnoreErrors lists the codes a .pack-ignore section may suppress.
// Structural, backward-compatibility and graph-wide codes are enforced and
// cannot be ignored; an ignore entry outside this set is reported as BA120.
var AllowedIgnoreErrors = map[string]struct{}{
	"BA100": {}, "BA106": {}, "BA119": {},
	"IN101": {}, "SC100": {}, "PB100": {}, "IF104": {},
	"DO100": {}, "RN100": {}, "GR106": {}, "GR107": {},
}

// CanIgnore reports whether a code may be suppressed via .pack-ignore.
func CanIgnore(code string) bool {
	_, ok := AllowedIgnoreErrors[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}
