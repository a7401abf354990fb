package content

import (
	"fmt"
	"path/filepath"
	"strings"
)

// dirTypes maps a pack subdirectory to the content type of the primary files
// it holds. Directories whose files need key-based disambiguation map to the
// most common type and are refined in RefineType.
var dirTypes = map[string]ContentType{
	"Integrations":       TypeIntegration,
	"Scripts":            TypeScript,
	"Playbooks":          TypePlaybook,
	"TestPlaybooks":      TypeTestPlaybook,
	"IncidentFields":     TypeIncidentField,
	"IndicatorFields":    TypeIndicatorField,
	"CaseFields":         TypeCaseField,
	"Layouts":            TypeLayout,
	"LayoutRules":        TypeLayoutRule,
	"Classifiers":        TypeClassifier,
	"Dashboards":         TypeDashboard,
	"Widgets":            TypeWidget,
	"Reports":            TypeReport,
	"CorrelationRules":   TypeCorrelationRule,
	"ModelingRules":      TypeModelingRule,
	"ParsingRules":       TypeParsingRule,
	"XSIAMDashboards":    TypeXSIAMDashboard,
	"XSIAMReports":       TypeXSIAMReport,
	"Triggers":           TypeTrigger,
	"Wizards":            TypeWizard,
	"Jobs":               TypeJob,
	"GenericFields":      TypeGenericField,
	"GenericTypes":       TypeGenericType,
	"GenericModules":     TypeGenericModule,
	"GenericDefinitions": TypeGenericDefinition,
	"IncidentTypes":      TypeIncidentType,
	"IndicatorTypes":     TypeIndicatorType,
	"Lists":              TypeList,
	"PreProcessRules":    TypePreProcessRule,
	"CaseLayouts":        TypeCaseLayout,
	"CaseLayoutRules":    TypeCaseLayoutRule,
}

// PackRootDir is the repository directory that holds all packs.
const PackRootDir = "Packs"

// PackIDFromPath extracts the owning pack directory name from a repo-relative
// path, or "" when the path is outside the pack roots.
func PackIDFromPath(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 2 || parts[0] != PackRootDir {
		return ""
	}
	return parts[1]
}

// packSubdir returns the first directory under the pack root for a
// repo-relative path, e.g. "Integrations" for
// Packs/PX/Integrations/Foo/Foo.yml.
func packSubdir(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 3 || parts[0] != PackRootDir {
		return ""
	}
	return parts[2]
}

// DetectType classifies a repo-relative path by suffix and path prefix. The
// result may need refinement against parsed keys (see RefineType); ok is false
// when the path matches no known content location.
func DetectType(relPath string) (ContentType, bool) {
	rel := filepath.ToSlash(relPath)
	base := filepath.Base(rel)

	if base == "pack_metadata.json" {
		return TypePack, true
	}

	sub := packSubdir(rel)
	if sub == "" {
		return "", false
	}
	t, ok := dirTypes[sub]
	if !ok {
		return "", false
	}

	switch filepath.Ext(base) {
	case ".yml", ".yaml":
		if !typeUsesYAML(t) {
			return "", false
		}
	case ".json":
		if typeUsesYAML(t) {
			return "", false
		}
	default:
		return "", false
	}
	return t, true
}

// typeUsesYAML reports whether the type's primary file is YAML (JSON otherwise).
func typeUsesYAML(t ContentType) bool {
	switch t {
	case TypeIntegration, TypeScript, TypePlaybook, TypeTestPlaybook,
		TypeTestScript, TypeCorrelationRule, TypeModelingRule, TypeParsingRule:
		return true
	default:
		return false
	}
}

// RefineType disambiguates directory-level classifications by key presence.
// An item the refinement cannot place deterministically is an error.
func RefineType(t ContentType, data map[string]any) (ContentType, error) {
	switch t {
	case TypeClassifier:
		kind, _ := data["type"].(string)
		switch {
		case strings.HasPrefix(kind, "mapping"):
			return TypeMapper, nil
		case kind == "classification" || kind == "":
			return TypeClassifier, nil
		default:
			return "", fmt.Errorf("classifier type %q is neither a classification nor a mapping", kind)
		}
	case TypeTestPlaybook:
		// TestPlaybooks directories hold both test playbooks and test scripts.
		if _, hasTasks := data["tasks"]; hasTasks {
			return TypeTestPlaybook, nil
		}
		if _, hasScript := data["script"]; hasScript {
			return TypeTestScript, nil
		}
		return "", fmt.Errorf("test artifact has neither tasks nor a script body")
	case TypeIntegration:
		if _, ok := data["configuration"]; !ok {
			if _, hasScript := data["script"]; hasScript {
				// A script checked into an Integrations directory.
				return "", fmt.Errorf("file under Integrations lacks a configuration section")
			}
		}
		return TypeIntegration, nil
	default:
		return t, nil
	}
}

// RelatedFileFor maps a changed auxiliary file to its owning primary file
// type, so validators keyed on related files can fire. Returns the related
// file kind and true when path is a known auxiliary file.
func RelatedFileFor(relPath string) (RelatedFileType, bool) {
	base := filepath.Base(filepath.ToSlash(relPath))
	switch {
	case base == "README.md":
		return RelatedReadme, true
	case strings.HasSuffix(base, "_description.md"):
		return RelatedDescription, true
	case strings.HasSuffix(base, "_image.png"):
		return RelatedImage, true
	case strings.HasSuffix(base, "_schema.json"):
		return RelatedSchema, true
	case strings.HasSuffix(base, "_test_data.json"):
		return RelatedTestData, true
	}
	return "", false
}

// IsReleaseNote reports whether the path is a pack release-notes markdown file.
func IsReleaseNote(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	parts := strings.Split(rel, "/")
	return len(parts) == 4 && parts[0] == PackRootDir && parts[2] == "ReleaseNotes" &&
		strings.HasSuffix(parts[3], ".md")
}

// IsPackIgnore reports whether the path is a pack's .pack-ignore file.
func IsPackIgnore(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	parts := strings.Split(rel, "/")
	return len(parts) == 3 && parts[0] == PackRootDir && parts[2] == ".pack-ignore"
}

// PrimaryFileFor redirects a changed auxiliary file to the primary YAML/JSON
// file it belongs to, so the owning item is re-validated. Candidates are
// derived from the directory layout: an auxiliary file sits beside its owner.
func PrimaryFileFor(relPath string) string {
	rel := filepath.ToSlash(relPath)
	dir := filepath.Dir(rel)
	base := filepath.Base(rel)
	switch {
	case strings.HasSuffix(base, "_description.md"):
		return dir + "/" + strings.TrimSuffix(base, "_description.md") + ".yml"
	case strings.HasSuffix(base, "_image.png"):
		return dir + "/" + strings.TrimSuffix(base, "_image.png") + ".yml"
	case base == "README.md":
		// README sits in the item directory named after the item.
		name := filepath.Base(dir)
		return dir + "/" + name + ".yml"
	case strings.HasSuffix(base, "_schema.json"):
		return dir + "/" + strings.TrimSuffix(base, "_schema.json") + ".yml"
	}
	return ""
}
