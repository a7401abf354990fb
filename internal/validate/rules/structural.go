// Package rules holds the shipped validators, one file per rule family. Each
// rule registers itself at init time; importing this package for side effects
// is how a binary opts into the full rule set.
package rules

import (
	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/validate"
)

func init() {
	validate.Register(&unparseableFile{})
	validate.Register(&missingNameKey{})
	validate.Register(&unsupportedFileType{})
}

// unparseableFile reports files the loader could not parse. It is the only
// rule that sees unloadable items; everything else skips them.
type unparseableFile struct{}

func (v *unparseableFile) Meta() validate.Metadata {
	return validate.Metadata{
		Code:               "ST100",
		Description:        "content files must parse as YAML or JSON mappings",
		Rationale:          "an unparseable file cannot be validated, packaged or shipped",
		AppliesTo:          content.AllTypes,
		IncludeTestContent: true,
		IncludeUnloadable:  true,
	}
}

func (v *unparseableFile) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.LoadError != nil {
			out = append(out, v.Meta().Fail(item, item.LoadError))
		}
	}
	return out
}

// missingNameKey reports executable content whose required name key is absent.
type missingNameKey struct{}

func (v *missingNameKey) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "ST110",
		Description: "integrations, scripts and playbooks must declare a name",
		AppliesTo: []content.ContentType{
			content.TypeIntegration, content.TypeScript, content.TypePlaybook,
		},
	}
}

func (v *missingNameKey) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.Name == "" {
			out = append(out, v.Meta().Fail(item, "name"))
		}
	}
	return out
}

// unsupportedFileType reports files that parsed but could not be classified
// as any known content type.
type unsupportedFileType struct{}

func (v *unsupportedFileType) Meta() validate.Metadata {
	return validate.Metadata{
		Code:               "BA102",
		Description:        "every content file must resolve to exactly one content type",
		AppliesTo:          content.AllTypes,
		IncludeTestContent: true,
		IncludeUnloadable:  true,
	}
}

func (v *unsupportedFileType) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.LoadError != nil {
			continue
		}
		switch {
		case item.TypeError != nil:
			out = append(out, v.Meta().Fail(item, item.TypeError))
		case item.Type == "":
			out = append(out, v.Meta().Fail(item, "path matches no known content directory"))
		}
	}
	return out
}
