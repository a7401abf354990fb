package rules

import (
	"sort"
	"strings"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/graph"
	"github.com/contentops/packlint/internal/validate"
)

func init() {
	validate.Register(&marketplaceMismatchUses{})
	validate.Register(&unknownContentUses{})
	validate.Register(&duplicateIDs{})
	validate.Register(&unusedTestPlaybook{})
	validate.Register(&usesDeprecatedContent{})
	validate.Register(&moduleMismatch{})
}

// batchPaths collects the batch's file paths for scoping graph queries.
func batchPaths(items []*content.ContentItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Path)
	}
	return out
}

func batchPackIDs(items []*content.ContentItem) []string {
	return changedPackIDs(items)
}

// marketplaceMismatchUses rejects mandatory USES edges whose target does not
// serve every marketplace of the source.
type marketplaceMismatchUses struct{}

func (v *marketplaceMismatchUses) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "GR100",
		Description: "mandatory dependencies must serve the source's marketplaces",
		NeedsGraph:  true,
	}
}

// Check reports one finding per offending source, aggregating every bad edge
// into a single message.
func (v *marketplaceMismatchUses) Check(in validate.Input) []validate.Result {
	type perSource struct {
		targets map[string]struct{}
		missing map[content.Marketplace]struct{}
	}
	grouped := map[*content.ContentItem]*perSource{}
	var sources []*content.ContentItem
	for _, violation := range in.Graph.FindUsesWithInvalidMarketplaces(batchPackIDs(in.Items)) {
		agg := grouped[violation.Source]
		if agg == nil {
			agg = &perSource{targets: map[string]struct{}{}, missing: map[content.Marketplace]struct{}{}}
			grouped[violation.Source] = agg
			sources = append(sources, violation.Source)
		}
		agg.targets[violation.Target.Name] = struct{}{}
		for _, m := range violation.Missing {
			agg.missing[m] = struct{}{}
		}
	}

	var out []validate.Result
	for _, source := range sources {
		agg := grouped[source]
		targets := make([]string, 0, len(agg.targets))
		for name := range agg.targets {
			targets = append(targets, name)
		}
		sort.Strings(targets)
		missing := make([]string, 0, len(agg.missing))
		for m := range agg.missing {
			missing = append(missing, string(m))
		}
		sort.Strings(missing)
		out = append(out, v.Meta().Fail(source, strings.Join(targets, ", "), missing))
	}
	return out
}

// unknownContentUses rejects references that resolve to no content item.
type unknownContentUses struct{}

func (v *unknownContentUses) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "GR103",
		Description: "every content reference must resolve",
		NeedsGraph:  true,
	}
}

func (v *unknownContentUses) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, unknown := range in.Graph.UnknownContentUses(batchPaths(in.Items)) {
		kind := string(unknown.Ref.Type)
		if kind == "" {
			kind = string(unknown.Ref.Lookup)
		}
		out = append(out, v.Meta().Fail(unknown.Source, kind, unknown.Ref.ID))
	}
	return out
}

// duplicateIDs rejects items sharing a (type, id) pair across the repository.
type duplicateIDs struct{}

func (v *duplicateIDs) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "GR105",
		Description: "object ids must be unique per content type",
		NeedsGraph:  true,
	}
}

func (v *duplicateIDs) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, group := range in.Graph.ValidateDuplicateIDs(batchPaths(in.Items)) {
		for _, dup := range group.Duplicates {
			out = append(out, v.Meta().Fail(dup, dup.ObjectID, group.First.Path))
		}
	}
	return out
}

// unusedTestPlaybook warns about test playbooks no item references.
type unusedTestPlaybook struct{}

func (v *unusedTestPlaybook) Meta() validate.Metadata {
	return validate.Metadata{
		Code:               "GR106",
		Description:        "test playbooks should be referenced by a tests section",
		AppliesTo:          []content.ContentType{content.TypeTestPlaybook},
		IncludeTestContent: true,
		NeedsGraph:         true,
	}
}

func (v *unusedTestPlaybook) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if in.Graph.TestPlaybookWithoutUses(item.Name) {
			out = append(out, v.Meta().Fail(item, item.Name))
		}
	}
	return out
}

// usesDeprecatedContent warns about references into deprecated items.
type usesDeprecatedContent struct{}

func (v *usesDeprecatedContent) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "GR107",
		Description: "content should not depend on deprecated items",
		NeedsGraph:  true,
	}
}

func (v *usesDeprecatedContent) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, use := range in.Graph.FindItemsUsingDeprecatedItems(batchPaths(in.Items)) {
		out = append(out, v.Meta().Fail(use.Source, use.Target.Type, use.Target.Name))
	}
	return out
}

// moduleMismatch rejects dependencies whose supported modules do not cover
// the depending item's, across pack dependencies, command calls and plain
// content references.
type moduleMismatch struct{}

func (v *moduleMismatch) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "GR108",
		Description: "dependencies must provide the source's supported modules",
		// Packs are included: the pack-dependency variant sources from the
		// pack_metadata.json item.
		AppliesTo:  content.AllTypes,
		NeedsGraph: true,
	}
}

func (v *moduleMismatch) Check(in validate.Input) []validate.Result {
	paths := batchPaths(in.Items)
	var mismatches []graph.ModuleMismatch
	mismatches = append(mismatches, in.Graph.FindModuleMismatchDependencies(paths)...)
	mismatches = append(mismatches, in.Graph.FindModuleMismatchCommands(paths)...)
	mismatches = append(mismatches, in.Graph.FindModuleMismatchContentItems(paths)...)

	var out []validate.Result
	for _, mm := range mismatches {
		name := ""
		switch {
		case mm.Target != nil:
			name = mm.Target.Name
		case mm.TargetPack != nil:
			name = mm.TargetPack.ID
		}
		out = append(out, v.Meta().Fail(mm.Source, mm.Missing, name))
	}
	return out
}
