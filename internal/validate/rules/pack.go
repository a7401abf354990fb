package rules

import (
	"sort"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/repo"
	"github.com/contentops/packlint/internal/validate"
)

func init() {
	validate.Register(&packMetadataContract{})
	validate.Register(&packVersionRaised{})
	validate.Register(&releaseNotesAdded{})
}

// packMetadataContract validates pack_metadata.json against the schema.
type packMetadataContract struct{}

func (v *packMetadataContract) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "PA100",
		Description: "pack_metadata.json must satisfy the metadata contract",
		AppliesTo:   []content.ContentType{content.TypePack},
	}
}

func (v *packMetadataContract) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		msgs, err := content.ValidatePackMetadata(item.Data)
		if err != nil {
			out = append(out, v.Meta().Fail(item, err))
			continue
		}
		for _, msg := range msgs {
			out = append(out, v.Meta().Fail(item, msg))
		}
	}
	return out
}

// packVersionRaised requires currentVersion to move past the baseline when a
// pack's content changed.
type packVersionRaised struct{}

func (v *packVersionRaised) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "PA114",
		Description: "content changes require a currentVersion raise",
		GitStatuses: []content.GitStatus{content.StatusModified, content.StatusRenamed},
		Modes:       []repo.ExecutionMode{repo.ModeUseGit},
	}
}

func (v *packVersionRaised) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, packID := range changedPackIDs(in.Items) {
		pack := in.Packs[packID]
		if pack == nil || pack.GitStatus == content.StatusAdded {
			continue
		}
		if pack.OldBase == nil {
			// Metadata untouched while content changed: the version cannot
			// have moved.
			expected := pack.CurrentVersion.BumpPatch()
			out = append(out, validate.Result{
				Code:     v.Meta().Code,
				Path:     pack.MetadataPath,
				Message:  validate.Message(v.Meta().Code, expected, pack.CurrentVersion),
				Severity: validate.SeverityError,
			})
			continue
		}
		if !pack.CurrentVersion.GreaterThan(pack.OldBase.CurrentVersion) {
			expected := pack.OldBase.CurrentVersion.BumpPatch()
			out = append(out, validate.Result{
				Code:     v.Meta().Code,
				Path:     pack.MetadataPath,
				Message:  validate.Message(v.Meta().Code, expected, pack.CurrentVersion),
				Severity: validate.SeverityError,
			})
		}
	}
	return out
}

// releaseNotesAdded requires a release note alongside content changes to an
// existing pack.
type releaseNotesAdded struct{}

func (v *releaseNotesAdded) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "RN100",
		Description: "content changes to an existing pack require a release note",
		GitStatuses: []content.GitStatus{content.StatusModified, content.StatusRenamed},
		Modes:       []repo.ExecutionMode{repo.ModeUseGit},
	}
}

func (v *releaseNotesAdded) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, packID := range changedPackIDs(in.Items) {
		pack := in.Packs[packID]
		if pack == nil || pack.GitStatus == content.StatusAdded {
			continue
		}
		if len(in.ChangedReleaseNotes[packID]) == 0 {
			out = append(out, validate.Result{
				Code:     v.Meta().Code,
				Path:     pack.MetadataPath,
				Message:  validate.Message(v.Meta().Code, packID),
				Severity: validate.SeverityError,
			})
		}
	}
	return out
}

// changedPackIDs returns the sorted distinct pack ids of the batch.
func changedPackIDs(items []*content.ContentItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		if item.PackID != "" && !seen[item.PackID] {
			seen[item.PackID] = true
			out = append(out, item.PackID)
		}
	}
	sort.Strings(out)
	return out
}
