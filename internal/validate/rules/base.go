package rules

import (
	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/validate"
	"github.com/contentops/packlint/pkg/versioning"
)

func init() {
	validate.Register(&idEqualsName{})
	validate.Register(&fromVersionFloor{})
	validate.Register(&packMoved{})
	validate.Register(&versionRangeOrder{})
	validate.Register(&emptySupportedModules{})
	validate.Register(&marketplacesSubsetOfPack{})
}

// idTypes is the set where the object id and name must agree. It spans the
// YAML executables and the JSON kinds whose id is the stable reference.
var idTypes = []content.ContentType{
	content.TypeIntegration, content.TypeScript, content.TypePlaybook,
	content.TypeMapper, content.TypeClassifier, content.TypeWizard,
	content.TypeJob, content.TypeDashboard, content.TypeWidget,
	content.TypeReport, content.TypeIncidentType, content.TypeList,
}

// idEqualsName enforces id == name for executable content. Auto-fix aligns
// the name to the id, since the id is the stable reference other items use.
type idEqualsName struct{}

func (v *idEqualsName) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BA100",
		Description: "the object id must equal the name",
		Rationale:   "cross-item references resolve by id; a diverging name misleads authors",
		FixMessage:  "set the name to match the id",
		AutoFixable: true,
		AppliesTo:   idTypes,
	}
}

func (v *idEqualsName) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.ObjectID != "" && item.Name != "" && item.ObjectID != item.Name {
			out = append(out, v.Meta().Fail(item, item.ObjectID, item.Name))
		}
	}
	return out
}

func (v *idEqualsName) Fix(item *content.ContentItem) error {
	item.SetField("name", item.ObjectID)
	item.Name = item.ObjectID
	return nil
}

// fromVersionFloor rejects fromversion values below the supported platform
// floor. Auto-fix raises them to the floor.
type fromVersionFloor struct{}

func (v *fromVersionFloor) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BA106",
		Description: "fromversion must be at least the supported platform floor",
		FixMessage:  "raise fromversion to the platform floor",
		AutoFixable: true,
	}
}

func (v *fromVersionFloor) Check(in validate.Input) []validate.Result {
	floor := versioning.MustParse(versioning.Floor)
	var out []validate.Result
	for _, item := range in.Items {
		if item.FromVersion.LessThan(floor) {
			out = append(out, v.Meta().Fail(item, item.FromVersion, versioning.Floor))
		}
	}
	return out
}

func (v *fromVersionFloor) Fix(item *content.ContentItem) error {
	key := "fromversion"
	if _, ok := item.Data["fromVersion"]; ok {
		key = "fromVersion"
	}
	item.SetField(key, versioning.Floor)
	item.FromVersion = versioning.MustParse(versioning.Floor)
	return nil
}

// packMoved rejects renames that carry a content item into a different pack.
type packMoved struct{}

func (v *packMoved) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BA114",
		Description: "content items may not move between packs",
		Rationale:   "pack membership is part of an item's public identity",
		GitStatuses: []content.GitStatus{content.StatusRenamed},
	}
}

func (v *packMoved) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.OldPath == "" {
			continue
		}
		oldPack := content.PackIDFromPath(item.OldPath)
		if oldPack != "" && oldPack != item.PackID {
			out = append(out, v.Meta().Fail(item, oldPack, item.PackID))
		}
	}
	return out
}

// versionRangeOrder rejects items whose fromversion exceeds their toversion.
type versionRangeOrder struct{}

func (v *versionRangeOrder) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BA118",
		Description: "fromversion must not exceed toversion",
	}
}

func (v *versionRangeOrder) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.FromVersion.GreaterThan(item.ToVersion) {
			out = append(out, v.Meta().Fail(item, item.FromVersion, item.ToVersion))
		}
	}
	return out
}

// emptySupportedModules rejects a declared-but-empty supportedModules list,
// which would make the item installable nowhere.
type emptySupportedModules struct{}

func (v *emptySupportedModules) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BA119",
		Description: "supportedModules, when declared, must not be empty",
	}
}

func (v *emptySupportedModules) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if item.ModulesDeclared && len(item.SupportedModules) == 0 {
			out = append(out, v.Meta().Fail(item))
		}
	}
	return out
}

// marketplacesSubsetOfPack requires an item's declared marketplaces to be a
// subset of its pack's.
type marketplacesSubsetOfPack struct{}

func (v *marketplacesSubsetOfPack) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BA121",
		Description: "item marketplaces must be a subset of the pack's marketplaces",
	}
}

func (v *marketplacesSubsetOfPack) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		if !item.MarketplacesDeclared || item.Pack == nil {
			continue
		}
		if missing := content.MissingMarketplaces(item.Marketplaces, item.Pack.Marketplaces); len(missing) > 0 {
			out = append(out, v.Meta().Fail(item, missing))
		}
	}
	return out
}
