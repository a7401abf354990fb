package rules

import (
	"sort"
	"strings"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/repo"
	"github.com/contentops/packlint/internal/validate"
)

func init() {
	validate.Register(&commandRemoved{})
	validate.Register(&marketplaceRemoved{})
	validate.Register(&moduleRemoved{})
}

// compatStatuses are the change kinds the backward-compatibility family
// inspects; each rule diffs the item against its baseline form.
var compatStatuses = []content.GitStatus{content.StatusModified, content.StatusRenamed}

// commandRemoved rejects integration changes that drop a previously shipped
// command.
type commandRemoved struct{}

func (v *commandRemoved) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BC105",
		Description: "integration commands may not be removed",
		Rationale:   "playbooks in other repositories call shipped commands by name",
		AppliesTo:   []content.ContentType{content.TypeIntegration},
		GitStatuses: compatStatuses,
		Modes:       []repo.ExecutionMode{repo.ModeUseGit},
	}
}

func (v *commandRemoved) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		old := item.OldBase
		if old == nil || old.Integration == nil || item.Integration == nil {
			continue
		}
		current := map[string]bool{}
		for _, cmd := range item.Integration.Commands {
			current[cmd.Name] = true
		}
		var removed []string
		for _, cmd := range old.Integration.Commands {
			if !current[cmd.Name] {
				removed = append(removed, cmd.Name)
			}
		}
		if len(removed) > 0 {
			sort.Strings(removed)
			out = append(out, v.Meta().Fail(item, strings.Join(removed, ", ")))
		}
	}
	return out
}

// marketplaceRemoved rejects changes that withdraw an item from a marketplace
// it previously served.
type marketplaceRemoved struct{}

func (v *marketplaceRemoved) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BC108",
		Description: "marketplaces may not be removed from existing content",
		AppliesTo:   content.AllTypes,
		GitStatuses: compatStatuses,
		Modes:       []repo.ExecutionMode{repo.ModeUseGit},
	}
}

func (v *marketplaceRemoved) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		old := item.OldBase
		if old == nil || !old.MarketplacesDeclared {
			continue
		}
		removed := content.MissingMarketplaces(old.Marketplaces, item.EffectiveMarketplaces())
		if len(removed) > 0 {
			out = append(out, v.Meta().Fail(item, removed))
		}
	}
	return out
}

// moduleRemoved rejects changes that drop a previously supported module.
type moduleRemoved struct{}

func (v *moduleRemoved) Meta() validate.Metadata {
	return validate.Metadata{
		Code:        "BC115",
		Description: "supported modules may not be removed from existing content",
		AppliesTo:   content.AllTypes,
		GitStatuses: compatStatuses,
		Modes:       []repo.ExecutionMode{repo.ModeUseGit},
	}
}

func (v *moduleRemoved) Check(in validate.Input) []validate.Result {
	var out []validate.Result
	for _, item := range in.Items {
		old := item.OldBase
		if old == nil || !old.ModulesDeclared || !item.ModulesDeclared {
			continue
		}
		removed := content.MissingModules(old.SupportedModules, item.SupportedModules)
		if len(removed) > 0 {
			out = append(out, v.Meta().Fail(item, removed))
		}
	}
	return out
}
