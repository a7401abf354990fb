package graph

import (
	"sort"
	"strings"

	"github.com/contentops/packlint/internal/content"
)

// Search filters the graph's items. All constraints are conjunctive; a
// marketplace constraint matches items serving at least one requested
// marketplace. Results come back in (path, object id) order.
func (g *Memory) Search(opts SearchOptions) []*content.ContentItem {
	var out []*content.ContentItem
	for _, item := range g.items {
		if opts.Type != "" && item.Type != opts.Type {
			continue
		}
		if opts.ObjectID != "" && item.ObjectID != opts.ObjectID {
			continue
		}
		if opts.Name != "" && item.Name != opts.Name {
			continue
		}
		if opts.Path != "" && item.Path != opts.Path {
			continue
		}
		if len(opts.Marketplaces) > 0 && !content.MarketplacesIntersect(item.EffectiveMarketplaces(), opts.Marketplaces) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// FindUsesWithInvalidMarketplaces surfaces mandatory USES edges from items in
// the given packs whose targets do not serve every marketplace of the source.
func (g *Memory) FindUsesWithInvalidMarketplaces(packIDs []string) []MarketplaceViolation {
	inScope := stringSet(packIDs)
	var out []MarketplaceViolation
	for _, rel := range g.relationships {
		if rel.Kind != RelUses || !rel.Mandatory || rel.Target == nil {
			continue
		}
		if len(inScope) > 0 {
			if _, ok := inScope[rel.Source.PackID]; !ok {
				continue
			}
		}
		missing := content.MissingMarketplaces(rel.Source.EffectiveMarketplaces(), rel.Target.EffectiveMarketplaces())
		if len(missing) > 0 {
			out = append(out, MarketplaceViolation{Source: rel.Source, Target: rel.Target, Missing: missing})
		}
	}
	return out
}

// FindUsesWithInvalidFromVersion surfaces USES edges where the target only
// exists from a platform version later than the source's floor.
func (g *Memory) FindUsesWithInvalidFromVersion(paths []string) []VersionViolation {
	inScope := stringSet(paths)
	var out []VersionViolation
	for _, rel := range g.relationships {
		if rel.Kind != RelUses || rel.Target == nil {
			continue
		}
		if len(inScope) > 0 {
			if _, ok := inScope[rel.Source.Path]; !ok {
				continue
			}
		}
		if rel.Target.FromVersion.GreaterThan(rel.Source.FromVersion) {
			out = append(out, VersionViolation{Source: rel.Source, Target: rel.Target})
		}
	}
	return out
}

// UnknownContentUses surfaces USES edges with no resolvable target.
func (g *Memory) UnknownContentUses(paths []string) []UnknownUse {
	inScope := stringSet(paths)
	var out []UnknownUse
	for _, rel := range g.relationships {
		if rel.Kind != RelUses || rel.Target != nil {
			continue
		}
		if len(inScope) > 0 {
			if _, ok := inScope[rel.Source.Path]; !ok {
				continue
			}
		}
		out = append(out, UnknownUse{Source: rel.Source, Ref: rel.Ref})
	}
	return out
}

// ValidateDuplicateIDs groups items that share a (content type, object id)
// pair. Each group reports against the canonical first occurrence in path
// order.
func (g *Memory) ValidateDuplicateIDs(paths []string) []DuplicateID {
	inScope := stringSet(paths)
	keys := make([]typeIDKey, 0, len(g.byTypeID))
	for key := range g.byTypeID {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].t != keys[j].t {
			return keys[i].t < keys[j].t
		}
		return keys[i].id < keys[j].id
	})

	var out []DuplicateID
	for _, key := range keys {
		group := g.byTypeID[key]
		if len(group) < 2 {
			continue
		}
		if len(inScope) > 0 {
			touched := false
			for _, item := range group {
				if _, ok := inScope[item.Path]; ok {
					touched = true
					break
				}
			}
			if !touched {
				continue
			}
		}
		out = append(out, DuplicateID{First: group[0], Duplicates: group[1:]})
	}
	return out
}

// TestPlaybookWithoutUses reports whether the named test playbook is not
// referenced by any item's tests section.
func (g *Memory) TestPlaybookWithoutUses(name string) bool {
	for _, tp := range g.byName[typeIDKey{content.TypeTestPlaybook, name}] {
		if len(g.usedByTarget[tp]) > 0 {
			return false
		}
	}
	return true
}

// FindItemsUsingDeprecatedItems surfaces USES edges into deprecated content.
func (g *Memory) FindItemsUsingDeprecatedItems(paths []string) []DeprecatedUse {
	inScope := stringSet(paths)
	var out []DeprecatedUse
	for _, rel := range g.relationships {
		if rel.Kind != RelUses || rel.Target == nil || !rel.Target.Deprecated {
			continue
		}
		if len(inScope) > 0 {
			if _, ok := inScope[rel.Source.Path]; !ok {
				continue
			}
		}
		out = append(out, DeprecatedUse{Source: rel.Source, Target: rel.Target})
	}
	return out
}

// FindModuleMismatchDependencies surfaces pack dependencies whose supported
// modules do not cover the depending pack's.
func (g *Memory) FindModuleMismatchDependencies(paths []string) []ModuleMismatch {
	inScope := stringSet(paths)
	var out []ModuleMismatch
	for _, rel := range g.relationships {
		if rel.Kind != RelDependsOn || rel.TargetPack == nil || !rel.TargetPack.ModulesDeclared {
			continue
		}
		if len(inScope) > 0 {
			if _, ok := inScope[rel.Source.Path]; !ok {
				continue
			}
		}
		source := rel.Source
		if !source.ModulesDeclared {
			continue
		}
		missing := content.MissingModules(source.SupportedModules, rel.TargetPack.SupportedModules)
		if len(missing) > 0 {
			out = append(out, ModuleMismatch{Source: source, TargetPack: rel.TargetPack, Missing: missing})
		}
	}
	return out
}

// FindModuleMismatchCommands surfaces playbook command references into
// integrations whose supported modules do not cover the playbook's.
func (g *Memory) FindModuleMismatchCommands(paths []string) []ModuleMismatch {
	return g.moduleMismatchUses(paths, func(rel Relationship) bool {
		return rel.Ref.Lookup == LookupCommand || (rel.Target != nil && rel.Target.Type == content.TypeIntegration)
	})
}

// FindModuleMismatchContentItems surfaces all other USES edges whose targets'
// supported modules do not cover the source's.
func (g *Memory) FindModuleMismatchContentItems(paths []string) []ModuleMismatch {
	return g.moduleMismatchUses(paths, func(rel Relationship) bool {
		return rel.Target == nil || rel.Target.Type != content.TypeIntegration
	})
}

func (g *Memory) moduleMismatchUses(paths []string, filter func(Relationship) bool) []ModuleMismatch {
	inScope := stringSet(paths)
	var out []ModuleMismatch
	for _, rel := range g.relationships {
		if rel.Kind != RelUses || rel.Target == nil || !filter(rel) {
			continue
		}
		if len(inScope) > 0 {
			if _, ok := inScope[rel.Source.Path]; !ok {
				continue
			}
		}
		source, target := rel.Source, rel.Target
		if !source.ModulesDeclared || !target.ModulesDeclared {
			continue
		}
		missing := content.MissingModules(source.SupportedModules, target.SupportedModules)
		if len(missing) > 0 {
			out = append(out, ModuleMismatch{Source: source, Target: target, Missing: missing})
		}
	}
	return out
}

// FindInvalidContentItemDependencies surfaces items (by object id) with
// mandatory USES edges into packs their own pack does not declare as a
// dependency. Same-pack and Base-pack references are always legitimate.
func (g *Memory) FindInvalidContentItemDependencies(ids []string) []*content.ContentItem {
	idSet := stringSet(ids)
	seen := make(map[*content.ContentItem]bool)
	var out []*content.ContentItem
	for _, rel := range g.relationships {
		if rel.Kind != RelUses || !rel.Mandatory || rel.Target == nil {
			continue
		}
		source := rel.Source
		if len(idSet) > 0 {
			if _, ok := idSet[source.ObjectID]; !ok {
				continue
			}
		}
		if source.Pack == nil || rel.Target.PackID == source.PackID || rel.Target.PackID == "Base" {
			continue
		}
		if _, declared := source.Pack.Metadata.Dependencies[rel.Target.PackID]; declared {
			continue
		}
		if !seen[source] {
			seen[source] = true
			out = append(out, source)
		}
	}
	return out
}

// UsesOf returns the item's outgoing USES and TESTED_BY edges.
func (g *Memory) UsesOf(item *content.ContentItem) []Relationship {
	return g.usesBySource[item]
}

// UsedBy returns the item's incoming USES and TESTED_BY edges.
func (g *Memory) UsedBy(item *content.ContentItem) []Relationship {
	return g.usedByTarget[item]
}

// Packs exposes the loaded packs keyed by id.
func (g *Memory) Packs() map[string]*content.Pack {
	return g.packs
}

// Items returns all items in (path, object id) order.
func (g *Memory) Items() []*content.ContentItem {
	return g.items
}

func stringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}
