package graph

import (
	"sort"
	"strings"

	"github.com/contentops/packlint/internal/content"
)

type typeIDKey struct {
	t  content.ContentType
	id string
}

// Memory is the in-memory Backend.
type Memory struct {
	items []*content.ContentItem
	packs map[string]*content.Pack

	byTypeID  map[typeIDKey][]*content.ContentItem
	byName    map[typeIDKey][]*content.ContentItem
	byCliName map[string][]*content.ContentItem
	byCommand map[string][]*content.ContentItem
	byPath    map[string]*content.ContentItem

	relationships []Relationship
	usesBySource  map[*content.ContentItem][]Relationship
	usedByTarget  map[*content.ContentItem][]Relationship
}

var _ Backend = (*Memory)(nil)

// Build constructs the graph from loaded packs and items, wires back
// references, extracts relationships and resolves their targets. The graph is
// read-only for the duration of the run.
func Build(packs map[string]*content.Pack, items []*content.ContentItem) *Memory {
	g := &Memory{
		items:        sortedItems(items),
		packs:        packs,
		byTypeID:     make(map[typeIDKey][]*content.ContentItem),
		byName:       make(map[typeIDKey][]*content.ContentItem),
		byCliName:    make(map[string][]*content.ContentItem),
		byCommand:    make(map[string][]*content.ContentItem),
		byPath:       make(map[string]*content.ContentItem),
		usesBySource: make(map[*content.ContentItem][]Relationship),
		usedByTarget: make(map[*content.ContentItem][]Relationship),
	}

	for _, item := range g.items {
		if pack, ok := packs[item.PackID]; ok {
			item.Pack = pack
			if item.Type != content.TypePack {
				pack.Items = append(pack.Items, item)
			}
		}
		if !item.Loadable() {
			continue
		}
		g.index(item)
	}

	for _, item := range g.items {
		if !item.Loadable() || item.GitStatus == content.StatusDeleted {
			continue
		}
		for _, rel := range extractRelationships(item, packs) {
			rel.Target = g.resolve(rel.Ref)
			g.relationships = append(g.relationships, rel)
			if rel.Kind == RelUses || rel.Kind == RelTestedBy {
				g.usesBySource[rel.Source] = append(g.usesBySource[rel.Source], rel)
				if rel.Target != nil {
					g.usedByTarget[rel.Target] = append(g.usedByTarget[rel.Target], rel)
				}
			}
		}
	}
	return g
}

func sortedItems(items []*content.ContentItem) []*content.ContentItem {
	out := append([]*content.ContentItem(nil), items...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].ObjectID < out[j].ObjectID
	})
	return out
}

func (g *Memory) index(item *content.ContentItem) {
	if item.GitStatus != content.StatusDeleted {
		if item.ObjectID != "" {
			key := typeIDKey{item.Type, item.ObjectID}
			g.byTypeID[key] = append(g.byTypeID[key], item)
		}
		if item.Name != "" {
			key := typeIDKey{item.Type, item.Name}
			g.byName[key] = append(g.byName[key], item)
		}
		if item.Field != nil && item.Field.CliName != "" {
			cli := strings.ToLower(item.Field.CliName)
			g.byCliName[cli] = append(g.byCliName[cli], item)
		}
		if item.Integration != nil {
			for _, cmd := range item.Integration.Commands {
				g.byCommand[cmd.Name] = append(g.byCommand[cmd.Name], item)
			}
		}
	}
	g.byPath[item.Path] = item
}

// resolve finds the target item for a reference, or nil when unknown.
func (g *Memory) resolve(ref TargetRef) *content.ContentItem {
	pick := func(candidates []*content.ContentItem) *content.ContentItem {
		if len(candidates) == 0 {
			return nil
		}
		return candidates[0]
	}
	switch ref.Lookup {
	case LookupID:
		if ref.Type != "" {
			return pick(g.byTypeID[typeIDKey{ref.Type, ref.ID}])
		}
		for _, t := range content.AllTypes {
			if item := pick(g.byTypeID[typeIDKey{t, ref.ID}]); item != nil {
				return item
			}
		}
	case LookupName:
		if item := pick(g.byName[typeIDKey{ref.Type, ref.ID}]); item != nil {
			return item
		}
		// Scripts are referenced interchangeably by id and name.
		return pick(g.byTypeID[typeIDKey{ref.Type, ref.ID}])
	case LookupCommand:
		return pick(g.byCommand[ref.ID])
	case LookupCliName:
		return pick(g.byCliName[strings.ToLower(ref.ID)])
	}
	return nil
}

// extractRelationships mines the known reference points per content type.
func extractRelationships(item *content.ContentItem, packs map[string]*content.Pack) []Relationship {
	var rels []Relationship
	add := func(kind RelationKind, mandatory bool, ref TargetRef) {
		if ref.ID == "" {
			return
		}
		rels = append(rels, Relationship{Source: item, Kind: kind, Mandatory: mandatory, Ref: ref})
	}

	switch item.Type {
	case content.TypeIntegration:
		if item.Integration != nil {
			for _, cmd := range item.Integration.Commands {
				add(RelHasCommand, false, TargetRef{ID: cmd.Name, Lookup: LookupCommand})
			}
		}
	case content.TypePlaybook, content.TypeTestPlaybook:
		if item.Playbook != nil {
			for _, task := range item.Playbook.Tasks {
				mandatory := !task.SkipUnavailable
				if task.ScriptName != "" {
					add(RelUses, mandatory, TargetRef{Type: content.TypeScript, ID: task.ScriptName, Lookup: LookupName})
				}
				if task.ScriptID != "" {
					if integration, command, ok := splitCommandRef(task.ScriptID); ok {
						ref := TargetRef{ID: command, Lookup: LookupCommand}
						if integration != "" {
							ref = TargetRef{Type: content.TypeIntegration, ID: integration, Lookup: LookupID}
						}
						add(RelUses, mandatory, ref)
					} else {
						add(RelUses, mandatory, TargetRef{Type: content.TypeScript, ID: task.ScriptID, Lookup: LookupID})
					}
				}
				if task.PlaybookName != "" {
					add(RelUses, mandatory, TargetRef{Type: content.TypePlaybook, ID: task.PlaybookName, Lookup: LookupName})
				}
			}
		}
	case content.TypeMapper, content.TypeClassifier:
		if item.Mapper != nil {
			for _, cli := range item.Mapper.FieldCliNames {
				add(RelUses, false, TargetRef{Type: content.TypeIncidentField, ID: cli, Lookup: LookupCliName})
			}
			for _, typeID := range item.Mapper.IncidentTypeIDs {
				add(RelUses, false, TargetRef{Type: content.TypeIncidentType, ID: typeID, Lookup: LookupID})
			}
		}
	case content.TypeLayout, content.TypeCaseLayout:
		if item.Layout != nil {
			for _, cli := range item.Layout.FieldCliNames {
				add(RelUses, false, TargetRef{Type: content.TypeIncidentField, ID: cli, Lookup: LookupCliName})
			}
			for _, scriptID := range item.Layout.ScriptIDs {
				add(RelUses, true, TargetRef{Type: content.TypeScript, ID: scriptID, Lookup: LookupID})
			}
		}
	case content.TypePack:
		if pack, ok := packs[item.PackID]; ok {
			depIDs := make([]string, 0, len(pack.Metadata.Dependencies))
			for depID := range pack.Metadata.Dependencies {
				depIDs = append(depIDs, depID)
			}
			sort.Strings(depIDs)
			for _, depID := range depIDs {
				rel := Relationship{
					Source:    item,
					Kind:      RelDependsOn,
					Mandatory: pack.Metadata.Dependencies[depID].Mandatory,
					Ref:       TargetRef{ID: depID, Lookup: LookupPack},
				}
				if dep, ok := packs[depID]; ok {
					rel.TargetPack = dep
				}
				rels = append(rels, rel)
			}
		}
	}

	// tests: section names the test playbooks covering this item.
	if item.Type == content.TypeIntegration || item.Type == content.TypePlaybook || item.Type == content.TypeScript {
		if tests, ok := item.Data["tests"]; ok {
			for _, name := range testNames(tests) {
				add(RelTestedBy, false, TargetRef{Type: content.TypeTestPlaybook, ID: name, Lookup: LookupName})
			}
		}
	}
	return rels
}

// splitCommandRef splits "integration|||command" references.
func splitCommandRef(ref string) (integration, command string, ok bool) {
	idx := strings.Index(ref, "|||")
	if idx < 0 {
		return "", "", false
	}
	return ref[:idx], ref[idx+3:], true
}

func testNames(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			continue
		}
		if strings.EqualFold(s, "no tests") || strings.HasPrefix(strings.ToLower(s), "no test") {
			continue
		}
		out = append(out, s)
	}
	return out
}
