package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contentops/packlint/pkg/versioning"
)

// yamlDoc retains the parsed node tree of a YAML source so auto-fix dumps
// preserve key order and comments.
type yamlDoc struct {
	root *yaml.Node
}

func (d *yamlDoc) mapping() *yaml.Node {
	if d == nil || d.root == nil || len(d.root.Content) == 0 {
		return nil
	}
	m := d.root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	return m
}

// setScalar updates (or appends) a top-level string key.
func (d *yamlDoc) setScalar(key, value string) bool {
	m := d.mapping()
	if m == nil {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1].SetString(value)
			return true
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value},
	)
	return true
}

func (d *yamlDoc) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Loader parses content files into typed items. It never modifies files on
// disk; persistence of fixed items goes through Persist.
type Loader struct {
	RepoRoot string
}

// NewLoader creates a loader rooted at the repository directory.
func NewLoader(repoRoot string) *Loader {
	return &Loader{RepoRoot: repoRoot}
}

// LoadItem reads and parses the repo-relative path into a content item. Parse
// and typing failures are recorded on the item rather than returned: the
// structural rule family reports them, and downstream rules skip the item.
func (l *Loader) LoadItem(relPath string, status GitStatus) *ContentItem {
	data, err := os.ReadFile(filepath.Join(l.RepoRoot, relPath))
	if err != nil {
		return &ContentItem{
			Path:      filepath.ToSlash(relPath),
			GitStatus: status,
			PackID:    PackIDFromPath(relPath),
			LoadError: fmt.Errorf("read: %w", err),
		}
	}
	item := l.LoadItemBytes(relPath, data, status)
	l.attachRelatedFiles(item)
	return item
}

// LoadItemBytes parses raw bytes as the given repo-relative path. Used both
// for working-tree files and for baseline content fetched through the VCS
// adapter.
func (l *Loader) LoadItemBytes(relPath string, data []byte, status GitStatus) *ContentItem {
	rel := filepath.ToSlash(relPath)
	item := &ContentItem{
		Path:      rel,
		GitStatus: status,
		PackID:    PackIDFromPath(rel),
	}

	pathType, knownPath := DetectType(rel)

	isJSON := strings.HasSuffix(rel, ".json")
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		item.Type = pathType
		item.LoadError = fmt.Errorf("parse: %w", err)
		return item
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil || raw == nil {
		item.Type = pathType
		if err == nil {
			err = fmt.Errorf("top-level value is not a mapping")
		}
		item.LoadError = fmt.Errorf("parse: %w", err)
		return item
	}

	item.Data = raw
	item.isJSON = isJSON
	if !isJSON {
		item.doc = &yamlDoc{root: &root}
	}

	if !knownPath {
		// Typing failure is reported by BA102; leave Type empty.
		return item
	}
	refined, err := RefineType(pathType, raw)
	if err != nil {
		item.TypeError = err
		return item
	}
	item.Type = refined

	l.populate(item)
	return item
}

// populate fills the shared base attributes and type-specific details.
func (l *Loader) populate(item *ContentItem) {
	raw := item.Data

	item.ObjectID = extractID(item.Type, raw)
	item.Name = stringField(raw, "name")
	item.DisplayName = stringField(raw, "display")
	if item.DisplayName == "" {
		item.DisplayName = item.Name
	}
	item.Deprecated = boolField(raw, "deprecated")

	from, err := versioning.ParseOrDefault(stringField(raw, "fromversion", "fromVersion"), versioning.Floor)
	if err != nil {
		item.LoadError = fmt.Errorf("fromversion: %w", err)
		return
	}
	to, err := versioning.ParseOrDefault(stringField(raw, "toversion", "toVersion"), versioning.Ceiling)
	if err != nil {
		item.LoadError = fmt.Errorf("toversion: %w", err)
		return
	}
	item.FromVersion = from
	item.ToVersion = to

	if v, ok := raw["marketplaces"]; ok {
		item.MarketplacesDeclared = true
		for _, s := range stringSlice(v) {
			item.Marketplaces = append(item.Marketplaces, Marketplace(s))
		}
	}
	if v, ok := raw["supportedModules"]; ok {
		item.ModulesDeclared = true
		item.SupportedModules = stringSlice(v)
		if item.SupportedModules == nil {
			item.SupportedModules = []string{}
		}
	}

	switch item.Type {
	case TypeIntegration:
		item.Integration = extractIntegration(raw)
	case TypeScript, TypeTestScript:
		item.Script = extractScript(raw)
	case TypePlaybook, TypeTestPlaybook:
		item.Playbook = extractPlaybook(raw)
	case TypeIncidentField, TypeIndicatorField, TypeCaseField, TypeGenericField:
		item.Field = extractField(raw)
	case TypeMapper, TypeClassifier:
		item.Mapper = extractMapper(raw)
	case TypeLayout, TypeCaseLayout:
		item.Layout = extractLayout(raw)
	}
}

// attachRelatedFiles records the auxiliary files that exist beside the item.
func (l *Loader) attachRelatedFiles(item *ContentItem) {
	dir := filepath.Dir(item.Path)
	stem := strings.TrimSuffix(filepath.Base(item.Path), filepath.Ext(item.Path))
	candidates := map[RelatedFileType]string{
		RelatedReadme:      filepath.ToSlash(filepath.Join(dir, "README.md")),
		RelatedDescription: filepath.ToSlash(filepath.Join(dir, stem+"_description.md")),
		RelatedImage:       filepath.ToSlash(filepath.Join(dir, stem+"_image.png")),
		RelatedSchema:      filepath.ToSlash(filepath.Join(dir, stem+"_schema.json")),
		RelatedTestData:    filepath.ToSlash(filepath.Join(dir, stem+"_test_data.json")),
	}
	for kind, rel := range candidates {
		if _, err := os.Stat(filepath.Join(l.RepoRoot, rel)); err == nil {
			if item.RelatedFiles == nil {
				item.RelatedFiles = make(map[RelatedFileType]string)
			}
			item.RelatedFiles[kind] = rel
		}
	}
}

// LoadPack reads a pack's metadata and shapes it as both a Pack and its
// metadata content item.
func (l *Loader) LoadPack(packID string, status GitStatus) (*Pack, *ContentItem) {
	packPath := filepath.ToSlash(filepath.Join(PackRootDir, packID))
	metaRel := filepath.ToSlash(filepath.Join(packPath, "pack_metadata.json"))

	pack := &Pack{
		ID:              packID,
		Path:            packPath,
		MetadataPath:    metaRel,
		ReleaseNotesDir: filepath.ToSlash(filepath.Join(packPath, "ReleaseNotes")),
		IgnorePath:      filepath.ToSlash(filepath.Join(packPath, ".pack-ignore")),
		GitStatus:       status,
	}

	data, err := os.ReadFile(filepath.Join(l.RepoRoot, metaRel))
	if err != nil {
		pack.LoadError = fmt.Errorf("read pack metadata: %w", err)
		return pack, l.PackItem(pack)
	}
	l.populatePack(pack, data)
	return pack, l.PackItem(pack)
}

// LoadPackBytes builds a Pack from raw metadata bytes (baseline retrieval).
func (l *Loader) LoadPackBytes(packID string, data []byte, status GitStatus) *Pack {
	packPath := filepath.ToSlash(filepath.Join(PackRootDir, packID))
	pack := &Pack{
		ID:              packID,
		Path:            packPath,
		MetadataPath:    filepath.ToSlash(filepath.Join(packPath, "pack_metadata.json")),
		ReleaseNotesDir: filepath.ToSlash(filepath.Join(packPath, "ReleaseNotes")),
		IgnorePath:      filepath.ToSlash(filepath.Join(packPath, ".pack-ignore")),
		GitStatus:       status,
	}
	l.populatePack(pack, data)
	return pack
}

func (l *Loader) populatePack(pack *Pack, data []byte) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		pack.LoadError = fmt.Errorf("parse pack metadata: %w", err)
		return
	}
	pack.Data = raw

	meta := PackMetadata{
		Name:             stringField(raw, "name"),
		Description:      stringField(raw, "description"),
		Support:          stringField(raw, "support"),
		CurrentVersion:   stringField(raw, "currentVersion"),
		Author:           stringField(raw, "author"),
		Categories:       stringSlice(raw["categories"]),
		Tags:             stringSlice(raw["tags"]),
		UseCases:         stringSlice(raw["useCases"]),
		Keywords:         stringSlice(raw["keywords"]),
		Marketplaces:     stringSlice(raw["marketplaces"]),
		SupportedModules: stringSlice(raw["supportedModules"]),
		Certification:    stringField(raw, "certification"),
		Created:          stringField(raw, "created"),
		Updated:          stringField(raw, "updated"),
	}
	if deps, ok := raw["dependencies"].(map[string]any); ok {
		meta.Dependencies = make(map[string]PackDependency, len(deps))
		for id, v := range deps {
			dep := PackDependency{}
			if m, ok := v.(map[string]any); ok {
				dep.Mandatory = boolField(m, "mandatory")
			}
			meta.Dependencies[id] = dep
		}
	}
	pack.Metadata = meta

	if len(meta.Marketplaces) > 0 {
		for _, m := range meta.Marketplaces {
			pack.Marketplaces = append(pack.Marketplaces, Marketplace(m))
		}
	} else {
		pack.Marketplaces = append([]Marketplace(nil), DefaultMarketplaces...)
	}
	if _, ok := raw["supportedModules"]; ok {
		pack.ModulesDeclared = true
		pack.SupportedModules = meta.SupportedModules
		if pack.SupportedModules == nil {
			pack.SupportedModules = []string{}
		}
	}
	if v, err := versioning.Parse(meta.CurrentVersion); err == nil {
		pack.CurrentVersion = v
	} else if meta.CurrentVersion != "" {
		pack.LoadError = fmt.Errorf("currentVersion: %w", err)
	}
}

// PackItem shapes a pack's metadata as a content item so pack-level
// validators flow through the same dispatch pipeline.
func (l *Loader) PackItem(pack *Pack) *ContentItem {
	item := &ContentItem{
		Type:         TypePack,
		ObjectID:     pack.ID,
		Name:         pack.Metadata.Name,
		DisplayName:  pack.Metadata.Name,
		Path:         pack.MetadataPath,
		Marketplaces: pack.Marketplaces,
		GitStatus:    pack.GitStatus,
		PackID:       pack.ID,
		Data:         pack.Data,
		LoadError:    pack.LoadError,
		isJSON:       true,
	}
	item.MarketplacesDeclared = len(pack.Metadata.Marketplaces) > 0
	item.ModulesDeclared = pack.ModulesDeclared
	item.SupportedModules = pack.SupportedModules
	return item
}

// SetField mutates a top-level field on the item, keeping the raw mapping and
// the retained YAML document in sync. Only auto-fixers call this.
func (c *ContentItem) SetField(key, value string) {
	if c.Data == nil {
		c.Data = make(map[string]any)
	}
	c.Data[key] = value
	if c.doc != nil {
		c.doc.setScalar(key, value)
	}
}

// Persist writes the (fixed) item back to disk. YAML items round-trip through
// the retained node tree so key order and comments survive; JSON items are
// re-marshaled with sorted keys and four-space indentation.
func (l *Loader) Persist(item *ContentItem) error {
	abs := filepath.Join(l.RepoRoot, item.Path)
	var out []byte
	var err error
	if item.doc != nil {
		out, err = item.doc.encode()
	} else {
		out, err = json.MarshalIndent(item.Data, "", "    ")
		out = append(out, '\n')
	}
	if err != nil {
		return fmt.Errorf("serialize %s: %w", item.Path, err)
	}
	if err := os.WriteFile(abs, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", item.Path, err)
	}
	return nil
}
