package validate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/graph"
	"github.com/contentops/packlint/internal/repo"
	"github.com/contentops/packlint/internal/vcs"
	"github.com/contentops/packlint/pkg/exitcode"
	"github.com/contentops/packlint/pkg/logger"
)

// RunOptions configures a validation run.
type RunOptions struct {
	Root             string
	Mode             repo.ExecutionMode
	FilePaths        []string
	BaselineRef      string
	IncludeUntracked bool
	Fix              bool
	// Categories restricts the run to the named rule families (two-letter
	// prefixes); empty means every family.
	Categories []string
	// AllowCodes bypass .pack-ignore suppression; DenyCodes are dropped
	// outright.
	AllowCodes    []string
	DenyCodes     []string
	ExcludeGlobs  []string
	FailOnWarning bool
	// Jobs bounds concurrent validator checks; the fix pass always runs
	// sequentially.
	Jobs int
}

// RunReport is the outcome of a validation run: every surviving finding in
// deterministic (path, code, message) order plus the fixes applied.
type RunReport struct {
	Results []Result     `json:"results"`
	Fixes   []FixOutcome `json:"fixes,omitempty"`
	// Checked counts the files in validation scope; Ignored the recognized
	// but skipped paths.
	Checked int `json:"checked"`
	Ignored int `json:"ignored"`
}

// HasErrors reports whether any result carries error severity.
func (r *RunReport) HasErrors() bool {
	for _, res := range r.Results {
		if res.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any result carries warning severity.
func (r *RunReport) HasWarnings() bool {
	for _, res := range r.Results {
		if res.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// ExitCode maps the report to a process exit code.
func (r *RunReport) ExitCode(failOnWarning bool) int {
	if r.HasErrors() {
		return exitcode.ValidationError
	}
	if failOnWarning && r.HasWarnings() {
		return exitcode.ValidationError
	}
	return exitcode.Success
}

// Engine orchestrates one validation run end to end: discovery, loading,
// graph construction, dispatch, suppression and the optional fix pass.
type Engine struct {
	opts    RunOptions
	loader  *content.Loader
	adapter vcs.Adapter
	// relatedChanged maps an item path to the auxiliary kinds that changed.
	relatedChanged map[string][]content.RelatedFileType
}

// NewEngine builds an engine for the given options.
func NewEngine(opts RunOptions) *Engine {
	if opts.BaselineRef == "" {
		opts.BaselineRef = "origin/master"
	}
	return &Engine{
		opts:           opts,
		loader:         content.NewLoader(opts.Root),
		relatedChanged: make(map[string][]content.RelatedFileType),
	}
}

// Run executes the full pipeline. Infrastructure failures (unreadable repo,
// broken git state) return an error; content violations come back as results.
func (e *Engine) Run() (*RunReport, error) {
	if e.opts.Mode == repo.ModeUseGit {
		adapter, err := vcs.Open(e.opts.Root)
		if err != nil {
			return nil, fmt.Errorf("open repository: %w", err)
		}
		e.adapter = adapter
	}

	discovered, err := repo.Discover(repo.Options{
		Root:             e.opts.Root,
		Mode:             e.opts.Mode,
		FilePaths:        e.opts.FilePaths,
		BaselineRef:      e.opts.BaselineRef,
		IncludeUntracked: e.opts.IncludeUntracked,
		ExcludeGlobs:     e.opts.ExcludeGlobs,
	}, e.adapter)
	if err != nil {
		return nil, err
	}

	scope := e.applyIgnoreCoupling(discovered)
	for _, f := range scope {
		if len(f.RelatedChanged) > 0 {
			e.relatedChanged[f.Path] = f.RelatedChanged
		}
	}

	packs, items, scopeItems, runErrors := e.load(scope)

	var backend graph.Backend
	graphErr := false
	if needsGraph() {
		memory, err := e.buildGraph(packs, items)
		if err != nil {
			graphErr = true
			runErrors = append(runErrors, graphFailureResult(err))
		} else {
			backend = memory
		}
	} else {
		memory := graph.Build(packs, items)
		backend = memory
	}

	suppressor := NewSuppressor(packs, e.loadIgnoreFiles(packs), e.opts.AllowCodes, e.opts.DenyCodes)

	report := &RunReport{
		Checked: len(scope),
		Ignored: len(discovered.Ignored),
	}
	report.Results = append(report.Results, runErrors...)
	report.Results = append(report.Results, suppressor.MisuseDiagnostics()...)

	type ruleRun struct {
		v       Validator
		in      Input
		results []Result
	}
	var runs []*ruleRun
	for _, v := range Registered() {
		meta := v.Meta()
		if !e.categoryEnabled(meta.Code) {
			continue
		}
		if !modeEnabled(meta.Modes, e.opts.Mode) {
			continue
		}
		if meta.NeedsGraph && (backend == nil || graphErr) {
			continue
		}
		batch := e.selectItems(meta, scopeItems)
		if len(batch) == 0 {
			continue
		}
		runs = append(runs, &ruleRun{v: v, in: Input{
			Items:               batch,
			Graph:               backend,
			Packs:               packs,
			ChangedReleaseNotes: discovered.ChangedReleaseNotes,
		}})
	}

	// Checks are pure over a read-only graph, so they parallelize freely; the
	// fix pass mutates files and stays sequential.
	if e.opts.Jobs > 1 && !e.opts.Fix {
		var g errgroup.Group
		g.SetLimit(e.opts.Jobs)
		for _, r := range runs {
			r := r
			g.Go(func() error {
				r.results = e.dispatch(r.v, r.in)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, r := range runs {
			r.results = e.dispatch(r.v, r.in)
		}
	}

	for _, r := range runs {
		results := r.results
		if e.opts.Fix {
			results = e.fixPass(r.v, r.in, results, suppressor, report)
		}
		for _, res := range results {
			switch suppressor.Resolve(packIDOf(res), res.Path, res.Code) {
			case DecisionSuppress:
				continue
			case DecisionWarn:
				if res.Severity == SeverityError {
					res.Severity = SeverityWarning
				}
			}
			report.Results = append(report.Results, res)
		}
	}

	sortResults(report.Results)
	sort.Slice(report.Fixes, func(i, j int) bool {
		if report.Fixes[i].Path != report.Fixes[j].Path {
			return report.Fixes[i].Path < report.Fixes[j].Path
		}
		return report.Fixes[i].Code < report.Fixes[j].Code
	})
	return report, nil
}

// dispatch runs one validator with panic containment. A panicking rule is
// reported as its own finding rather than taking down the run.
func (e *Engine) dispatch(v Validator, in Input) (results []Result) {
	defer func() {
		if rec := recover(); rec != nil {
			meta := v.Meta()
			logger.Error(fmt.Sprintf("validator %s panicked: %v", meta.Code, rec))
			results = []Result{{
				Code:     meta.Code,
				Message:  fmt.Sprintf("internal validator failure: %v", rec),
				Severity: SeverityError,
			}}
		}
	}()
	return v.Check(in)
}

// fixPass applies a Fixer's repairs to its unsuppressed findings, persists the
// touched files, and re-checks only this validator over the fixed items.
func (e *Engine) fixPass(v Validator, in Input, results []Result, suppressor *Suppressor, report *RunReport) []Result {
	fixer, ok := v.(Fixer)
	if !ok {
		return results
	}
	meta := v.Meta()

	fixedItems := make(map[*content.ContentItem]bool)
	for _, res := range results {
		if !res.Fixable || res.Item == nil {
			continue
		}
		if suppressor.Resolve(packIDOf(res), res.Path, res.Code) == DecisionSuppress {
			continue
		}
		if err := fixer.Fix(res.Item); err != nil {
			report.Fixes = append(report.Fixes, FixOutcome{
				Code:    meta.Code,
				Path:    res.Path,
				Message: fmt.Sprintf("fix failed: %v", err),
				Failed:  true,
			})
			continue
		}
		if err := e.loader.Persist(res.Item); err != nil {
			report.Fixes = append(report.Fixes, FixOutcome{
				Code:    meta.Code,
				Path:    res.Path,
				Message: fmt.Sprintf("fix not persisted: %v", err),
				Failed:  true,
			})
			continue
		}
		fixedItems[res.Item] = true
		report.Fixes = append(report.Fixes, FixOutcome{
			Code:    meta.Code,
			Path:    res.Path,
			Message: meta.FixMessage,
		})
	}
	if len(fixedItems) == 0 {
		return results
	}

	// Keep findings on untouched items; re-derive the rest from a fresh check
	// restricted to the fixed items.
	var kept []Result
	for _, res := range results {
		if res.Item == nil || !fixedItems[res.Item] {
			kept = append(kept, res)
		}
	}
	recheck := in
	recheck.Items = nil
	for _, item := range in.Items {
		if fixedItems[item] {
			recheck.Items = append(recheck.Items, item)
		}
	}
	return append(kept, e.dispatch(v, recheck)...)
}

// selectItems filters the scoped items through the validator's declared
// constraints.
func (e *Engine) selectItems(meta Metadata, items []*content.ContentItem) []*content.ContentItem {
	applies := meta.AppliesTo
	if applies == nil {
		applies = content.NonPackTypes
	}
	typeSet := make(map[content.ContentType]struct{}, len(applies))
	for _, t := range applies {
		typeSet[t] = struct{}{}
	}
	var statusSet map[content.GitStatus]struct{}
	if len(meta.GitStatuses) > 0 {
		statusSet = make(map[content.GitStatus]struct{}, len(meta.GitStatuses))
		for _, s := range meta.GitStatuses {
			statusSet[s] = struct{}{}
		}
	}

	var out []*content.ContentItem
	for _, item := range items {
		if item.LoadError != nil && !meta.IncludeUnloadable {
			continue
		}
		if item.Type.IsTestContent() && !meta.IncludeTestContent {
			continue
		}
		if item.Type != "" {
			if _, ok := typeSet[item.Type]; !ok {
				continue
			}
		} else if !meta.IncludeUnloadable {
			// Untyped items are reachable only by the structural family.
			continue
		}
		if statusSet != nil {
			if _, ok := statusSet[item.GitStatus]; !ok {
				continue
			}
		}
		if len(meta.RelatedFiles) > 0 && !e.relatedFileEligible(meta, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// relatedFileEligible keeps items whose declared auxiliary kinds changed in
// this run, or simply exist when running over the whole repository.
func (e *Engine) relatedFileEligible(meta Metadata, item *content.ContentItem) bool {
	if e.opts.Mode == repo.ModeAllFiles {
		for _, kind := range meta.RelatedFiles {
			if _, ok := item.RelatedFiles[kind]; ok {
				return true
			}
		}
		return false
	}
	changed := e.relatedChanged[item.Path]
	for _, kind := range meta.RelatedFiles {
		for _, ch := range changed {
			if ch == kind {
				return true
			}
		}
	}
	return false
}

func (e *Engine) categoryEnabled(code string) bool {
	if len(e.opts.Categories) == 0 {
		return true
	}
	family := Family(code)
	for _, c := range e.opts.Categories {
		if strings.EqualFold(c, family) {
			return true
		}
	}
	return false
}

func modeEnabled(modes []repo.ExecutionMode, mode repo.ExecutionMode) bool {
	if len(modes) == 0 {
		return true
	}
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

// load parses the scope into packs and items, fetching baseline forms through
// the VCS adapter for modified, renamed and deleted entries. The returned
// items slice additionally carries the rest of the repository when a graph
// rule is registered, so cross-item queries see the full content set.
func (e *Engine) load(scope []repo.DiscoveredFile) (map[string]*content.Pack, []*content.ContentItem, []*content.ContentItem, []Result) {
	var runErrors []Result

	packIDs := map[string]bool{}
	for _, f := range scope {
		if id := content.PackIDFromPath(f.Path); id != "" {
			packIDs[id] = true
		}
	}

	graphFiles := e.graphFiles(scope)
	for _, f := range graphFiles {
		if id := content.PackIDFromPath(f.Path); id != "" {
			packIDs[id] = true
		}
	}

	packs := make(map[string]*content.Pack, len(packIDs))
	packItems := make(map[string]*content.ContentItem, len(packIDs))
	ids := make([]string, 0, len(packIDs))
	for id := range packIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pack, item := e.loader.LoadPack(id, content.StatusUnchanged)
		packs[id] = pack
		packItems[id] = item
	}

	byPath := make(map[string]*content.ContentItem)
	var items []*content.ContentItem
	var scopeItems []*content.ContentItem

	loadOne := func(f repo.DiscoveredFile, inScope bool) {
		if existing, ok := byPath[f.Path]; ok {
			if inScope {
				existing.GitStatus = f.Status
				scopeItems = append(scopeItems, existing)
			}
			return
		}
		var item *content.ContentItem
		if filepath.Base(f.Path) == "pack_metadata.json" {
			packID := content.PackIDFromPath(f.Path)
			item = packItems[packID]
			if item == nil {
				return
			}
			item.GitStatus = f.Status
			if pack := packs[packID]; pack != nil {
				pack.GitStatus = f.Status
				e.attachPackBaseline(pack, item, f)
			}
		} else if f.Status == content.StatusDeleted {
			item = e.loadDeleted(f)
			if item == nil {
				return
			}
		} else {
			item = e.loader.LoadItem(f.Path, f.Status)
			e.attachBaseline(item, f)
		}
		item.OldPath = f.OldPath
		byPath[f.Path] = item
		items = append(items, item)
		if inScope {
			scopeItems = append(scopeItems, item)
		}
	}

	for _, f := range scope {
		loadOne(f, true)
	}
	for _, f := range graphFiles {
		loadOne(f, false)
	}

	return packs, items, scopeItems, runErrors
}

// graphFiles returns the rest of the repository's primary files when a graph
// rule is registered and the run is not already repository-wide.
func (e *Engine) graphFiles(scope []repo.DiscoveredFile) []repo.DiscoveredFile {
	if !needsGraph() || e.opts.Mode == repo.ModeAllFiles {
		return nil
	}
	all, err := repo.Discover(repo.Options{
		Root:         e.opts.Root,
		Mode:         repo.ModeAllFiles,
		ExcludeGlobs: e.opts.ExcludeGlobs,
	}, nil)
	if err != nil {
		logger.Warn(fmt.Sprintf("full-repository discovery for the graph failed: %v", err))
		return nil
	}
	inScope := make(map[string]bool, len(scope))
	for _, f := range scope {
		inScope[f.Path] = true
	}
	var out []repo.DiscoveredFile
	for _, f := range all.Files {
		if !inScope[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

func needsGraph() bool {
	for _, v := range Registered() {
		if v.Meta().NeedsGraph {
			return true
		}
	}
	return false
}

// graphFailureCode is the run-level diagnostic for a graph construction
// failure; it is distinct from every rule code so reports and suppression
// routing cannot confuse it with a content finding.
const graphFailureCode = "GR199"

func graphFailureResult(err error) Result {
	record, _ := Lookup(graphFailureCode)
	return Result{
		Code:     graphFailureCode,
		Message:  Message(graphFailureCode, err),
		Severity: record.DefaultSeverity,
	}
}

func (e *Engine) buildGraph(packs map[string]*content.Pack, items []*content.ContentItem) (_ *graph.Memory, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("build graph: %v", rec)
		}
	}()
	return graph.Build(packs, items), nil
}

// loadDeleted materializes a deleted file from its baseline content so
// backward-compatibility rules can inspect what was removed.
func (e *Engine) loadDeleted(f repo.DiscoveredFile) *content.ContentItem {
	if e.adapter == nil {
		return nil
	}
	data, err := e.adapter.FileAt(e.opts.BaselineRef, f.Path)
	if err != nil {
		logger.Warn(fmt.Sprintf("baseline content for deleted %s unavailable: %v", f.Path, err))
		return nil
	}
	return e.loader.LoadItemBytes(f.Path, data, content.StatusDeleted)
}

// attachBaseline loads the item's baseline form for modified and renamed files.
func (e *Engine) attachBaseline(item *content.ContentItem, f repo.DiscoveredFile) {
	if e.adapter == nil {
		return
	}
	if f.Status != content.StatusModified && f.Status != content.StatusRenamed {
		return
	}
	oldPath := f.OldPath
	if oldPath == "" {
		oldPath = f.Path
	}
	data, err := e.adapter.FileAt(e.opts.BaselineRef, oldPath)
	if err != nil {
		logger.Debug(fmt.Sprintf("no baseline for %s at %s: %v", oldPath, e.opts.BaselineRef, err))
		return
	}
	item.OldBase = e.loader.LoadItemBytes(oldPath, data, content.StatusUnchanged)
}

// attachPackBaseline loads the baseline metadata as both the Pack and its
// content-item form, so pack-level and item-level compatibility rules see the
// same old state.
func (e *Engine) attachPackBaseline(pack *content.Pack, item *content.ContentItem, f repo.DiscoveredFile) {
	if e.adapter == nil || f.Status != content.StatusModified {
		return
	}
	data, err := e.adapter.FileAt(e.opts.BaselineRef, pack.MetadataPath)
	if err != nil {
		return
	}
	pack.OldBase = e.loader.LoadPackBytes(pack.ID, data, content.StatusUnchanged)
	item.OldBase = e.loader.PackItem(pack.OldBase)
}

// applyIgnoreCoupling widens the scope with the files whose .pack-ignore
// sections changed, so edits to suppressions always trigger re-validation of
// the files they cover.
func (e *Engine) applyIgnoreCoupling(discovered *repo.Result) []repo.DiscoveredFile {
	scope := discovered.Files
	if len(discovered.ChangedPackIgnores) == 0 {
		return scope
	}
	inScope := make(map[string]bool, len(scope))
	for _, f := range scope {
		inScope[f.Path] = true
	}
	for _, ignorePath := range discovered.ChangedPackIgnores {
		packID := content.PackIDFromPath(ignorePath)
		current := e.parseIgnoreAt(filepath.Join(e.opts.Root, ignorePath))
		var old *PackIgnore
		if e.adapter != nil {
			if data, err := e.adapter.FileAt(e.opts.BaselineRef, ignorePath); err == nil {
				old, _ = ParsePackIgnore(data)
			}
		}
		for _, base := range ChangedSections(old, current) {
			path := e.findPackFile(packID, base)
			if path == "" || inScope[path] {
				continue
			}
			inScope[path] = true
			scope = append(scope, repo.DiscoveredFile{Path: path, Status: content.StatusModified})
		}
	}
	sort.Slice(scope, func(i, j int) bool { return scope[i].Path < scope[j].Path })
	return scope
}

func (e *Engine) parseIgnoreAt(abs string) *PackIgnore {
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil
	}
	pi, err := ParsePackIgnore(data)
	if err != nil {
		logger.Warn(fmt.Sprintf("unparsable .pack-ignore at %s: %v", abs, err))
		return nil
	}
	return pi
}

// findPackFile locates a file by base name inside the pack's directory.
func (e *Engine) findPackFile(packID, base string) string {
	packDir := filepath.Join(e.opts.Root, content.PackRootDir, packID)
	var found string
	_ = filepath.WalkDir(packDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return fs.SkipAll
		}
		if !d.IsDir() && d.Name() == base {
			if rel, relErr := filepath.Rel(e.opts.Root, path); relErr == nil {
				found = filepath.ToSlash(rel)
			}
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// loadIgnoreFiles parses every involved pack's .pack-ignore.
func (e *Engine) loadIgnoreFiles(packs map[string]*content.Pack) map[string]*PackIgnore {
	out := make(map[string]*PackIgnore)
	for id, pack := range packs {
		if pi := e.parseIgnoreAt(filepath.Join(e.opts.Root, pack.IgnorePath)); pi != nil {
			out[id] = pi
		}
	}
	return out
}

func packIDOf(res Result) string {
	if res.Item != nil {
		return res.Item.PackID
	}
	return content.PackIDFromPath(res.Path)
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		if results[i].Code != results[j].Code {
			return results[i].Code < results[j].Code
		}
		return results[i].Message < results[j].Message
	})
}
