// Package repo walks a content repository and decides which files are in
// scope for a validation run: everything, an explicit list, or a git diff.
package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/contentops/packlint/internal/content"
	"github.com/contentops/packlint/internal/vcs"
	"github.com/contentops/packlint/pkg/logger"
)

// ExecutionMode selects the discovery strategy.
type ExecutionMode string

const (
	ModeAllFiles      ExecutionMode = "all_files"
	ModeSpecificFiles ExecutionMode = "specific_files"
	ModeUseGit        ExecutionMode = "use_git"
)

// AllModes lists every execution mode.
var AllModes = []ExecutionMode{ModeAllFiles, ModeSpecificFiles, ModeUseGit}

// DiscoveredFile is a primary content file selected for validation.
type DiscoveredFile struct {
	Path    string
	OldPath string
	Status  content.GitStatus
	// RelatedChanged lists auxiliary file kinds whose change redirected
	// validation to this primary file.
	RelatedChanged []content.RelatedFileType
}

// Result is the outcome of discovery.
type Result struct {
	Files []DiscoveredFile
	// ChangedPackIgnores holds .pack-ignore paths that changed in this run;
	// the engine re-validates the files those sections cover.
	ChangedPackIgnores []string
	// ChangedReleaseNotes maps pack id to release-note files added or
	// modified in this run.
	ChangedReleaseNotes map[string][]string
	// Ignored lists paths that were recognized as irrelevant and skipped.
	Ignored []string
}

// Options configures a discovery pass.
type Options struct {
	Root             string
	Mode             ExecutionMode
	FilePaths        []string
	BaselineRef      string
	IncludeUntracked bool
	ExcludeGlobs     []string
}

// Discover selects the files in scope for the run. The VCS adapter is
// consulted only in git mode and may be nil otherwise.
func Discover(opts Options, adapter vcs.Adapter) (*Result, error) {
	switch opts.Mode {
	case ModeAllFiles:
		return discoverAll(opts)
	case ModeSpecificFiles:
		return discoverSpecific(opts)
	case ModeUseGit:
		if adapter == nil {
			return nil, fmt.Errorf("git mode requires a VCS adapter")
		}
		return discoverGit(opts, adapter)
	default:
		return nil, fmt.Errorf("unknown execution mode %q", opts.Mode)
	}
}

func excluded(relPath string, globs []string) bool {
	rel := filepath.ToSlash(relPath)
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func discoverAll(opts Options) (*Result, error) {
	result := &Result{ChangedReleaseNotes: map[string][]string{}}
	packsDir := filepath.Join(opts.Root, content.PackRootDir)
	if _, err := os.Stat(packsDir); err != nil {
		return nil, fmt.Errorf("no %s directory under %s", content.PackRootDir, opts.Root)
	}

	err := filepath.WalkDir(packsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(opts.Root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if skipDir(d.Name()) || excluded(rel, opts.ExcludeGlobs) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded(rel, opts.ExcludeGlobs) {
			return nil
		}
		if isPrimaryContentFile(rel) {
			result.Files = append(result.Files, DiscoveredFile{Path: rel, Status: content.StatusUnchanged})
		} else {
			result.Ignored = append(result.Ignored, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFiles(result.Files)
	sort.Strings(result.Ignored)
	return result, nil
}

func discoverSpecific(opts Options) (*Result, error) {
	result := &Result{ChangedReleaseNotes: map[string][]string{}}
	for _, p := range opts.FilePaths {
		rel := filepath.ToSlash(filepath.Clean(p))
		if excluded(rel, opts.ExcludeGlobs) {
			result.Ignored = append(result.Ignored, rel)
			continue
		}
		status := content.StatusUnchanged
		if _, err := os.Stat(filepath.Join(opts.Root, rel)); err != nil {
			status = content.StatusDeleted
		}
		if isPrimaryContentFile(rel) {
			result.Files = append(result.Files, DiscoveredFile{Path: rel, Status: status})
		} else if primary := content.PrimaryFileFor(rel); primary != "" {
			kind, _ := content.RelatedFileFor(rel)
			result.Files = mergeRelated(result.Files, primary, kind)
		} else {
			// The caller named this exact file; keep it in scope so the
			// unsupported-file-type rule reports it instead of a silent skip.
			result.Files = append(result.Files, DiscoveredFile{Path: rel, Status: status})
		}
	}
	sortFiles(result.Files)
	sort.Strings(result.Ignored)
	return result, nil
}

func discoverGit(opts Options, adapter vcs.Adapter) (*Result, error) {
	changes, err := adapter.Changes(opts.BaselineRef, opts.IncludeUntracked)
	if err != nil {
		return nil, fmt.Errorf("compute git changes against %s: %w", opts.BaselineRef, err)
	}
	result := &Result{ChangedReleaseNotes: map[string][]string{}}
	for _, ch := range changes {
		rel := ch.Path
		if excluded(rel, opts.ExcludeGlobs) {
			continue
		}
		switch {
		case content.IsPackIgnore(rel):
			result.ChangedPackIgnores = append(result.ChangedPackIgnores, rel)
		case content.IsReleaseNote(rel):
			if ch.Status != content.StatusDeleted {
				packID := content.PackIDFromPath(rel)
				result.ChangedReleaseNotes[packID] = append(result.ChangedReleaseNotes[packID], rel)
			}
		case isPrimaryContentFile(rel):
			result.Files = append(result.Files, DiscoveredFile{
				Path:    rel,
				OldPath: ch.OldPath,
				Status:  ch.Status,
			})
		default:
			// Redirect changed auxiliary files to their owning primary file
			// so the associated validators fire.
			if primary := content.PrimaryFileFor(rel); primary != "" {
				kind, _ := content.RelatedFileFor(rel)
				result.Files = mergeRelated(result.Files, primary, kind)
			} else {
				result.Ignored = append(result.Ignored, rel)
			}
		}
	}
	sortFiles(result.Files)
	sort.Strings(result.ChangedPackIgnores)
	sort.Strings(result.Ignored)
	logger.Debug(fmt.Sprintf("git discovery: %d files in scope, %d ignored", len(result.Files), len(result.Ignored)))
	return result, nil
}

// mergeRelated records a related-file change against its primary file,
// appending a modified entry when the primary is not yet in scope.
func mergeRelated(files []DiscoveredFile, primary string, kind content.RelatedFileType) []DiscoveredFile {
	for i := range files {
		if files[i].Path == primary {
			files[i].RelatedChanged = appendKind(files[i].RelatedChanged, kind)
			return files
		}
	}
	return append(files, DiscoveredFile{
		Path:           primary,
		Status:         content.StatusModified,
		RelatedChanged: appendKind(nil, kind),
	})
}

func appendKind(kinds []content.RelatedFileType, kind content.RelatedFileType) []content.RelatedFileType {
	if kind == "" {
		return kinds
	}
	for _, k := range kinds {
		if k == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}

// isPrimaryContentFile reports whether the path is a content file the loader
// should parse (including pack_metadata.json).
func isPrimaryContentFile(rel string) bool {
	if filepath.Base(rel) == "pack_metadata.json" {
		return content.PackIDFromPath(rel) != ""
	}
	if _, ok := content.DetectType(rel); ok {
		// Unit tests and sample data live beside primary files with the
		// same extensions; filter the known irrelevant names.
		base := filepath.Base(rel)
		if strings.Contains(base, "_test.") || strings.HasPrefix(base, "test-") {
			return false
		}
		return true
	}
	return false
}

func skipDir(name string) bool {
	switch name {
	case ".git", "ReleaseNotes", "TestData", "test_data", "doc_files", "__pycache__":
		return true
	}
	return false
}

func sortFiles(files []DiscoveredFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
