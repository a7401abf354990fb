package validate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-ini/ini"

	"github.com/contentops/packlint/internal/content"
)

// Decision is the suppression resolver's verdict for a (pack, file, code).
type Decision int

const (
	DecisionReport Decision = iota
	DecisionWarn
	DecisionSuppress
)

// PackIgnore is a parsed .pack-ignore file: per-file sections listing ignored
// codes.
type PackIgnore struct {
	// Sections maps a file base name to the codes its section ignores.
	Sections map[string][]string
}

// ParsePackIgnore parses the INI-like .pack-ignore format:
//
//	[file:integration-foo.yml]
//	ignore=BA100,IN101
func ParsePackIgnore(data []byte) (*PackIgnore, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("parse .pack-ignore: %w", err)
	}
	out := &PackIgnore{Sections: make(map[string][]string)}
	for _, section := range file.Sections() {
		name := section.Name()
		if !strings.HasPrefix(name, "file:") {
			continue
		}
		fileName := strings.TrimSpace(strings.TrimPrefix(name, "file:"))
		if fileName == "" {
			continue
		}
		var codes []string
		if key, err := section.GetKey("ignore"); err == nil {
			for _, code := range strings.Split(key.String(), ",") {
				code = strings.ToUpper(strings.TrimSpace(code))
				if code != "" {
					codes = append(codes, code)
				}
			}
		}
		sort.Strings(codes)
		out.Sections[fileName] = codes
	}
	return out, nil
}

// ChangedSections compares two parsed .pack-ignore files and returns the file
// names whose ignore sets differ (added, removed or edited sections). The
// engine re-validates those files even when they are otherwise unchanged, so
// a new suppression cannot silently hide an earlier violation.
func ChangedSections(old, current *PackIgnore) []string {
	changed := map[string]bool{}
	oldSections := map[string][]string{}
	if old != nil {
		oldSections = old.Sections
	}
	curSections := map[string][]string{}
	if current != nil {
		curSections = current.Sections
	}
	for name, codes := range curSections {
		if prev, ok := oldSections[name]; !ok || strings.Join(prev, ",") != strings.Join(codes, ",") {
			changed[name] = true
		}
	}
	for name := range oldSections {
		if _, ok := curSections[name]; !ok {
			changed[name] = true
		}
	}
	out := make([]string, 0, len(changed))
	for name := range changed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// supportPresetIgnores maps a pack support level to the rule families
// reported as warnings rather than errors for that pack.
var supportPresetIgnores = map[string][]string{
	content.SupportCommunity: {"SC", "GR106"},
	content.SupportPartner:   {"GR106"},
}

// Suppressor resolves whether a (pack, file, code) finding is reported,
// downgraded or suppressed. Decisions are memoized for the run.
type Suppressor struct {
	ignores map[string]*PackIgnore // pack id -> parsed .pack-ignore
	packs   map[string]*content.Pack

	allowlist map[string]struct{} // codes forced on (bypass .pack-ignore)
	denylist  map[string]struct{} // codes dropped outright

	cache map[string]Decision
	// misuse collects one diagnostic per ignore entry outside the
	// allowed-ignore set.
	misuse []Result
}

// NewSuppressor builds the resolver. Ignore files are read once per pack.
func NewSuppressor(packs map[string]*content.Pack, ignores map[string]*PackIgnore, allowCodes, denyCodes []string) *Suppressor {
	s := &Suppressor{
		ignores:   ignores,
		packs:     packs,
		allowlist: codeSet(allowCodes),
		denylist:  codeSet(denyCodes),
		cache:     make(map[string]Decision),
	}
	s.collectMisuse()
	return s
}

func codeSet(codes []string) map[string]struct{} {
	if len(codes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return set
}

// collectMisuse reports every ignore entry for a code outside the
// allowed-ignore set. The entry has no suppression effect; BA120 records the
// attempt against the pack's .pack-ignore file.
func (s *Suppressor) collectMisuse() {
	packIDs := make([]string, 0, len(s.ignores))
	for packID := range s.ignores {
		packIDs = append(packIDs, packID)
	}
	sort.Strings(packIDs)
	for _, packID := range packIDs {
		pi := s.ignores[packID]
		ignorePath := filepath.ToSlash(filepath.Join(content.PackRootDir, packID, ".pack-ignore"))
		sections := make([]string, 0, len(pi.Sections))
		for name := range pi.Sections {
			sections = append(sections, name)
		}
		sort.Strings(sections)
		for _, name := range sections {
			for _, code := range pi.Sections[name] {
				if CanIgnore(code) {
					continue
				}
				record, _ := Lookup("BA120")
				s.misuse = append(s.misuse, Result{
					Code:     "BA120",
					Path:     ignorePath,
					Message:  Message("BA120", code) + fmt.Sprintf(" (section [file:%s])", name),
					Severity: record.DefaultSeverity,
				})
			}
		}
	}
}

// MisuseDiagnostics returns the BA120 results collected at parse time.
func (s *Suppressor) MisuseDiagnostics() []Result {
	return s.misuse
}

// Resolve decides the fate of one finding.
func (s *Suppressor) Resolve(packID, filePath, code string) Decision {
	key := packID + "\x00" + filePath + "\x00" + code
	if d, ok := s.cache[key]; ok {
		return d
	}
	d := s.resolve(packID, filePath, code)
	s.cache[key] = d
	return d
}

func (s *Suppressor) resolve(packID, filePath, code string) Decision {
	if _, denied := s.denylist[code]; denied {
		return DecisionSuppress
	}
	if _, forced := s.allowlist[code]; forced {
		return DecisionReport
	}

	// Explicit .pack-ignore entries win over support-level presets.
	if pi, ok := s.ignores[packID]; ok {
		base := filepath.Base(filePath)
		for _, ignored := range pi.Sections[base] {
			if ignored == code && CanIgnore(code) {
				return DecisionSuppress
			}
		}
	}

	if pack, ok := s.packs[packID]; ok {
		for _, prefix := range supportPresetIgnores[pack.Metadata.Support] {
			if code == prefix || strings.HasPrefix(code, prefix) {
				return DecisionWarn
			}
		}
	}
	return DecisionReport
}
