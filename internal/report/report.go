// Package report renders a validation run for humans (grouped, aligned text)
// and machines (deterministic JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/contentops/packlint/internal/validate"
)

// Format selects the output rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// KnownFormats lists the accepted report formats.
var KnownFormats = []Format{FormatText, FormatJSON}

// Write renders the report in the requested format.
func Write(w io.Writer, rep *validate.RunReport, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatText, "":
		return writeText(w, rep)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile renders the report into a file alongside the main output.
func WriteFile(path string, rep *validate.RunReport, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return Write(f, rep, format)
}

// writeJSON emits the report with a fixed field order and no timestamps, so
// identical runs produce identical bytes.
func writeJSON(w io.Writer, rep *validate.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// writeText groups results by file, aligns the code column, and closes with a
// severity summary.
func writeText(w io.Writer, rep *validate.RunReport) error {
	if len(rep.Results) == 0 {
		fmt.Fprintf(w, "No issues found (%d files checked)\n", rep.Checked)
		return writeFixes(w, rep)
	}

	codeWidth := 0
	for _, res := range rep.Results {
		if width := runewidth.StringWidth(res.Code); width > codeWidth {
			codeWidth = width
		}
	}

	lastPath := "\x00"
	for _, res := range rep.Results {
		path := res.Path
		if path == "" {
			path = "(run)"
		}
		if path != lastPath {
			if lastPath != "\x00" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s\n", path)
			lastPath = path
		}
		code := res.Code + strings.Repeat(" ", codeWidth-runewidth.StringWidth(res.Code))
		fmt.Fprintf(w, "  [%s] %s: %s\n", code, res.Severity, res.Message)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, summaryLine(rep))
	return writeFixes(w, rep)
}

func writeFixes(w io.Writer, rep *validate.RunReport) error {
	if len(rep.Fixes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for _, fix := range rep.Fixes {
		verb := "fixed"
		if fix.Failed {
			verb = "fix failed"
		}
		fmt.Fprintf(w, "  [%s] %s: %s (%s)\n", fix.Code, fix.Path, fix.Message, verb)
	}
	return nil
}

// summaryLine renders the severity counts footer.
func summaryLine(rep *validate.RunReport) string {
	counts := map[validate.Severity]int{}
	fixable := 0
	for _, res := range rep.Results {
		counts[res.Severity]++
		if res.Fixable {
			fixable++
		}
	}
	severities := make([]string, 0, len(counts))
	for sev := range counts {
		severities = append(severities, string(sev))
	}
	sort.Strings(severities)
	parts := make([]string, 0, len(severities)+1)
	for _, sev := range severities {
		parts = append(parts, fmt.Sprintf("%d %s(s)", counts[validate.Severity(sev)], sev))
	}
	parts = append(parts, fmt.Sprintf("%d fixable", fixable))
	return fmt.Sprintf("%d files checked: %s", rep.Checked, strings.Join(parts, ", "))
}

// ListCodes prints the error catalog: code, severity, fixability flags of the
// registered validators, and the catalog description.
func ListCodes(w io.Writer) {
	fixable := map[string]bool{}
	described := map[string]string{}
	for _, v := range validate.Registered() {
		meta := v.Meta()
		fixable[meta.Code] = meta.AutoFixable
		described[meta.Code] = meta.Description
	}
	codeWidth := 0
	for _, code := range validate.Codes() {
		if width := runewidth.StringWidth(code); width > codeWidth {
			codeWidth = width
		}
	}
	for _, code := range validate.Codes() {
		record, _ := validate.Lookup(code)
		flags := " "
		if fixable[code] {
			flags = "F"
		}
		desc := described[code]
		if desc == "" {
			desc = record.Template
		}
		padded := code + strings.Repeat(" ", codeWidth-runewidth.StringWidth(code))
		fmt.Fprintf(w, "%s  %-7s  %s  %s\n", padded, record.DefaultSeverity, flags, desc)
	}
}
