package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/common"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/options"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/types"
)

// Renderer writes a finished report.
type Renderer interface {
	Render(w io.Writer, r *types.Report) error
}

// NewRenderer picks the renderer for opts.Format.
func NewRenderer(opts options.ReportOptions) (Renderer, error) {
	switch opts.Format {
	case options.FormatText, "":
		return &TextRenderer{Summary: opts.Summary}, nil
	case options.FormatJSON:
		return &JSONRenderer{}, nil
	case options.FormatYAML:
		return &YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown output format %q", common.ErrInvalidOptions, opts.Format)
	}
}

// TextRenderer prints one line per visible entry.
type TextRenderer struct {
	Summary bool
}

func (tr *TextRenderer) Render(w io.Writer, r *types.Report) error {
	stream := NewTextStream(w, r.TreeFile, tr.Summary)
	for _, entry := range r.Entries {
		if err := stream.HandleEntry(entry); err != nil {
			return err
		}
	}
	return stream.Finish(r)
}

// TextStream writes each entry line the moment the scanner resolves it, so
// a run that is interrupted still shows what it already did.
type TextStream struct {
	w        io.Writer
	treeFile string
	summary  bool
}

func NewTextStream(w io.Writer, treeFile string, summary bool) *TextStream {
	return &TextStream{w: w, treeFile: treeFile, summary: summary}
}

// HandleEntry prints the line for entry; hidden entries print nothing.
func (ts *TextStream) HandleEntry(entry types.EntryResult) error {
	line, ok := EntryLine(entry, ts.treeFile)
	if !ok {
		return nil
	}
	_, err := fmt.Fprintln(ts.w, line)
	return err
}

// Finish prints the trailer of a completed scan: the "none found" line for
// an empty report, otherwise the optional summary.
func (ts *TextStream) Finish(r *types.Report) error {
	if r.Empty() {
		_, err := fmt.Fprintf(ts.w, "No %s* folders found.\n", r.Prefix)
		return err
	}
	if ts.summary {
		_, err := fmt.Fprintln(ts.w, SummaryLine(r.Summary))
		return err
	}
	return nil
}

// Lines returns the text report. Hidden entries produce no line; an empty
// report produces a single "none found" line and never a summary.
func Lines(r *types.Report, summary bool) []string {
	if r.Empty() {
		return []string{fmt.Sprintf("No %s* folders found.", r.Prefix)}
	}

	lines := make([]string, 0, len(r.Entries)+1)
	for _, entry := range r.Entries {
		if line, ok := EntryLine(entry, r.TreeFile); ok {
			lines = append(lines, line)
		}
	}
	if summary {
		lines = append(lines, SummaryLine(r.Summary))
	}
	return lines
}

// EntryLine formats one entry; ok is false for hidden entries.
func EntryLine(entry types.EntryResult, treeFile string) (line string, ok bool) {
	name := entry.Dir.Name
	switch entry.Status {
	case types.StatusHidden:
		return "", false
	case types.StatusOK:
		return fmt.Sprintf("%s: %s trees", name, entry.TreesString()), true
	case types.StatusNotFound:
		return fmt.Sprintf("%s: %s not found", name, treeFile), true
	case types.StatusInvalidFormat:
		return fmt.Sprintf("%s: invalid number format in %s", name, treeFile), true
	case types.StatusWriteError:
		return fmt.Sprintf("%s: error writing %s — %s", name, treeFile, errorMessage(entry.Err)), true
	default:
		return fmt.Sprintf("%s: error reading %s — %s", name, treeFile, errorMessage(entry.Err)), true
	}
}

// SummaryLine formats run totals.
func SummaryLine(s types.Summary) string {
	return fmt.Sprintf("%d chunk folders, %d trees total, %d capped, %d errors", s.Folders, s.Trees, s.Capped, s.Errors)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var entryErr *common.EntryError
	if errors.As(err, &entryErr) {
		return entryErr.Message()
	}
	return err.Error()
}
