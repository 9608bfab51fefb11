package options

import (
	"fmt"
	"strings"

	internal "github.com/ZanzyTHEbar/chunk-tools/treereport"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/common"
)

// ScanOptions configures a single scan of chunk directories
type ScanOptions struct {
	Root       string // Directory whose immediate children are scanned
	Prefix     string // Name prefix a child directory must carry
	TreeFile   string // Record file name inside each chunk directory
	IgnoreFile string // Gitignore-style file under Root, optional
	HideZero   bool   // Suppress entries whose count is exactly 0
	Cap        bool   // Clamp counts above MaxTrees and persist the clamp
	MaxTrees   int64  // Upper bound applied when Cap is set
}

// DefaultScanOptions returns the options of a bare invocation
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Root:       internal.DefaultScanRoot,
		Prefix:     internal.DefaultChunkPrefix,
		TreeFile:   internal.DefaultTreeFile,
		IgnoreFile: internal.DefaultIgnoreFile,
		MaxTrees:   internal.DefaultMaxTrees,
	}
}

// Validate reports the first unusable field.
func (o ScanOptions) Validate() error {
	switch {
	case o.Root == "":
		return fmt.Errorf("%w: scan root cannot be empty", common.ErrInvalidOptions)
	case o.Prefix == "":
		return fmt.Errorf("%w: chunk prefix cannot be empty", common.ErrInvalidOptions)
	case o.TreeFile == "":
		return fmt.Errorf("%w: tree file name cannot be empty", common.ErrInvalidOptions)
	case strings.ContainsAny(o.TreeFile, `/\`):
		return fmt.Errorf("%w: tree file name %q must not contain a path separator", common.ErrInvalidOptions, o.TreeFile)
	case o.MaxTrees < 0:
		return fmt.Errorf("%w: max trees must be non-negative, got %d", common.ErrInvalidOptions, o.MaxTrees)
	}
	return nil
}

// OutputFormat selects how a report is rendered
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat accepts a format name case-insensitively; "yml" is an alias.
func ParseFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q", common.ErrInvalidOptions, s)
	}
}

// ReportOptions configures rendering and exit status
type ReportOptions struct {
	Format  OutputFormat // Rendering of the report
	Summary bool         // Append a totals line to text output
	Strict  bool         // Exit non-zero when any entry failed
}

// DefaultReportOptions returns plain text output without summary
func DefaultReportOptions() ReportOptions {
	return ReportOptions{Format: FormatText}
}
