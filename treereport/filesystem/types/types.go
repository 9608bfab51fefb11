package types

import "strconv"

// Status is the resolved state of one chunk directory
type Status string

const (
	StatusOK            Status = "ok"
	StatusHidden        Status = "hidden"
	StatusNotFound      Status = "not_found"
	StatusInvalidFormat Status = "invalid_format"
	StatusReadError     Status = "read_error"
	StatusWriteError    Status = "write_error"
)

// Failed reports whether the status is one of the error outcomes.
func (s Status) Failed() bool {
	switch s {
	case StatusNotFound, StatusInvalidFormat, StatusReadError, StatusWriteError:
		return true
	}
	return false
}

// ChunkDirectory is a child of the scan root whose name carries the chunk prefix
type ChunkDirectory struct {
	Name      string // Entry name as listed, used in every output line
	Path      string // Name joined onto the scan root
	X         int    // Chunk column when the name encodes coordinates
	Y         int    // Chunk row when the name encodes coordinates
	HasCoords bool
}

// EntryResult is the outcome of processing one chunk directory
type EntryResult struct {
	Dir       ChunkDirectory
	Status    Status
	Trees     int64  // Value reported, after any cap; saturates at the int64 bounds
	Original  int64  // Value read from the record; saturates like Trees
	TreesText string // Exact decimal of the reported value
	OrigText  string // Exact decimal of the value read from the record
	Capped    bool   // Record was rewritten with the cap value
	Positions int    // Position lines following the count line
	Err       error  // *common.EntryError when Status.Failed()
}

// TreesString returns the exact reported count.
func (e EntryResult) TreesString() string {
	if e.TreesText != "" {
		return e.TreesText
	}
	return strconv.FormatInt(e.Trees, 10)
}

// OriginalString returns the exact count read from the record.
func (e EntryResult) OriginalString() string {
	if e.OrigText != "" {
		return e.OrigText
	}
	return strconv.FormatInt(e.Original, 10)
}

// Summary holds per-run totals
type Summary struct {
	Folders int64 `json:"folders" yaml:"folders"`
	Trees   int64 `json:"trees" yaml:"trees"`
	Capped  int64 `json:"capped" yaml:"capped"`
	Hidden  int64 `json:"hidden" yaml:"hidden"`
	Errors  int64 `json:"errors" yaml:"errors"`
}

// Report is the ordered result of one scan
type Report struct {
	RunID    string
	Root     string
	Prefix   string
	TreeFile string
	Entries  []EntryResult
	Summary  Summary
}

// Empty reports whether no chunk directory matched.
func (r *Report) Empty() bool {
	return len(r.Entries) == 0
}
