package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/chunk-tools/treereport/chunks"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/common"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/options"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/types"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// EntryHandler receives each entry as soon as it is resolved, in scan order.
// Returning an error stops the scan.
type EntryHandler interface {
	HandleEntry(entry types.EntryResult) error
}

// Scanner walks the immediate children of a root directory, resolves the
// tree count of every chunk directory and applies the cap and zero policies.
// Entries are processed one at a time in name order.
type Scanner struct {
	fs      afero.Fs
	opts    options.ScanOptions
	logger  zerolog.Logger
	metrics *common.ScanMetrics
}

// NewScanner creates a scanner over fsys. The options are validated here so
// Scan never sees an unusable configuration.
func NewScanner(fsys afero.Fs, opts options.ScanOptions, logger zerolog.Logger) (*Scanner, error) {
	if fsys == nil {
		return nil, fmt.Errorf("%w: filesystem cannot be nil", common.ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Scanner{
		fs:      fsys,
		opts:    opts,
		logger:  logger.With().Str("component", "scanner").Logger(),
		metrics: &common.ScanMetrics{},
	}, nil
}

// Metrics returns the counters of the most recent Scan.
func (s *Scanner) Metrics() *common.ScanMetrics {
	return s.metrics
}

// Scan lists the root, selects chunk directories and processes each one,
// passing every result to handler (which may be nil) before moving on.
// Per-entry failures are recorded in the report; only a failure to list the
// root, a handler error or a cancelled context aborts the scan. An aborted
// scan still returns the entries resolved so far.
func (s *Scanner) Scan(ctx context.Context, handler EntryHandler) (*types.Report, error) {
	start := time.Now()
	s.metrics = &common.ScanMetrics{}

	dirs, err := s.ListChunkDirectories()
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("root", s.opts.Root).
		Int("chunks", len(dirs)).
		Msg("Listed chunk directories")

	report := &types.Report{
		Root:     s.opts.Root,
		Prefix:   s.opts.Prefix,
		TreeFile: s.opts.TreeFile,
		Entries:  make([]types.EntryResult, 0, len(dirs)),
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			s.finish(report, start)
			return report, err
		}

		entry := s.processEntry(dir)
		report.Entries = append(report.Entries, entry)

		if handler == nil {
			continue
		}
		if err := handler.HandleEntry(entry); err != nil {
			s.finish(report, start)
			return report, fmt.Errorf("failed to handle %s: %w", dir.Name, err)
		}
	}

	s.finish(report, start)
	return report, nil
}

func (s *Scanner) finish(report *types.Report, start time.Time) {
	totals := s.metrics.Totals()
	report.Summary = types.Summary{
		Folders: totals.Folders,
		Trees:   totals.Trees,
		Capped:  totals.Capped,
		Hidden:  totals.Hidden,
		Errors:  totals.Errors,
	}

	s.logger.Info().
		Fields(s.metrics.GetMetrics()).
		Dur("elapsed", time.Since(start)).
		Msg("Scan completed")
}

// ListChunkDirectories returns the root's children that carry the chunk
// prefix and resolve to directories, sorted by name. Symlinks are followed.
func (s *Scanner) ListChunkDirectories() ([]types.ChunkDirectory, error) {
	entries, err := afero.ReadDir(s.fs, s.opts.Root)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", common.ErrRootUnreadable, s.opts.Root, err)
	}

	checker, err := LoadIgnore(s.fs, s.opts.Root, s.opts.IgnoreFile)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", s.opts.IgnoreFile).Msg("Ignore file unreadable, scanning without it")
		checker = nil
	}

	dirs := make([]types.ChunkDirectory, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !chunks.IsChunkName(name, s.opts.Prefix) {
			continue
		}

		path := filepath.Join(s.opts.Root, name)
		if !s.isDirectory(entry, path) {
			continue
		}
		if ignored(checker, name) {
			s.logger.Debug().Str("dir", name).Msg("Skipping ignored chunk directory")
			continue
		}

		dir := types.ChunkDirectory{Name: name, Path: path}
		dir.X, dir.Y, dir.HasCoords = chunks.ParseChunkName(name, s.opts.Prefix)
		dirs = append(dirs, dir)
	}

	slices.SortFunc(dirs, func(a, b types.ChunkDirectory) int {
		return strings.Compare(a.Name, b.Name)
	})
	return dirs, nil
}

func (s *Scanner) isDirectory(entry os.FileInfo, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Mode()&os.ModeSymlink == 0 {
		return false
	}
	info, err := s.fs.Stat(path)
	return err == nil && info.IsDir()
}

// processEntry resolves one chunk directory. It never returns an error:
// failures are carried in the result.
func (s *Scanner) processEntry(dir types.ChunkDirectory) types.EntryResult {
	start := time.Now()
	result := types.EntryResult{Dir: dir}
	recordPath := filepath.Join(dir.Path, s.opts.TreeFile)
	log := s.logger.With().Str("dir", dir.Name).Logger()

	rec, err := chunks.ReadRecord(s.fs, recordPath)
	if err != nil {
		kind := common.ClassifyReadError(err)
		result.Status = statusForKind(kind)
		result.Err = &common.EntryError{Dir: dir.Name, Kind: kind, Err: err}
		log.Info().Err(err).Str("kind", kind.String()).Msg("Failed to read tree count")
		s.metrics.RecordEntry(start, common.EntryOutcome{Failed: true})
		return result
	}

	result.Original, result.OrigText = rec.Count, rec.Text
	result.Trees, result.TreesText = rec.Count, rec.Text
	result.Positions = rec.Positions

	if s.opts.Cap && rec.Count > s.opts.MaxTrees {
		if err := chunks.WriteCount(s.fs, recordPath, s.opts.MaxTrees); err != nil {
			result.Status = types.StatusWriteError
			result.Err = &common.EntryError{Dir: dir.Name, Kind: common.KindWrite, Err: err}
			log.Info().Err(err).Str("trees", rec.Text).Msg("Failed to persist capped tree count")
			s.metrics.RecordEntry(start, common.EntryOutcome{Failed: true})
			return result
		}
		result.Trees = s.opts.MaxTrees
		result.TreesText = strconv.FormatInt(s.opts.MaxTrees, 10)
		result.Capped = true
		result.Positions = 0
		log.Info().Str("from", rec.Text).Int64("to", s.opts.MaxTrees).Msg("Capped tree count")
	}

	result.Status = types.StatusOK
	if s.opts.HideZero && result.Trees == 0 {
		result.Status = types.StatusHidden
	}

	log.Debug().Str("trees", result.TreesString()).Str("status", string(result.Status)).Msg("Resolved chunk")
	s.metrics.RecordEntry(start, common.EntryOutcome{
		Trees:  result.Trees,
		Capped: result.Capped,
		Hidden: result.Status == types.StatusHidden,
	})
	return result
}

func statusForKind(kind common.ErrorKind) types.Status {
	switch kind {
	case common.KindNotFound:
		return types.StatusNotFound
	case common.KindFormat:
		return types.StatusInvalidFormat
	case common.KindWrite:
		return types.StatusWriteError
	default:
		return types.StatusReadError
	}
}
