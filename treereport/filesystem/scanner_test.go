package filesystem

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/common"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/options"
	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/types"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testRoot = "/world"

// ScannerTestSuite runs the scanner against an in-memory map directory
type ScannerTestSuite struct {
	suite.Suite
	fs afero.Fs
}

func TestScannerSuite(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.fs = afero.NewMemMapFs()
	require.NoError(suite.T(), suite.fs.MkdirAll(testRoot, 0o755))
}

func (suite *ScannerTestSuite) mkdir(name string) {
	require.NoError(suite.T(), suite.fs.MkdirAll(filepath.Join(testRoot, name), 0o755))
}

func (suite *ScannerTestSuite) writeTrees(dir, content string) {
	suite.mkdir(dir)
	path := filepath.Join(testRoot, dir, "trees.txt")
	require.NoError(suite.T(), afero.WriteFile(suite.fs, path, []byte(content), 0o644))
}

func (suite *ScannerTestSuite) readTrees(dir string) string {
	data, err := afero.ReadFile(suite.fs, filepath.Join(testRoot, dir, "trees.txt"))
	require.NoError(suite.T(), err)
	return string(data)
}

func (suite *ScannerTestSuite) scan(fsys afero.Fs, mutate func(*options.ScanOptions)) *types.Report {
	opts := options.DefaultScanOptions()
	opts.Root = testRoot
	if mutate != nil {
		mutate(&opts)
	}

	scanner, err := NewScanner(fsys, opts, zerolog.Nop())
	require.NoError(suite.T(), err)

	report, err := scanner.Scan(context.Background(), nil)
	require.NoError(suite.T(), err)
	return report
}

func names(r *types.Report) []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Dir.Name)
	}
	return out
}

func (suite *ScannerTestSuite) TestEmptyRoot() {
	report := suite.scan(suite.fs, nil)

	assert.True(suite.T(), report.Empty())
	assert.Equal(suite.T(), types.Summary{}, report.Summary)
}

func (suite *ScannerTestSuite) TestSelectsOnlyPrefixedDirectories() {
	suite.writeTrees("chunk_b", "1\n")
	suite.writeTrees("chunk_a", "2\n")
	suite.writeTrees("other", "3\n")
	suite.writeTrees("Chunk_c", "4\n")
	require.NoError(suite.T(), afero.WriteFile(suite.fs, filepath.Join(testRoot, "chunk_file.txt"), []byte("5\n"), 0o644))

	report := suite.scan(suite.fs, nil)

	assert.Equal(suite.T(), []string{"chunk_a", "chunk_b"}, names(report), "entries are sorted by name")
	assert.Equal(suite.T(), int64(2), report.Entries[0].Trees)
	assert.Equal(suite.T(), int64(1), report.Entries[1].Trees)
}

func (suite *ScannerTestSuite) TestScenarioWithoutFlags() {
	suite.writeTrees("chunk_a", "700\n")
	suite.writeTrees("chunk_b", "0\n")
	suite.mkdir("chunk_c")

	report := suite.scan(suite.fs, nil)
	require.Len(suite.T(), report.Entries, 3)

	a, b, c := report.Entries[0], report.Entries[1], report.Entries[2]
	assert.Equal(suite.T(), types.StatusOK, a.Status)
	assert.Equal(suite.T(), int64(700), a.Trees)
	assert.False(suite.T(), a.Capped)
	assert.Equal(suite.T(), types.StatusOK, b.Status)
	assert.Equal(suite.T(), int64(0), b.Trees)
	assert.Equal(suite.T(), types.StatusNotFound, c.Status)

	var entryErr *common.EntryError
	require.ErrorAs(suite.T(), c.Err, &entryErr)
	assert.Equal(suite.T(), common.KindNotFound, entryErr.Kind)

	assert.Equal(suite.T(), "700\n", suite.readTrees("chunk_a"), "file is unchanged without cap")
	assert.Equal(suite.T(), types.Summary{Folders: 3, Trees: 700, Errors: 1}, report.Summary)
}

func (suite *ScannerTestSuite) TestScenarioHideZeroAndCap() {
	suite.writeTrees("chunk_a", "700\n1 2 3\n")
	suite.writeTrees("chunk_b", "0\n")
	suite.mkdir("chunk_c")

	report := suite.scan(suite.fs, func(o *options.ScanOptions) {
		o.HideZero = true
		o.Cap = true
	})
	require.Len(suite.T(), report.Entries, 3)

	a := report.Entries[0]
	assert.Equal(suite.T(), types.StatusOK, a.Status)
	assert.Equal(suite.T(), int64(512), a.Trees)
	assert.Equal(suite.T(), int64(700), a.Original)
	assert.True(suite.T(), a.Capped)
	assert.Equal(suite.T(), "512\n", suite.readTrees("chunk_a"))

	assert.Equal(suite.T(), types.StatusHidden, report.Entries[1].Status)
	assert.Equal(suite.T(), types.StatusNotFound, report.Entries[2].Status)
	assert.Equal(suite.T(), types.Summary{Folders: 3, Trees: 512, Capped: 1, Hidden: 1, Errors: 1}, report.Summary)
}

func (suite *ScannerTestSuite) TestCapBoundary() {
	suite.writeTrees("chunk_eq", "512\n")
	suite.writeTrees("chunk_over", "513\n")
	suite.writeTrees("chunk_under", "5\n")

	report := suite.scan(suite.fs, func(o *options.ScanOptions) { o.Cap = true })
	require.Len(suite.T(), report.Entries, 3)

	assert.False(suite.T(), report.Entries[0].Capped, "512 is not above the cap")
	assert.Equal(suite.T(), "512\n", suite.readTrees("chunk_eq"))
	assert.True(suite.T(), report.Entries[1].Capped)
	assert.Equal(suite.T(), int64(512), report.Entries[1].Trees)
	assert.Equal(suite.T(), "5\n", suite.readTrees("chunk_under"))
}

func (suite *ScannerTestSuite) TestCapIsIdempotent() {
	suite.writeTrees("chunk_a", "9000\n")

	capOn := func(o *options.ScanOptions) { o.Cap = true }
	first := suite.scan(suite.fs, capOn)
	second := suite.scan(suite.fs, capOn)

	assert.Equal(suite.T(), int64(512), first.Entries[0].Trees)
	assert.Equal(suite.T(), int64(512), second.Entries[0].Trees)
	assert.False(suite.T(), second.Entries[0].Capped, "already capped record is not rewritten")
	assert.Equal(suite.T(), "512\n", suite.readTrees("chunk_a"))
}

func (suite *ScannerTestSuite) TestOverCapWithoutCapFlagIsReported() {
	suite.writeTrees("chunk_a", "700\n")

	report := suite.scan(suite.fs, nil)

	assert.Equal(suite.T(), int64(700), report.Entries[0].Trees)
	assert.Equal(suite.T(), "700\n", suite.readTrees("chunk_a"))
}

func (suite *ScannerTestSuite) TestCustomMaxTrees() {
	suite.writeTrees("chunk_a", "300\n")

	report := suite.scan(suite.fs, func(o *options.ScanOptions) {
		o.Cap = true
		o.MaxTrees = 256
	})

	assert.Equal(suite.T(), int64(256), report.Entries[0].Trees)
	assert.Equal(suite.T(), "256\n", suite.readTrees("chunk_a"))
}

func (suite *ScannerTestSuite) TestHideZeroOnlyHidesExactZero() {
	suite.writeTrees("chunk_a", "0\n")
	suite.writeTrees("chunk_b", "1\n")
	suite.writeTrees("chunk_c", "-1\n")

	report := suite.scan(suite.fs, func(o *options.ScanOptions) { o.HideZero = true })

	assert.Equal(suite.T(), types.StatusHidden, report.Entries[0].Status)
	assert.Equal(suite.T(), types.StatusOK, report.Entries[1].Status)
	assert.Equal(suite.T(), types.StatusOK, report.Entries[2].Status)
	assert.Equal(suite.T(), int64(-1), report.Entries[2].Trees)
}

func (suite *ScannerTestSuite) TestFormatErrorsDoNotStopTheScan() {
	suite.writeTrees("chunk_a", "lots\n")
	suite.writeTrees("chunk_b", "")
	suite.writeTrees("chunk_c", "  42  \n")

	report := suite.scan(suite.fs, nil)

	assert.Equal(suite.T(), types.StatusInvalidFormat, report.Entries[0].Status)
	assert.Equal(suite.T(), types.StatusInvalidFormat, report.Entries[1].Status)
	assert.Equal(suite.T(), types.StatusOK, report.Entries[2].Status)
	assert.Equal(suite.T(), int64(42), report.Entries[2].Trees)
}

func (suite *ScannerTestSuite) TestOtherReadErrors() {
	suite.mkdir("chunk_a/trees.txt")
	suite.writeTrees("chunk_b", "\xff\xfe1\n")

	report := suite.scan(suite.fs, nil)

	for _, entry := range report.Entries {
		assert.Equal(suite.T(), types.StatusReadError, entry.Status, entry.Dir.Name)
	}
	assert.ErrorIs(suite.T(), report.Entries[0].Err, common.ErrIsDirectory)
	assert.ErrorIs(suite.T(), report.Entries[1].Err, common.ErrInvalidEncoding)
}

func (suite *ScannerTestSuite) TestWriteFailureIsIsolated() {
	suite.writeTrees("chunk_a", "700\n")
	suite.writeTrees("chunk_b", "3\n")

	report := suite.scan(afero.NewReadOnlyFs(suite.fs), func(o *options.ScanOptions) { o.Cap = true })
	require.Len(suite.T(), report.Entries, 2)

	a := report.Entries[0]
	assert.Equal(suite.T(), types.StatusWriteError, a.Status)
	assert.False(suite.T(), a.Capped)
	assert.Equal(suite.T(), int64(700), a.Original)

	var entryErr *common.EntryError
	require.ErrorAs(suite.T(), a.Err, &entryErr)
	assert.Equal(suite.T(), common.KindWrite, entryErr.Kind)

	assert.Equal(suite.T(), types.StatusOK, report.Entries[1].Status, "later entries still run")
	assert.Equal(suite.T(), "700\n", suite.readTrees("chunk_a"))
	assert.Equal(suite.T(), int64(1), report.Summary.Errors)
}

func (suite *ScannerTestSuite) TestCoordinatesAndPositions() {
	suite.writeTrees("chunk_03_12", "2\n1 2 3\n4 5 6\n")
	suite.writeTrees("chunk_misc", "0\n")

	report := suite.scan(suite.fs, nil)

	grid := report.Entries[0]
	assert.True(suite.T(), grid.Dir.HasCoords)
	assert.Equal(suite.T(), 3, grid.Dir.X)
	assert.Equal(suite.T(), 12, grid.Dir.Y)
	assert.Equal(suite.T(), 2, grid.Positions)
	assert.False(suite.T(), report.Entries[1].Dir.HasCoords)
}

func (suite *ScannerTestSuite) TestIgnoreFile() {
	suite.writeTrees("chunk_a", "1\n")
	suite.writeTrees("chunk_b", "2\n")
	suite.writeTrees("chunk_x1", "3\n")
	suite.writeTrees("chunk_x2", "4\n")
	suite.writeTrees("chunk_y", "5\n")
	ignoreRules := "# skip scratch chunks\nchunk_b\nchunk_x*\n!chunk_x2\nchunk_y/\n"
	require.NoError(suite.T(), afero.WriteFile(suite.fs, filepath.Join(testRoot, ".treereportignore"), []byte(ignoreRules), 0o644))

	report := suite.scan(suite.fs, nil)

	assert.Equal(suite.T(), []string{"chunk_a", "chunk_x2"}, names(report))
}

func (suite *ScannerTestSuite) TestIgnoreFileDisabled() {
	suite.writeTrees("chunk_a", "1\n")
	require.NoError(suite.T(), afero.WriteFile(suite.fs, filepath.Join(testRoot, ".treereportignore"), []byte("chunk_a\n"), 0o644))

	report := suite.scan(suite.fs, func(o *options.ScanOptions) { o.IgnoreFile = "" })

	assert.Equal(suite.T(), []string{"chunk_a"}, names(report))
}

// entryRecorder collects streamed entries and can run a hook after each one.
type entryRecorder struct {
	seen  []string
	after func(n int) error
}

func (r *entryRecorder) HandleEntry(entry types.EntryResult) error {
	r.seen = append(r.seen, entry.Dir.Name)
	if r.after != nil {
		return r.after(len(r.seen))
	}
	return nil
}

func (suite *ScannerTestSuite) newScanner() *Scanner {
	opts := options.DefaultScanOptions()
	opts.Root = testRoot
	opts.Cap = true
	scanner, err := NewScanner(suite.fs, opts, zerolog.Nop())
	require.NoError(suite.T(), err)
	return scanner
}

func (suite *ScannerTestSuite) TestCancelledContext() {
	suite.writeTrees("chunk_a", "1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := suite.newScanner().Scan(ctx, nil)
	assert.ErrorIs(suite.T(), err, context.Canceled)
	require.NotNil(suite.T(), report)
	assert.Empty(suite.T(), report.Entries)
}

func (suite *ScannerTestSuite) TestHandlerSeesEntriesInOrder() {
	suite.writeTrees("chunk_c", "3\n")
	suite.writeTrees("chunk_a", "1\n")
	suite.mkdir("chunk_b")

	recorder := &entryRecorder{}
	report, err := suite.newScanner().Scan(context.Background(), recorder)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), []string{"chunk_a", "chunk_b", "chunk_c"}, recorder.seen)
	assert.Equal(suite.T(), names(report), recorder.seen)
}

func (suite *ScannerTestSuite) TestCancelMidScanKeepsResolvedEntries() {
	suite.writeTrees("chunk_a", "700\n")
	suite.writeTrees("chunk_b", "900\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	recorder := &entryRecorder{after: func(int) error {
		cancel()
		return nil
	}}

	report, err := suite.newScanner().Scan(ctx, recorder)
	assert.ErrorIs(suite.T(), err, context.Canceled)
	require.NotNil(suite.T(), report)

	assert.Equal(suite.T(), []string{"chunk_a"}, recorder.seen)
	assert.Equal(suite.T(), []string{"chunk_a"}, names(report))
	assert.Equal(suite.T(), int64(1), report.Summary.Capped)
	assert.Equal(suite.T(), "512\n", suite.readTrees("chunk_a"))
	assert.Equal(suite.T(), "900\n", suite.readTrees("chunk_b"), "unvisited chunk is untouched")
}

func (suite *ScannerTestSuite) TestHandlerErrorStopsTheScan() {
	suite.writeTrees("chunk_a", "1\n")
	suite.writeTrees("chunk_b", "2\n")

	broken := errors.New("broken pipe")
	recorder := &entryRecorder{after: func(int) error { return broken }}

	report, err := suite.newScanner().Scan(context.Background(), recorder)
	assert.ErrorIs(suite.T(), err, broken)
	assert.Equal(suite.T(), []string{"chunk_a"}, names(report))
}

func (suite *ScannerTestSuite) TestOversizedCountIsCapped() {
	suite.writeTrees("chunk_big", "99999999999999999999\n")
	suite.writeTrees("chunk_us", "1_000\n")

	report := suite.scan(suite.fs, func(o *options.ScanOptions) { o.Cap = true })
	require.Len(suite.T(), report.Entries, 2)

	big := report.Entries[0]
	assert.Equal(suite.T(), types.StatusOK, big.Status)
	assert.True(suite.T(), big.Capped)
	assert.Equal(suite.T(), "512", big.TreesString())
	assert.Equal(suite.T(), "99999999999999999999", big.OriginalString())
	assert.Equal(suite.T(), "512\n", suite.readTrees("chunk_big"))

	us := report.Entries[1]
	assert.True(suite.T(), us.Capped)
	assert.Equal(suite.T(), int64(1000), us.Original)
	assert.Equal(suite.T(), "512\n", suite.readTrees("chunk_us"))

	assert.Equal(suite.T(), int64(1024), report.Summary.Trees)
}

func (suite *ScannerTestSuite) TestOversizedCountWithoutCapKeepsDigits() {
	suite.writeTrees("chunk_big", "99_999_999_999_999_999_999\n")
	suite.writeTrees("chunk_small", "7\n")

	report := suite.scan(suite.fs, nil)
	require.Len(suite.T(), report.Entries, 2)

	big := report.Entries[0]
	assert.Equal(suite.T(), types.StatusOK, big.Status)
	assert.False(suite.T(), big.Capped)
	assert.Equal(suite.T(), int64(math.MaxInt64), big.Trees)
	assert.Equal(suite.T(), "99999999999999999999", big.TreesString())
	assert.Equal(suite.T(), "99_999_999_999_999_999_999\n", suite.readTrees("chunk_big"))
	assert.Equal(suite.T(), int64(math.MaxInt64), report.Summary.Trees, "total saturates instead of wrapping")
}

func (suite *ScannerTestSuite) TestMissingRoot() {
	opts := options.DefaultScanOptions()
	opts.Root = "/nowhere"

	scanner, err := NewScanner(suite.fs, opts, zerolog.Nop())
	require.NoError(suite.T(), err)

	_, err = scanner.Scan(context.Background(), nil)
	assert.ErrorIs(suite.T(), err, common.ErrRootUnreadable)
}

func TestNewScannerRejectsInvalidOptions(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := NewScanner(nil, options.DefaultScanOptions(), zerolog.Nop())
	assert.ErrorIs(t, err, common.ErrInvalidOptions)

	for _, mutate := range []func(*options.ScanOptions){
		func(o *options.ScanOptions) { o.Root = "" },
		func(o *options.ScanOptions) { o.Prefix = "" },
		func(o *options.ScanOptions) { o.TreeFile = "" },
		func(o *options.ScanOptions) { o.TreeFile = "sub/trees.txt" },
		func(o *options.ScanOptions) { o.MaxTrees = -1 },
	} {
		opts := options.DefaultScanOptions()
		mutate(&opts)
		_, err := NewScanner(fsys, opts, zerolog.Nop())
		assert.ErrorIs(t, err, common.ErrInvalidOptions)
	}
}

func TestScannerOnDisk(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need extra privileges on windows")
	}

	root := t.TempDir()
	write := func(dir, content string) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, "trees.txt"), []byte(content), 0o644))
	}

	write("chunk_a", "700\n0.1 0.2 0.3\n")
	write("target", "7\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "plain.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "target"), filepath.Join(root, "chunk_link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "plain.txt"), filepath.Join(root, "chunk_filelink")))

	opts := options.DefaultScanOptions()
	opts.Root = root
	opts.Cap = true

	scanner, err := NewScanner(afero.NewOsFs(), opts, zerolog.Nop())
	require.NoError(t, err)

	report, err := scanner.Scan(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, []string{"chunk_a", "chunk_link"}, names(report), "symlinked directories count, symlinked files do not")
	assert.Equal(t, int64(512), report.Entries[0].Trees)
	assert.Equal(t, int64(7), report.Entries[1].Trees)

	data, err := os.ReadFile(filepath.Join(root, "chunk_a", "trees.txt"))
	require.NoError(t, err)
	assert.Equal(t, "512\n", string(data))

	info, err := os.Stat(filepath.Join(root, "chunk_a", "trees.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestScannerPermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}

	root := t.TempDir()
	record := filepath.Join(root, "chunk_a", "trees.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(record), 0o755))
	require.NoError(t, os.WriteFile(record, []byte("3\n"), 0o000))

	opts := options.DefaultScanOptions()
	opts.Root = root

	scanner, err := NewScanner(afero.NewOsFs(), opts, zerolog.Nop())
	require.NoError(t, err)

	report, err := scanner.Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)

	var entryErr *common.EntryError
	require.ErrorAs(t, report.Entries[0].Err, &entryErr)
	assert.Equal(t, types.StatusReadError, report.Entries[0].Status)
	assert.Equal(t, common.KindPermission, entryErr.Kind)
}
