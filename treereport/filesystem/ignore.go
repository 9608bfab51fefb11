package filesystem

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreChecker interface for chunk ignore patterns
type IgnoreChecker interface {
	MatchesPath(path string) bool
}

// LoadIgnore compiles the gitignore-style file name under root.
// A missing file yields a nil checker and no error.
func LoadIgnore(fsys afero.Fs, root, name string) (IgnoreChecker, error) {
	if name == "" {
		return nil, nil
	}

	data, err := afero.ReadFile(fsys, filepath.Join(root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	return ignore.CompileIgnoreLines(lines...), nil
}

// ignored matches both the bare name and the directory form so that
// patterns with a trailing slash apply.
func ignored(checker IgnoreChecker, name string) bool {
	if checker == nil {
		return false
	}
	return checker.MatchesPath(name) || checker.MatchesPath(name+"/")
}
