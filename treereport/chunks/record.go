package chunks

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/chunk-tools/treereport/filesystem/common"

	"github.com/spf13/afero"
)

const defaultRecordPerm os.FileMode = 0o644

// TreeCountRecord is the parsed content of a chunk's tree file: a count on
// the first line, optionally followed by one "x y z" position per line.
//
// Count saturates at the int64 bounds; Text always holds the exact count in
// canonical decimal form.
type TreeCountRecord struct {
	Count     int64
	Text      string
	Positions int
}

// ParseCount parses a count line. Surrounding whitespace is ignored, one
// leading sign is allowed and single underscores may separate digits.
// Counts beyond the int64 range are not an error: n saturates and text
// keeps the exact digits.
func ParseCount(line string) (n int64, text string, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0, "", fmt.Errorf("%w: empty count line", common.ErrInvalidNumber)
	}

	digits, negative := trimmed, false
	switch digits[0] {
	case '+':
		digits = digits[1:]
	case '-':
		digits, negative = digits[1:], true
	}

	text, ok := canonicalDigits(digits)
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", common.ErrInvalidNumber, trimmed)
	}
	if negative && text != "0" {
		text = "-" + text
	}

	n, err = strconv.ParseInt(text, 10, 64)
	switch {
	case err == nil:
	case errors.Is(err, strconv.ErrRange):
		n = math.MaxInt64
		if negative {
			n = math.MinInt64
		}
	default:
		return 0, "", fmt.Errorf("%w: %q", common.ErrInvalidNumber, trimmed)
	}
	return n, text, nil
}

// canonicalDigits drops digit separators and leading zeros. An underscore
// must sit between two digits.
func canonicalDigits(s string) (string, bool) {
	if s == "" || s[0] == '_' || s[len(s)-1] == '_' {
		return "", false
	}

	var b strings.Builder
	prevUnderscore := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '_':
			if prevUnderscore {
				return "", false
			}
			prevUnderscore = true
		case c >= '0' && c <= '9':
			prevUnderscore = false
			if c == '0' && b.Len() == 0 {
				continue
			}
			b.WriteByte(c)
		default:
			return "", false
		}
	}

	if b.Len() == 0 {
		return "0", true
	}
	return b.String(), true
}

// FormatCount renders n the way a capped record is persisted.
func FormatCount(n int64) []byte {
	return append(strconv.AppendInt(nil, n, 10), '\n')
}

// ParseRecord parses raw record content. Only the first line is
// authoritative; later non-blank lines are counted as positions.
func ParseRecord(data []byte) (TreeCountRecord, error) {
	first, rest := splitFirstLine(data)
	if !utf8.Valid(first) {
		return TreeCountRecord{}, common.ErrInvalidEncoding
	}

	count, text, err := ParseCount(string(first))
	if err != nil {
		return TreeCountRecord{}, err
	}

	return TreeCountRecord{Count: count, Text: text, Positions: countPositions(rest)}, nil
}

// splitFirstLine splits at the first "\n", "\r\n" or lone "\r".
func splitFirstLine(data []byte) (line, rest []byte) {
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		return data, nil
	}
	if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
		return data[:i], data[i+2:]
	}
	return data[:i], data[i+1:]
}

func countPositions(rest []byte) int {
	n := 0
	for _, line := range bytes.FieldsFunc(rest, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

// ReadRecord opens, reads and parses the record at path.
func ReadRecord(fsys afero.Fs, path string) (TreeCountRecord, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return TreeCountRecord{}, err
	}
	if info.IsDir() {
		return TreeCountRecord{}, fmt.Errorf("%s: %w", path, common.ErrIsDirectory)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return TreeCountRecord{}, err
	}

	rec, err := ParseRecord(data)
	if err != nil {
		return TreeCountRecord{}, common.WrapError(err, "%s", path)
	}
	return rec, nil
}

// WriteCount replaces the whole record at path with n and a newline,
// keeping the existing file mode when there is one.
func WriteCount(fsys afero.Fs, path string, n int64) error {
	perm := defaultRecordPerm
	if info, err := fsys.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return afero.WriteFile(fsys, path, FormatCount(n), perm)
}
