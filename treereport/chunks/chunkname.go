package chunks

import (
	"strconv"
	"strings"
)

// IsChunkName reports whether name carries the chunk prefix. Matching is
// case-sensitive and checks the prefix only.
func IsChunkName(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, prefix)
}

// ParseChunkName extracts the grid coordinates from names shaped like
// "chunk_03_12". Names that carry the prefix but no coordinates return ok=false.
func ParseChunkName(name, prefix string) (x, y int, ok bool) {
	if !IsChunkName(name, prefix) {
		return 0, 0, false
	}

	parts := strings.Split(strings.TrimPrefix(name, prefix), "_")
	if len(parts) != 2 {
		return 0, 0, false
	}

	x, ok = parseGridIndex(parts[0])
	if !ok {
		return 0, 0, false
	}
	y, ok = parseGridIndex(parts[1])
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

func parseGridIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
