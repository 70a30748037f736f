package opts

import (
	"fmt"
	"strings"
)

// PathSeparator splits dotted keys into path segments.
const PathSeparator = "."

// Path is a parsed dotted key such as ["loader", "combo_min_pred"].
type Path []string

// ParsePath splits key on PathSeparator. Every segment must be non-empty.
func ParsePath(key string) (Path, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	segments := strings.Split(key, PathSeparator)
	for i, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment at position %d", ErrInvalidPath, key, i)
		}
	}
	return Path(segments), nil
}

func (p Path) String() string {
	return strings.Join(p, PathSeparator)
}

// Parent returns every segment but the last.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Leaf returns the last segment.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return prefix + PathSeparator + segment
}
