package cache

import (
	"fmt"

	"github.com/vk/kiln/internal/coordinate"
)

// Layout turns coordinates into root-relative, slash-separated paths.
type Layout struct {
	Name        string
	pattern     coordinate.Pattern
	groupAsPath bool
}

var (
	// Maven2 is the standard repository layout used by ~/.m2 and remote
	// repositories.
	Maven2 = Layout{Name: "maven2", pattern: coordinate.MustCompilePattern(coordinate.Maven2Pattern), groupAsPath: true}
	// Flat keeps the groupId as a single directory.
	Flat = Layout{Name: "flat", pattern: coordinate.MustCompilePattern(coordinate.FlatPattern)}
)

// NewLayout builds a layout from a custom pattern.
func NewLayout(name, pattern string, groupAsPath bool) (Layout, error) {
	p, err := coordinate.CompilePattern(pattern)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Name: name, pattern: p, groupAsPath: groupAsPath}, nil
}

// LayoutByName returns one of the well-known layouts.
func LayoutByName(name string) (Layout, error) {
	switch name {
	case Maven2.Name:
		return Maven2, nil
	case Flat.Name:
		return Flat, nil
	}
	return Layout{}, fmt.Errorf("unknown cache layout %q (expected %q or %q)", name, Maven2.Name, Flat.Name)
}

// Path returns the relative path of c's file with extension ext. An empty
// ext means the coordinate's own type.
func (l Layout) Path(c coordinate.Coordinate, ext string) string {
	return l.pattern.Expand(c, ext, l.groupAsPath)
}
