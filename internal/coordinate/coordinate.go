package coordinate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/kiln/internal/scope"
)

// DefaultType is the artifact type assumed when a coordinate names none.
const DefaultType = "jar"

// NoRing marks a coordinate whose distance from the root has not been
// assigned by the resolver.
const NoRing = -1

// Coordinate is a reference to one artifact. Ordinary coordinates are
// addressed by group, artifact and version. System coordinates point at a
// file on disk instead and are identified by that path.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Type       string
	// Revision is an optional build qualifier (e.g. a snapshot timestamp)
	// available to path patterns as [revision].
	Revision string

	Scope               scope.Scope
	Optional            bool
	ResolveTransitively bool
	Exclusions          []string
	Ring                int

	// SystemPath is set only for system coordinates.
	SystemPath string

	// extOverride records that Type came from an @ext suffix.
	extOverride bool
}

// ParseError reports a malformed coordinate string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid coordinate %q: %s", e.Input, e.Reason)
}

// New returns an ordinary coordinate of the default type that resolves
// transitively.
func New(groupID, artifactID, version string) Coordinate {
	return Coordinate{
		GroupID:             groupID,
		ArtifactID:          artifactID,
		Version:             version,
		Type:                DefaultType,
		ResolveTransitively: true,
		Ring:                NoRing,
	}
}

// NewSystem returns a coordinate for a raw filesystem dependency.
func NewSystem(path string) Coordinate {
	return Coordinate{
		Type:       strings.TrimPrefix(filepath.Ext(path), "."),
		Scope:      scope.System,
		SystemPath: path,
		Ring:       NoRing,
	}
}

// MustParse is like Parse but panics on error. It is meant for fixtures.
func MustParse(s string) Coordinate {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a coordinate string. Values may be single- or double-quoted,
// either as a whole or token by token. A core token that looks like a path
// (absolute, ./ or ../ relative, or file: prefixed) yields a system coordinate.
func Parse(input string) (Coordinate, error) {
	s := unquoteWhole(strings.TrimSpace(input))
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Coordinate{}, &ParseError{Input: input, Reason: "empty coordinate"}
	}

	core := unquote(fields[0])
	var ext string
	if i := strings.LastIndex(core, "@"); i >= 0 && !isPath(core) {
		core, ext = core[:i], core[i+1:]
		if ext == "" {
			return Coordinate{}, &ParseError{Input: input, Reason: "empty @ extension"}
		}
	}

	var (
		optional   bool
		exclusions []string
	)
	for _, raw := range fields[1:] {
		tok := unquote(raw)
		switch {
		case tok == "optional":
			optional = true
		case strings.HasPrefix(tok, "@"):
			if ext != "" {
				return Coordinate{}, &ParseError{Input: input, Reason: "more than one @ extension"}
			}
			ext = tok[1:]
			if ext == "" {
				return Coordinate{}, &ParseError{Input: input, Reason: "empty @ extension"}
			}
		case strings.HasPrefix(tok, "-"):
			excl := tok[1:]
			if excl == "" {
				return Coordinate{}, &ParseError{Input: input, Reason: "empty exclusion"}
			}
			exclusions = appendUnique(exclusions, excl)
		default:
			return Coordinate{}, &ParseError{Input: input, Reason: fmt.Sprintf("unexpected token %q", tok)}
		}
	}

	if isPath(core) {
		c := NewSystem(strings.TrimPrefix(core, "file:"))
		c.Optional = optional
		return c, nil
	}

	c, err := parseCore(core)
	if err != nil {
		return Coordinate{}, &ParseError{Input: input, Reason: err.Error()}
	}
	c.Optional = optional
	c.Exclusions = exclusions
	if ext != "" {
		c.Type = ext
		c.ResolveTransitively = false
		c.extOverride = true
	}
	if err := c.Validate(); err != nil {
		return Coordinate{}, &ParseError{Input: input, Reason: err.Error()}
	}
	return c, nil
}

// parseCore splits the group/artifact/version part of a coordinate.
func parseCore(core string) (Coordinate, error) {
	var group string
	rest := core
	slash := strings.Index(core, "/")
	colon := strings.Index(core, ":")
	if slash >= 0 && (colon < 0 || slash < colon) {
		group, rest = core[:slash], core[slash+1:]
		if group == "" {
			return Coordinate{}, fmt.Errorf("empty groupId")
		}
	}

	parts := strings.Split(rest, ":")
	if group == "" {
		switch {
		case len(parts) == 2:
			// artifact:version is shorthand for artifact:artifact:version.
			group = parts[0]
		case len(parts) >= 3 && len(parts) <= 5:
			group, parts = parts[0], parts[1:]
		default:
			return Coordinate{}, fmt.Errorf("expected [groupId:]artifactId:version[:classifier[:type]]")
		}
	} else if len(parts) < 2 || len(parts) > 4 {
		return Coordinate{}, fmt.Errorf("expected groupId/artifactId:version[:classifier[:type]]")
	}

	c := New(group, parts[0], parts[1])
	if len(parts) > 2 {
		c.Classifier = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		c.Type = parts[3]
	}

	switch {
	case c.GroupID == "":
		return Coordinate{}, fmt.Errorf("empty groupId")
	case c.ArtifactID == "":
		return Coordinate{}, fmt.Errorf("empty artifactId")
	case c.Version == "":
		return Coordinate{}, fmt.Errorf("empty version")
	}
	return c, nil
}

// Validate reports whether every field of c can serve as a repository path
// segment. Path separators, NUL bytes and ".." are rejected everywhere, as are
// empty segments of a dotted groupId. Empty fields are not checked here.
func (c Coordinate) Validate() error {
	if c.IsSystem() {
		return nil
	}
	fields := []struct{ name, value string }{
		{"groupId", c.GroupID},
		{"artifactId", c.ArtifactID},
		{"version", c.Version},
		{"classifier", c.Classifier},
		{"type", c.Type},
		{"revision", c.Revision},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if f.value == "." {
			return fmt.Errorf("%s must not be %q", f.name, f.value)
		}
		if i := strings.IndexAny(f.value, "/\\\x00"); i >= 0 {
			return fmt.Errorf("%s %q contains %q", f.name, f.value, f.value[i])
		}
		if strings.Contains(f.value, "..") {
			return fmt.Errorf("%s %q contains \"..\"", f.name, f.value)
		}
	}
	if c.GroupID != "" {
		for _, part := range strings.Split(c.GroupID, ".") {
			if part == "" {
				return fmt.Errorf("groupId %q has an empty segment", c.GroupID)
			}
		}
	}
	return nil
}

// IsSystem reports whether c is a filesystem path dependency.
func (c Coordinate) IsSystem() bool {
	return c.SystemPath != ""
}

// Key identifies the artifact independent of version: groupId:artifactId, or
// the path for system coordinates. Mediation and exclusions work on keys.
func (c Coordinate) Key() string {
	if c.IsSystem() {
		return c.SystemPath
	}
	return c.GroupID + ":" + c.ArtifactID
}

// GAV returns groupId:artifactId:version.
func (c Coordinate) GAV() string {
	if c.IsSystem() {
		return c.SystemPath
	}
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// Ext returns the file extension of the artifact itself.
func (c Coordinate) Ext() string {
	if c.Type == "" {
		return DefaultType
	}
	return c.Type
}

// String formats c in the grammar accepted by Parse.
func (c Coordinate) String() string {
	var b strings.Builder
	if c.IsSystem() {
		b.WriteString(c.SystemPath)
	} else {
		b.WriteString(c.GAV())
		nonDefaultType := c.Ext() != DefaultType && !c.extOverride
		if c.Classifier != "" || nonDefaultType {
			b.WriteString(":" + c.Classifier)
		}
		if nonDefaultType {
			b.WriteString(":" + c.Type)
		}
		if c.extOverride {
			b.WriteString("@" + c.Type)
		}
	}
	if c.Optional {
		b.WriteString(" optional")
	}
	for _, e := range c.Exclusions {
		b.WriteString(" -" + e)
	}
	return b.String()
}

// WithExtOverride marks c's type as coming from an @ext suffix, so the
// artifact is treated as a leaf.
func (c Coordinate) WithExtOverride(ext string) Coordinate {
	c.Type = ext
	c.ResolveTransitively = false
	c.extOverride = true
	return c
}

// Excludes reports whether any of c's exclusions matches other.
func (c Coordinate) Excludes(other Coordinate) bool {
	for _, e := range c.Exclusions {
		if MatchExclusion(e, other) {
			return true
		}
	}
	return false
}

// MatchExclusion reports whether the exclusion pattern matches c. Patterns
// are groupId:artifactId, where either part may be "*", or a bare groupId.
func MatchExclusion(pattern string, c Coordinate) bool {
	if c.IsSystem() {
		return false
	}
	group, artifact, found := strings.Cut(pattern, ":")
	if !found {
		artifact = "*"
	}
	return (group == "*" || group == c.GroupID) && (artifact == "*" || artifact == c.ArtifactID)
}

func isPath(s string) bool {
	return strings.HasPrefix(s, "/") ||
		strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "file:")
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// unquoteWhole strips quotes around the whole input, leaving per-token
// quoting alone.
func unquoteWhole(s string) string {
	inner := unquote(s)
	if len(inner) != len(s) && !strings.ContainsRune(inner, rune(s[0])) {
		return inner
	}
	return s
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
