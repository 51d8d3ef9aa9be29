package coordinate

import (
	"fmt"
	"strings"
)

// Well-known patterns.
const (
	// Maven2Pattern is the standard remote and ~/.m2 repository layout. Used
	// with MavenPath, the groupId's dots become directories.
	Maven2Pattern = "[groupId]/[artifactId]/[version]/[artifactId]-[version](-[classifier]).[ext]"
	// FilenamePattern names an artifact file without any directory.
	FilenamePattern = "[artifactId]-[version](-[classifier])(-[revision]).[ext]"
	// FlatPattern is the local cache layout: one directory per groupId as is.
	FlatPattern = "[groupId]/[artifactId]/[version]/" + FilenamePattern
)

var placeholders = map[string]bool{
	"groupId":         true,
	"groupId-as-path": true,
	"artifactId":      true,
	"version":         true,
	"classifier":      true,
	"revision":        true,
	"ext":             true,
}

// PatternError reports a malformed path pattern.
type PatternError struct {
	Pattern string
	Offset  int
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid path pattern %q at offset %d: %s", e.Pattern, e.Offset, e.Reason)
}

// segment is either literal text, a placeholder, or an optional group of
// literal and placeholder segments.
type segment struct {
	literal     string
	placeholder string
	group       []segment
}

// Pattern is a compiled path pattern.
type Pattern struct {
	raw      string
	segments []segment
}

// CompilePattern parses a path pattern. Optional groups may not nest.
func CompilePattern(raw string) (Pattern, error) {
	var (
		top     []segment
		group   []segment
		inGroup bool
		lit     strings.Builder
	)
	emit := func(s segment) {
		if inGroup {
			group = append(group, s)
		} else {
			top = append(top, s)
		}
	}
	flush := func() {
		if lit.Len() > 0 {
			emit(segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		switch ch := raw[i]; ch {
		case '[':
			end := strings.IndexByte(raw[i:], ']')
			if end < 0 {
				return Pattern{}, &PatternError{Pattern: raw, Offset: i, Reason: "unterminated placeholder"}
			}
			name := raw[i+1 : i+end]
			if !placeholders[name] {
				return Pattern{}, &PatternError{Pattern: raw, Offset: i, Reason: fmt.Sprintf("unknown placeholder [%s]", name)}
			}
			flush()
			emit(segment{placeholder: name})
			i += end
		case ']':
			return Pattern{}, &PatternError{Pattern: raw, Offset: i, Reason: "unexpected ]"}
		case '(':
			if inGroup {
				return Pattern{}, &PatternError{Pattern: raw, Offset: i, Reason: "nested optional group"}
			}
			flush()
			inGroup = true
		case ')':
			if !inGroup {
				return Pattern{}, &PatternError{Pattern: raw, Offset: i, Reason: "unexpected )"}
			}
			flush()
			top = append(top, segment{group: group})
			group = nil
			inGroup = false
		default:
			lit.WriteByte(ch)
		}
	}
	if inGroup {
		return Pattern{}, &PatternError{Pattern: raw, Offset: len(raw), Reason: "unterminated optional group"}
	}
	flush()
	return Pattern{raw: raw, segments: top}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(raw string) Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string {
	return p.raw
}

// Expand substitutes c into the pattern. A non-empty ext overrides c's type
// for [ext]. When groupAsPath is set, [groupId] has its dots replaced by
// slashes; [groupId-as-path] always does.
func (p Pattern) Expand(c Coordinate, ext string, groupAsPath bool) string {
	if ext == "" {
		ext = c.Ext()
	}
	asPath := strings.ReplaceAll(c.GroupID, ".", "/")
	values := map[string]string{
		"groupId":         c.GroupID,
		"groupId-as-path": asPath,
		"artifactId":      c.ArtifactID,
		"version":         c.Version,
		"classifier":      c.Classifier,
		"revision":        c.Revision,
		"ext":             ext,
	}
	if groupAsPath {
		values["groupId"] = asPath
	}

	var b strings.Builder
	for _, s := range p.segments {
		if s.group == nil {
			b.WriteString(s.literal)
			b.WriteString(values[s.placeholder])
			continue
		}
		complete := true
		for _, gs := range s.group {
			if gs.placeholder != "" && values[gs.placeholder] == "" {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for _, gs := range s.group {
			b.WriteString(gs.literal)
			b.WriteString(values[gs.placeholder])
		}
	}
	return b.String()
}

// Filename expands pattern for c, leaving the groupId as is.
func Filename(c Coordinate, ext, pattern string) (string, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return "", err
	}
	return p.Expand(c, ext, false), nil
}

// MavenPath expands pattern for c with the groupId's dots turned into
// directories.
func MavenPath(c Coordinate, ext, pattern string) (string, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return "", err
	}
	return p.Expand(c, ext, true), nil
}

// FromMavenPath recovers the coordinate and extension addressed by a
// Maven2-layout relative path such as
// "org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9-sources.jar".
func FromMavenPath(p string) (Coordinate, string, error) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 4 {
		return Coordinate{}, "", fmt.Errorf("path %q is too short for a repository layout", p)
	}
	n := len(parts)
	artifact, version, file := parts[n-3], parts[n-2], parts[n-1]
	group := strings.Join(parts[:n-3], ".")

	prefix := artifact + "-" + version
	if !strings.HasPrefix(file, prefix) {
		return Coordinate{}, "", fmt.Errorf("file %q does not match %s:%s", file, artifact, version)
	}
	rest := file[len(prefix):]

	base, ext := splitExt(rest)
	if ext == "" {
		return Coordinate{}, "", fmt.Errorf("file %q has no extension", file)
	}
	var classifier string
	switch {
	case base == "":
	case strings.HasPrefix(base, "-") && len(base) > 1:
		classifier = base[1:]
	default:
		return Coordinate{}, "", fmt.Errorf("file %q does not match %s:%s", file, artifact, version)
	}

	c := New(group, artifact, version)
	c.Classifier = classifier
	c.Type = ext
	return c, ext, nil
}

// compoundSuffixes are final extensions that qualify the one before them.
var compoundSuffixes = map[string]bool{
	"asc": true, "md5": true, "sha1": true, "sha256": true, "sha512": true,
	"gz": true, "bz2": true, "xz": true,
}

// splitExt cuts the extension off a file name remainder. The extension starts
// at the last dot, or at the one before it when the last is a suffix such as
// sha1 or gz. Dots inside a classifier stay with it.
func splitExt(rest string) (string, string) {
	last := strings.LastIndexByte(rest, '.')
	if last < 0 || last == len(rest)-1 {
		return rest, ""
	}
	if compoundSuffixes[rest[last+1:]] {
		if prev := strings.LastIndexByte(rest[:last], '.'); prev >= 0 && prev < last-1 {
			last = prev
		}
	}
	return rest[:last], rest[last+1:]
}
