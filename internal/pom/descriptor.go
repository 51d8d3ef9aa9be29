// Package pom models a dependency's own metadata (its descriptor): its
// coordinates, parent reference, properties, managed versions, licenses and
// declared dependencies. It merges descriptors down a parent chain and
// substitutes ${name} property references.
package pom

import (
	"errors"
	"strings"

	"github.com/vk/kiln/internal/coordinate"
)

// maxSubstitutionPasses bounds Substitute when properties refer to each
// other in a cycle.
const maxSubstitutionPasses = 16

// ErrParentCycle is returned when a descriptor's parent chain loops.
var ErrParentCycle = errors.New("parent chain contains a cycle")

// License is one entry of a descriptor's license list.
type License struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url,omitempty"`
}

// Descriptor is a dependency's own metadata.
type Descriptor struct {
	Coordinate      coordinate.Coordinate
	Packaging       string
	Parent          *coordinate.Coordinate
	Properties      Properties
	ManagedVersions map[string]string
	Licenses        []License
	Dependencies    []coordinate.Coordinate
}

// Clone returns a deep copy of d.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{
		Coordinate: cloneCoordinate(d.Coordinate),
		Packaging:  d.Packaging,
		Properties: d.Properties.Clone(),
		Licenses:   append([]License(nil), d.Licenses...),
	}
	if d.Parent != nil {
		p := cloneCoordinate(*d.Parent)
		c.Parent = &p
	}
	if d.ManagedVersions != nil {
		c.ManagedVersions = make(map[string]string, len(d.ManagedVersions))
		for k, v := range d.ManagedVersions {
			c.ManagedVersions[k] = v
		}
	}
	for _, dep := range d.Dependencies {
		c.Dependencies = append(c.Dependencies, cloneCoordinate(dep))
	}
	return c
}

func cloneCoordinate(c coordinate.Coordinate) coordinate.Coordinate {
	c.Exclusions = append([]string(nil), c.Exclusions...)
	if len(c.Exclusions) == 0 {
		c.Exclusions = nil
	}
	return c
}

// Merge layers child over parent. The child's non-empty coordinate fields
// win; properties and managed versions are unioned with child entries taking
// precedence. Licenses and dependencies come from the child only.
func Merge(child, parent *Descriptor) *Descriptor {
	m := child.Clone()
	if parent == nil {
		return m
	}
	if m.Coordinate.GroupID == "" {
		m.Coordinate.GroupID = parent.Coordinate.GroupID
	}
	if m.Coordinate.Version == "" {
		m.Coordinate.Version = parent.Coordinate.Version
	}

	props := parent.Properties.Clone()
	for _, k := range child.Properties.keys {
		props.Set(k, child.Properties.values[k])
	}
	m.Properties = props

	if len(parent.ManagedVersions) > 0 {
		managed := make(map[string]string, len(parent.ManagedVersions)+len(child.ManagedVersions))
		for k, v := range parent.ManagedVersions {
			managed[k] = v
		}
		for k, v := range child.ManagedVersions {
			managed[k] = v
		}
		m.ManagedVersions = managed
	}
	return m
}

// Substitute replaces ${name} references in every string field of d, using
// d's properties plus the project.* built-ins. It repeats until a pass makes
// no change or maxSubstitutionPasses is reached. Unknown references are left
// untouched.
func Substitute(d *Descriptor) *Descriptor {
	out := d.Clone()
	for pass := 0; pass < maxSubstitutionPasses; pass++ {
		vars := out.variables()
		changed := false
		out.visitStrings(func(s *string) {
			if v := expand(*s, vars); v != *s {
				*s = v
				changed = true
			}
		})
		if !changed {
			break
		}
	}
	return out
}

// ApplyManaged fills in dependency versions left empty from the managed
// versions table.
func ApplyManaged(d *Descriptor) *Descriptor {
	out := d.Clone()
	for i, dep := range out.Dependencies {
		if dep.Version != "" {
			continue
		}
		if v, ok := out.ManagedVersions[dep.Key()]; ok {
			out.Dependencies[i].Version = v
		}
	}
	return out
}

// Solve folds a parent chain into one descriptor. chain[0] is the descriptor
// being solved and each following entry is the parent of the one before it.
func Solve(chain []*Descriptor) *Descriptor {
	if len(chain) == 0 {
		return nil
	}
	merged := chain[len(chain)-1].Clone()
	for i := len(chain) - 2; i >= 0; i-- {
		merged = Merge(chain[i], merged)
	}
	return ApplyManaged(Substitute(merged))
}

func (d *Descriptor) variables() map[string]string {
	vars := make(map[string]string, d.Properties.Len()+8)
	for _, k := range d.Properties.keys {
		vars[k] = d.Properties.values[k]
	}
	c := d.Coordinate
	for _, prefix := range []string{"project.", "pom."} {
		vars[prefix+"groupId"] = c.GroupID
		vars[prefix+"artifactId"] = c.ArtifactID
		vars[prefix+"version"] = c.Version
		if d.Packaging != "" {
			vars[prefix+"packaging"] = d.Packaging
		}
	}
	if d.Parent != nil {
		vars["project.parent.groupId"] = d.Parent.GroupID
		vars["project.parent.artifactId"] = d.Parent.ArtifactID
		vars["project.parent.version"] = d.Parent.Version
		vars["parent.version"] = d.Parent.Version
	}
	return vars
}

// visitStrings calls fn on every substitutable string field.
func (d *Descriptor) visitStrings(fn func(*string)) {
	visitCoordinate(&d.Coordinate, fn)
	fn(&d.Packaging)
	if d.Parent != nil {
		visitCoordinate(d.Parent, fn)
	}
	for _, k := range d.Properties.keys {
		v := d.Properties.values[k]
		fn(&v)
		d.Properties.values[k] = v
	}
	if len(d.ManagedVersions) > 0 {
		managed := make(map[string]string, len(d.ManagedVersions))
		for k, v := range d.ManagedVersions {
			fn(&k)
			fn(&v)
			managed[k] = v
		}
		d.ManagedVersions = managed
	}
	for i := range d.Licenses {
		fn(&d.Licenses[i].Name)
		fn(&d.Licenses[i].URL)
	}
	for i := range d.Dependencies {
		visitCoordinate(&d.Dependencies[i], fn)
	}
}

func visitCoordinate(c *coordinate.Coordinate, fn func(*string)) {
	fn(&c.GroupID)
	fn(&c.ArtifactID)
	fn(&c.Version)
	fn(&c.Classifier)
	fn(&c.Type)
	for i := range c.Exclusions {
		fn(&c.Exclusions[i])
	}
}

// expand performs one left-to-right replacement of ${name} references.
func expand(s string, vars map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			break
		}
		end := i + 2 + j
		b.WriteString(s[:i])
		if v, ok := vars[s[i+2:end]]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : end+1])
		}
		s = s[end+1:]
	}
	return b.String()
}
