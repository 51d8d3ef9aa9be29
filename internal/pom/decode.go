package pom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/scope"
)

type xmlProject struct {
	XMLName              xml.Name        `xml:"project"`
	GroupID              string          `xml:"groupId"`
	ArtifactID           string          `xml:"artifactId"`
	Version              string          `xml:"version"`
	Packaging            string          `xml:"packaging"`
	Parent               *xmlParent      `xml:"parent"`
	Properties           xmlProperties   `xml:"properties"`
	DependencyManagement xmlDependencies `xml:"dependencyManagement"`
	Dependencies         []xmlDependency `xml:"dependencies>dependency"`
	Licenses             []xmlLicense    `xml:"licenses>license"`
}

type xmlParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type xmlProperties struct {
	Entries []xmlProperty `xml:",any"`
}

type xmlProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlDependencies struct {
	Dependencies []xmlDependency `xml:"dependencies>dependency"`
}

type xmlDependency struct {
	GroupID    string         `xml:"groupId"`
	ArtifactID string         `xml:"artifactId"`
	Version    string         `xml:"version"`
	Classifier string         `xml:"classifier"`
	Type       string         `xml:"type"`
	Scope      string         `xml:"scope"`
	Optional   string         `xml:"optional"`
	Exclusions []xmlExclusion `xml:"exclusions>exclusion"`
}

type xmlExclusion struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
}

type xmlLicense struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

// Decode reads a Maven POM document. The project's groupId and version fall
// back to the parent reference when absent, dependency scopes default to
// compile, and dependency types are mapped to the file extension they are
// stored under.
func Decode(data []byte) (*Descriptor, error) {
	var p xmlProject
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}

	d := &Descriptor{
		Packaging: clean(p.Packaging),
	}
	if d.Packaging == "" {
		d.Packaging = "jar"
	}

	if p.Parent != nil {
		parent := coordinate.New(clean(p.Parent.GroupID), clean(p.Parent.ArtifactID), clean(p.Parent.Version))
		parent.Type = "pom"
		if parent.GroupID == "" || parent.ArtifactID == "" || parent.Version == "" {
			return nil, fmt.Errorf("failed to decode descriptor: incomplete parent %s", parent.GAV())
		}
		if err := parent.Validate(); err != nil {
			return nil, fmt.Errorf("failed to decode descriptor: parent: %w", err)
		}
		d.Parent = &parent
	}

	d.Coordinate = coordinate.New(clean(p.GroupID), clean(p.ArtifactID), clean(p.Version))
	if d.Parent != nil {
		if d.Coordinate.GroupID == "" {
			d.Coordinate.GroupID = d.Parent.GroupID
		}
		if d.Coordinate.Version == "" {
			d.Coordinate.Version = d.Parent.Version
		}
	}
	if d.Coordinate.ArtifactID == "" {
		return nil, fmt.Errorf("failed to decode descriptor: missing artifactId")
	}
	if err := d.Coordinate.Validate(); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}

	for _, prop := range p.Properties.Entries {
		d.Properties.Set(prop.XMLName.Local, clean(prop.Value))
	}

	for _, m := range p.DependencyManagement.Dependencies {
		// BOM imports are not followed; their entries carry no version of
		// their own to manage.
		if clean(m.Scope) == "import" {
			continue
		}
		if d.ManagedVersions == nil {
			d.ManagedVersions = make(map[string]string)
		}
		d.ManagedVersions[clean(m.GroupID)+":"+clean(m.ArtifactID)] = clean(m.Version)
	}

	for _, x := range p.Dependencies {
		dep, err := x.coordinate()
		if err != nil {
			return nil, fmt.Errorf("failed to decode descriptor %s: %w", d.Coordinate.GAV(), err)
		}
		d.Dependencies = append(d.Dependencies, dep)
	}

	for _, l := range p.Licenses {
		d.Licenses = append(d.Licenses, License{Name: clean(l.Name), URL: clean(l.URL)})
	}
	return d, nil
}

func (x xmlDependency) coordinate() (coordinate.Coordinate, error) {
	c := coordinate.New(clean(x.GroupID), clean(x.ArtifactID), clean(x.Version))
	if c.GroupID == "" || c.ArtifactID == "" {
		return coordinate.Coordinate{}, fmt.Errorf("dependency %q is missing groupId or artifactId", c.Key())
	}
	c.Classifier = clean(x.Classifier)
	c.Type, c.Classifier = artifactType(clean(x.Type), c.Classifier)

	sc, err := scope.Parse(clean(x.Scope))
	if err != nil {
		return coordinate.Coordinate{}, fmt.Errorf("dependency %s: %w", c.Key(), err)
	}
	if sc == scope.None {
		sc = scope.Compile
	}
	c.Scope = sc
	c.Optional = clean(x.Optional) == "true"

	for _, e := range x.Exclusions {
		group, artifact := clean(e.GroupID), clean(e.ArtifactID)
		if artifact == "" {
			artifact = "*"
		}
		c.Exclusions = append(c.Exclusions, group+":"+artifact)
	}
	if err := c.Validate(); err != nil {
		return coordinate.Coordinate{}, fmt.Errorf("dependency %s: %w", c.Key(), err)
	}
	return c, nil
}

// artifactType maps a declared dependency type to the extension the
// artifact is stored under, adding the implied classifier where there is one.
func artifactType(typ, classifier string) (string, string) {
	switch typ {
	case "":
		return coordinate.DefaultType, classifier
	case "test-jar":
		if classifier == "" {
			classifier = "tests"
		}
		return "jar", classifier
	case "maven-plugin", "ejb", "bundle":
		return "jar", classifier
	}
	return typ, classifier
}

func clean(s string) string {
	return strings.TrimSpace(s)
}
