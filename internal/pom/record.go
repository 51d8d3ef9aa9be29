package pom

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vk/kiln/internal/coordinate"
	"github.com/vk/kiln/internal/scope"
)

// recordFormat is bumped whenever the on-disk solution layout changes.
const recordFormat = 1

type record struct {
	Format       int                `yaml:"format"`
	Coordinate   coordinateRecord   `yaml:"coordinate"`
	Packaging    string             `yaml:"packaging,omitempty"`
	Parent       *coordinateRecord  `yaml:"parent,omitempty"`
	Properties   Properties         `yaml:"properties,omitempty"`
	Managed      map[string]string  `yaml:"managed,omitempty"`
	Licenses     []License          `yaml:"licenses,omitempty"`
	Dependencies []coordinateRecord `yaml:"dependencies,omitempty"`
}

type coordinateRecord struct {
	Group      string   `yaml:"group"`
	Artifact   string   `yaml:"artifact"`
	Version    string   `yaml:"version,omitempty"`
	Classifier string   `yaml:"classifier,omitempty"`
	Type       string   `yaml:"type,omitempty"`
	Scope      string   `yaml:"scope,omitempty"`
	Optional   bool     `yaml:"optional,omitempty"`
	Exclusions []string `yaml:"exclusions,omitempty"`
}

func toRecord(c coordinate.Coordinate) coordinateRecord {
	r := coordinateRecord{
		Group:      c.GroupID,
		Artifact:   c.ArtifactID,
		Version:    c.Version,
		Classifier: c.Classifier,
		Scope:      string(c.Scope),
		Optional:   c.Optional,
		Exclusions: c.Exclusions,
	}
	if c.Ext() != coordinate.DefaultType {
		r.Type = c.Type
	}
	return r
}

func (r coordinateRecord) coordinate() (coordinate.Coordinate, error) {
	c := coordinate.New(r.Group, r.Artifact, r.Version)
	c.Classifier = r.Classifier
	if r.Type != "" {
		c.Type = r.Type
	}
	sc, err := scope.Parse(r.Scope)
	if err != nil {
		return coordinate.Coordinate{}, err
	}
	c.Scope = sc
	c.Optional = r.Optional
	c.Exclusions = r.Exclusions
	return c, nil
}

// MarshalRecord serialises a solved descriptor for the cache.
func MarshalRecord(d *Descriptor) ([]byte, error) {
	r := record{
		Format:     recordFormat,
		Coordinate: toRecord(d.Coordinate),
		Packaging:  d.Packaging,
		Properties: d.Properties,
		Managed:    d.ManagedVersions,
		Licenses:   d.Licenses,
	}
	if d.Parent != nil {
		p := toRecord(*d.Parent)
		r.Parent = &p
	}
	for _, dep := range d.Dependencies {
		r.Dependencies = append(r.Dependencies, toRecord(dep))
	}
	return yaml.Marshal(&r)
}

// UnmarshalRecord reads a descriptor written by MarshalRecord.
func UnmarshalRecord(data []byte) (*Descriptor, error) {
	var r record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode solution record: %w", err)
	}
	if r.Format != recordFormat {
		return nil, fmt.Errorf("unsupported solution record format %d", r.Format)
	}

	c, err := r.Coordinate.coordinate()
	if err != nil {
		return nil, fmt.Errorf("failed to decode solution record: %w", err)
	}
	d := &Descriptor{
		Coordinate:      c,
		Packaging:       r.Packaging,
		Properties:      r.Properties,
		ManagedVersions: r.Managed,
		Licenses:        r.Licenses,
	}
	if r.Parent != nil {
		p, err := r.Parent.coordinate()
		if err != nil {
			return nil, fmt.Errorf("failed to decode solution record: %w", err)
		}
		d.Parent = &p
	}
	for _, rec := range r.Dependencies {
		dep, err := rec.coordinate()
		if err != nil {
			return nil, fmt.Errorf("failed to decode solution record %s: %w", c.GAV(), err)
		}
		d.Dependencies = append(d.Dependencies, dep)
	}
	return d, nil
}
