package pom

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Properties is a string map that remembers insertion order. The zero value
// is an empty map ready to use.
type Properties struct {
	keys   []string
	values map[string]string
}

// Set adds or replaces a property. A replaced property keeps its position.
func (p *Properties) Set(key, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value of key.
func (p Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the property names in insertion order.
func (p Properties) Keys() []string {
	return append([]string(nil), p.keys...)
}

func (p Properties) Len() int {
	return len(p.keys)
}

// IsZero lets yaml's omitempty see an empty map.
func (p Properties) IsZero() bool {
	return len(p.keys) == 0
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	var c Properties
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// MarshalYAML writes the properties as a mapping in insertion order.
func (p Properties) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range p.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.values[k]},
		)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping, preserving document order.
func (p *Properties) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("properties must be a mapping, got line %d", value.Line)
	}
	*p = Properties{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		p.Set(value.Content[i].Value, value.Content[i+1].Value)
	}
	return nil
}
