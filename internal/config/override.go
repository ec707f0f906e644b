package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override sets one dotted key path, e.g. "scenario.nsymb", to a value.
type Override struct {
	Key   string
	Value string
}

// ParseOverride splits "key.path=value".
func ParseOverride(s string) (Override, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Override{}, fmt.Errorf("override %q: want key.path=value", s)
	}
	return Override{Key: key, Value: value}, nil
}

// ParseOverrides parses every entry of a repeated --set flag.
func ParseOverrides(list []string) ([]Override, error) {
	out := make([]Override, 0, len(list))
	for _, s := range list {
		o, err := ParseOverride(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Apply writes the value into m, creating intermediate sections as needed.
// The value is parsed as a YAML scalar or flow collection, so "12" becomes a
// number and "[a, b]" a list.
func (o Override) Apply(m map[string]any) error {
	var value any
	if err := yaml.Unmarshal([]byte(o.Value), &value); err != nil {
		value = o.Value
	}

	path := strings.Split(o.Key, ".")
	cur := m
	for i, part := range path[:len(path)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			child := map[string]any{}
			cur[part] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("override %s: %s is not a section", o.Key, strings.Join(path[:i+1], "."))
		}
		cur = child
	}
	cur[path[len(path)-1]] = value
	return nil
}
