package main

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "github.com/AGES-Pro-Mata/frontend-sub002/internal/errors"
	"github.com/AGES-Pro-Mata/frontend-sub002/pkg/features/filters"
)

// parseSet parses one --set key=value argument. The value is read as a YAML
// scalar or flow sequence, so page=0 is a number, name=null is omitted and
// tags=[a,b] is a list.
func parseSet(arg string) (filters.Field, error) {
	key, raw, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return filters.Field{}, ferrors.New("X001").WithDetailf("%q is not key=value", arg)
	}
	if raw == "" {
		return filters.F(key, ""), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		// Anything YAML rejects is taken literally.
		return filters.F(key, raw), nil
	}
	if len(doc.Content) == 0 {
		return filters.F(key, raw), nil
	}
	value, err := nodeValue(doc.Content[0])
	if err != nil {
		return filters.F(key, raw), nil
	}
	return filters.F(key, value), nil
}

// parseSets parses every --set argument in order.
func parseSets(args []string) (filters.Values, error) {
	fields := make([]filters.Field, 0, len(args))
	for _, arg := range args {
		f, err := parseSet(arg)
		if err != nil {
			return filters.Values{}, err
		}
		fields = append(fields, f)
	}
	return filters.NewValues(fields...), nil
}

// readFilterFile reads a YAML mapping of field names to values, keeping
// document order.
func readFilterFile(path string) (filters.Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return filters.Values{}, ferrors.New("X002").WithDetailf("reading %s", path).Wrap(err)
	}
	return parseFilterDocument(data)
}

func parseFilterDocument(data []byte) (filters.Values, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return filters.Values{}, ferrors.New("X002").Wrap(err)
	}
	if len(doc.Content) == 0 {
		return filters.Values{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return filters.Values{}, ferrors.New("X002").WithDetailf("line %d: expected a mapping", root.Line)
	}

	fields := make([]filters.Field, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		value, err := nodeValue(valueNode)
		if err != nil {
			return filters.Values{}, ferrors.New("X002").WithDetailf("line %d: field %q", valueNode.Line, keyNode.Value).Wrap(err)
		}
		fields = append(fields, filters.F(keyNode.Value, value))
	}
	return filters.NewValues(fields...), nil
}

// nodeValue converts a YAML node into a filter value. Nested mappings become
// maps, which stringify as JSON with sorted keys.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
