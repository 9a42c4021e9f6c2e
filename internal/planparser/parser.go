// Package planparser provides bidirectional YAML/JSON conversion for
// planmodel.Plan, grounded on the format-detection and parse/write split of
// the teacher's internal/parser package (blueman82/conductor), adapted from
// a Markdown/YAML task-plan parser to Ralph's YAML/JSON story-plan format.
package planparser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poe-code/ralph/internal/planmodel"
)

// Format is the on-disk serialization of a plan document.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// DetectFormat sniffs the serialization of source by looking at the first
// non-whitespace byte: a '{' means JSON, anything else is treated as YAML
// (YAML is a superset of most hand-authored plan files, so this ordering
// mirrors the teacher's extension-based DetectFormat but works on content
// since Ralph plans are not necessarily read from a named file).
func DetectFormat(source []byte) Format {
	trimmed := bytes.TrimSpace(source)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	if trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatYAML
}

// Parse reads source (YAML or JSON, auto-detected) into a planmodel.Plan,
// normalizing defaults and rejecting structurally invalid documents per
// spec.md §4.1.
func Parse(source []byte) (*planmodel.Plan, error) {
	format := DetectFormat(source)
	switch format {
	case FormatJSON:
		return parseJSON(source)
	case FormatYAML:
		return parseYAML(source)
	default:
		return nil, fmt.Errorf("planparser: empty document")
	}
}

func parseYAML(source []byte) (*planmodel.Plan, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(source, &root); err != nil {
		return nil, fmt.Errorf("planparser: invalid yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("planparser: empty yaml document")
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("planparser: root must be a mapping, got %v", mapping.Kind)
	}

	var plan planmodel.Plan
	if err := mapping.Decode(&plan); err != nil {
		return nil, fmt.Errorf("planparser: decode plan: %w", err)
	}
	if err := validateRootFields(mapping); err != nil {
		return nil, err
	}
	return finalize(&plan)
}

func parseJSON(source []byte) (*planmodel.Plan, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(source, &generic); err != nil {
		return nil, fmt.Errorf("planparser: invalid json: %w", err)
	}
	if _, ok := generic["version"]; !ok {
		return nil, fmt.Errorf("planparser: missing required field %q", "version")
	}
	if storiesRaw, ok := generic["stories"]; ok {
		if _, isSlice := storiesRaw.([]interface{}); !isSlice {
			return nil, fmt.Errorf("planparser: %q must be a sequence", "stories")
		}
	}

	var plan planmodel.Plan
	if err := json.Unmarshal(source, &plan); err != nil {
		return nil, fmt.Errorf("planparser: decode plan: %w", err)
	}
	if plan.Version <= 0 {
		return nil, fmt.Errorf("planparser: %q must be a positive integer", "version")
	}
	return finalize(&plan)
}

// validateRootFields applies the structural checks that decoding straight
// into planmodel.Plan cannot express: the root must be a mapping (checked by
// the caller), version must be a positive integer, and stories (if present)
// must be a sequence.
func validateRootFields(mapping *yaml.Node) error {
	var versionNode, storiesNode *yaml.Node
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		switch key.Value {
		case "version":
			versionNode = mapping.Content[i+1]
		case "stories":
			storiesNode = mapping.Content[i+1]
		}
	}

	if versionNode == nil {
		return fmt.Errorf("planparser: missing required field %q", "version")
	}
	var version int
	if err := versionNode.Decode(&version); err != nil || version <= 0 {
		return fmt.Errorf("planparser: %q must be a positive integer", "version")
	}

	if storiesNode != nil && storiesNode.Kind != yaml.SequenceNode {
		return fmt.Errorf("planparser: %q must be a sequence", "stories")
	}

	return nil
}

// finalize normalizes story defaults and enforces uniqueness of story ids.
func finalize(plan *planmodel.Plan) (*planmodel.Plan, error) {
	seen := make(map[string]bool, len(plan.Stories))
	for i := range plan.Stories {
		s := &plan.Stories[i]
		if s.ID == "" {
			return nil, fmt.Errorf("planparser: story at index %d has empty id", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("planparser: duplicate story id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Status == "" {
			s.Status = planmodel.StatusOpen
		}
		if s.DependsOn == nil {
			s.DependsOn = []string{}
		}
		if s.AcceptanceCriteria == nil {
			s.AcceptanceCriteria = []string{}
		}
	}
	return plan, nil
}

// Write serializes plan back into the given format. The YAML writer and the
// JSON writer both produce output that Parse can round-trip byte-identically
// given the same input semantics (spec.md §4.1's round-trip requirement,
// verified by planparser's round-trip tests).
func Write(plan *planmodel.Plan, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(plan); err != nil {
			return nil, fmt.Errorf("planparser: encode json: %w", err)
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return nil, fmt.Errorf("planparser: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("planparser: close yaml encoder: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("planparser: unsupported write format %v", format)
	}
}

// DetectFormatFromPath is a convenience for callers (e.g. the Plan Store)
// that know the plan's file extension and want to preserve it on write,
// matching the teacher's extension-based dispatch in internal/parser.
func DetectFormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	default:
		return FormatUnknown
	}
}
