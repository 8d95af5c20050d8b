package config

import (
	"errors"
	"fmt"
	"os"

	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

// Load reads a form definition from disk. The raw document is validated
// against the embedded CUE schema before decoding, then structurally
// validated via Form.Validate.
func Load(path string) (*Form, error) {
	if path == "" {
		return nil, errors.New("form path must not be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form %s: %w", path, err)
	}
	form, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", path, err)
	}
	return form, nil
}

// Parse decodes and validates a form definition from raw YAML.
func Parse(raw []byte) (*Form, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("unmarshal form: %w", err)
	}
	if len(document.Content) == 0 || document.Content[0] == nil {
		return nil, errors.New("form document is empty")
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top-level YAML document must be a mapping")
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := cueyaml.Validate(raw, schema); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}

	var form Form
	if err := root.Decode(&form); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return &form, nil
}

// LoadAnswers reads an answer map fixture: a YAML mapping from question id to
// raw answer value. Conversion to typed values happens in the engine, where
// the question types are known.
func LoadAnswers(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, errors.New("answers path must not be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers %s: %w", path, err)
	}
	answers := make(map[string]interface{})
	if err := yaml.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers %s: %w", path, err)
	}
	return answers, nil
}
