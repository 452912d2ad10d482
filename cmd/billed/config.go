package main

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// parseYAMLConfig feeds top level keys of a YAML document to set. Lists set
// the flag once per element.
func parseYAMLConfig(r io.Reader, set func(name, value string) error) error {
	var values map[string]any
	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding yaml config: %w", err)
	}

	for name, raw := range values {
		switch v := raw.(type) {
		case nil:
			continue
		case []any:
			for _, item := range v {
				if err := set(name, fmt.Sprint(item)); err != nil {
					return err
				}
			}
		case map[string]any:
			return fmt.Errorf("config key %q: nested values are not supported", name)
		default:
			if err := set(name, fmt.Sprint(v)); err != nil {
				return err
			}
		}
	}
	return nil
}
