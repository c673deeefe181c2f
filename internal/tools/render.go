package tools

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Render turns a raw JSON document into YAML. Map keys are emitted in sorted
// order, so equal data always renders to the same text.
func Render(data json.RawMessage) (string, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return "", fmt.Errorf("decode response data: %w", err)
	}
	out, err := yaml.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("render response data: %w", err)
	}
	return string(out), nil
}
