package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format is a spec file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the encoding by file extension. JSON files may carry
// comments and trailing commas.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported spec file extension %q (want .yaml, .yml, .json or .jsonc)", filepath.Ext(path))
	}
}

// Load reads a spec file into raw field values ready for Validate.
func Load(path string) (map[string]any, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	raw, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// Parse decodes spec bytes. The document must be a mapping; an empty
// document is an empty spec.
func Parse(data []byte, format Format) (map[string]any, error) {
	raw := map[string]any{}
	switch format {
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing spec: %w", err)
		}
		if doc == nil {
			return raw, nil
		}
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parsing spec: top level must be a mapping, got %s", describeNative(doc))
		}
		return m, nil

	case FormatJSON:
		stripped := jsonc.ToJSON(data)
		if len(bytes.TrimSpace(stripped)) == 0 {
			return raw, nil
		}
		dec := json.NewDecoder(bytes.NewReader(stripped))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing spec: %w", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("parsing spec: trailing data after document")
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("unsupported spec format %q", format)
	}
}
