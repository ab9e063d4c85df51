package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://tapmeter.local/schema/config-v1.schema.json"

// Document formats.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Schema returns the embedded JSON schema of the configuration file.
func Schema() []byte {
	return schemaJSON
}

// FormatForExt maps a file extension to a document format. Unknown
// extensions return "".
func FormatForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return ""
}

// ValidateDocument checks a raw configuration document against the schema.
// An empty format tries TOML, then JSON, then YAML. Schema violations are
// returned as ValidationErrors keyed by JSON pointer.
func ValidateDocument(data []byte, format string) error {
	doc, _, err := parseDocument(data, format)
	if err != nil {
		return err
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	err = sch.Validate(doc)
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		var errs ValidationErrors
		collectLeaves(ve, &errs)
		return errs
	}
	return err
}

// parseDocument decodes data into generic JSON values and reports the
// format that decoded it.
func parseDocument(data []byte, format string) (any, string, error) {
	var raw any
	switch format {
	case FormatTOML:
		var m map[string]any
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, "", fmt.Errorf("decode TOML: %w", err)
		}
		if m == nil {
			m = map[string]any{}
		}
		raw = m
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, "", fmt.Errorf("decode JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, "", fmt.Errorf("decode YAML: %w", err)
		}
	case "":
		for _, f := range []string{FormatTOML, FormatJSON, FormatYAML} {
			if doc, _, err := parseDocument(data, f); err == nil {
				return doc, f, nil
			}
		}
		return nil, "", fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
	default:
		return nil, "", fmt.Errorf("unsupported config format %q", format)
	}

	doc, err := normalize(raw)
	if err != nil {
		return nil, "", err
	}
	return doc, format, nil
}

// normalize round-trips v through JSON so the validator only sees JSON
// types. TOML integers, dates and YAML maps become numbers, strings and
// map[string]any.
func normalize(v any) (any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	return out, nil
}

func collectLeaves(ve *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(ve.Causes) == 0 {
		field := ve.InstanceLocation
		if field == "" {
			field = "/"
		}
		*errs = append(*errs, ValidationError{Field: field, Message: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, errs)
	}
}
