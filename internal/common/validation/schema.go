// Package validation checks the shape of JSON values embedded in request payloads.
package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompile panics when the schema document is malformed.
func MustCompile(schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("validation: invalid schema: %v", err))
	}
	return &Schema{schema: s}
}

// DecodeInto validates raw against the schema and, when it conforms, unmarshals
// it into out. The returned messages are sorted for stable output.
func (s *Schema) DecodeInto(raw string, out interface{}) ([]string, error) {
	result, err := s.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return []string{"must be valid JSON"}, nil
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, describe(desc))
		}
		sort.Strings(msgs)
		return msgs, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return nil, fmt.Errorf("decode validated value: %w", err)
	}
	return nil, nil
}

func describe(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "" || field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		return desc.Description()
	}
	return strings.TrimPrefix(field, "(root).") + ": " + desc.Description()
}

// StringSet accepts an array of strings.
var StringSet = MustCompile(`{
	"type": "array",
	"items": {"type": "string"}
}`)

// SocialLinks accepts an object of platform URLs.
var SocialLinks = MustCompile(`{
	"type": "object",
	"properties": {
		"facebook":  {"type": "string"},
		"instagram": {"type": "string"},
		"tiktok":    {"type": "string"},
		"youtube":   {"type": "string"}
	},
	"additionalProperties": false
}`)
