// internal/schema/validator.go
// Package schema provides JSON schema validation for payloads returned by the
// generative collaborator. Responses are treated as untyped JSON and must pass
// their schema before they are decoded into typed values.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Kind names a collaborator payload shape.
type Kind string

const (
	KindRanking Kind = "ranking" // Ordered list of item ids
	KindDraft   Kind = "draft"   // Metadata draft for a new item
	KindSummary Kind = "summary" // Watch-page summary
)

// Schemas holds the JSON schema source for every payload kind.
var Schemas = map[Kind]string{
	KindRanking: `{"type":"array","items":{"type":"string"}}`,
	KindDraft: `{"type":"object","required":["title","description","mood","duration"],"properties":{` +
		`"title":{"type":"string","minLength":1,"maxLength":200},` +
		`"description":{"type":"string"},` +
		`"mood":{"type":"string","enum":["Energetic","Calm","Focus","Dark","Funny"]},` +
		`"duration":{"type":"string","pattern":"^[0-9]{1,3}:[0-5][0-9]$"}}}`,
	KindSummary: `{"type":"object","required":["summary","keyTakeaways","vibe"],"properties":{` +
		`"summary":{"type":"string"},` +
		`"keyTakeaways":{"type":"array","items":{"type":"string"}},` +
		`"vibe":{"type":"string"}}}`,
}

// Validator validates collaborator payloads against compiled JSON schemas.
type Validator struct {
	schemas map[Kind]*gojsonschema.Schema // Compiled schema per payload kind
}

// NewValidator compiles every schema in Schemas.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[Kind]*gojsonschema.Schema, len(Schemas))}
	for kind, src := range Schemas {
		if err := v.loadSchema(kind, src); err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
	}
	return v, nil
}

// MustNewValidator is NewValidator for schemas known at compile time.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// loadSchema parses and compiles a single schema.
func (v *Validator) loadSchema(kind Kind, schemaJSON string) error {
	loader := gojsonschema.NewStringLoader(schemaJSON)

	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", kind, err)
	}

	v.schemas[kind] = schema
	return nil
}

// Validate checks raw JSON against the schema registered for kind.
// It returns an error listing every violation when the payload does not conform.
func (v *Validator) Validate(kind Kind, raw []byte) error {
	schema, exists := v.schemas[kind]
	if !exists {
		return fmt.Errorf("schema not found for payload kind: %s", kind)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
