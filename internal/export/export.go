// Package export encodes analytics results for downstream reporting
// collaborators and validates the encoded payloads against their JSON
// Schemas before release. Downstream consumers treat all payloads as
// read-only value objects; validation here keeps that contract honest.
package export

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"driftd/internal/confidence"
	"driftd/internal/drift"
	"driftd/internal/similarity"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Validator validates exported payloads against their schemas.
type Validator struct {
	score      *jsonschema.Schema
	detection  *jsonschema.Schema
	assessment *jsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	load := func(name string) (*jsonschema.Schema, error) {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("export: read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("export: add schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("export: compile schema %s: %w", name, err)
		}
		return schema, nil
	}

	v := &Validator{}
	var err error
	if v.score, err = load("score.schema.json"); err != nil {
		return nil, err
	}
	if v.detection, err = load("detection.schema.json"); err != nil {
		return nil, err
	}
	if v.assessment, err = load("assessment.schema.json"); err != nil {
		return nil, err
	}
	return v, nil
}

// Score encodes and validates a similarity score.
func (v *Validator) Score(s *similarity.Score) ([]byte, error) {
	return v.encode(s, v.score, "score")
}

// Detection encodes and validates a drift verdict.
func (v *Validator) Detection(d *drift.Detection) ([]byte, error) {
	return v.encode(d, v.detection, "detection")
}

// Assessment encodes and validates a confidence assessment.
func (v *Validator) Assessment(a *confidence.Assessment) ([]byte, error) {
	return v.encode(a, v.assessment, "assessment")
}

func (v *Validator) encode(value any, schema *jsonschema.Schema, kind string) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("export: marshal %s: %w", kind, err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("export: decode %s for validation: %w", kind, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("export: %s payload invalid: %w", kind, err)
	}
	return data, nil
}
