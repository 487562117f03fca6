package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"RiskSentinel/internal/model"
)

const fieldsSchemaURL = "mem://risk-sentinel/structured-fields.json"

var numericFields = []string{
	model.FieldTSI, model.FieldPremium, model.FieldRetentionPct,
	model.FieldShareOfferedPct, model.FieldPMLPct,
	model.FieldPaidLosses, model.FieldOutstanding,
	model.FieldRecoveries, model.FieldEarnedPremium,
	model.FieldLatitude, model.FieldLongitude,
}

// fieldsSchema accepts any non-empty object whose numeric fields hold a
// number, a numeric-looking string or null. Missing fields are allowed.
func fieldsSchema() string {
	var props []string
	for _, f := range numericFields {
		props = append(props, fmt.Sprintf(`%q: {"type": ["number", "string", "null"]}`, f))
	}
	for _, f := range []string{model.FieldInsured, model.FieldCedant, model.FieldBroker, model.FieldCurrency} {
		props = append(props, fmt.Sprintf(`%q: {"type": ["string", "null"]}`, f))
	}
	return `{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"minProperties": 1,
		"properties": {` + strings.Join(props, ",\n") + `}
	}`
}

// FieldValidator checks structured-fields artifacts before they are merged.
type FieldValidator struct {
	schema *jsonschema.Schema
}

// NewFieldValidator compiles the structured-fields schema.
func NewFieldValidator() (*FieldValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(fieldsSchemaURL, strings.NewReader(fieldsSchema())); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(fieldsSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &FieldValidator{schema: compiled}, nil
}

// Decode validates data and returns it as record fields.
func (v *FieldValidator) Decode(data []byte) (model.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: trailing data after document")
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("validate: not an object")
	}
	return model.Fields(obj), nil
}
