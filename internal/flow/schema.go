package flow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/models"
)

//go:embed agent.schema.json
var agentSchemaJSON []byte

// MetadataValidator checks agent documents against the embedded schema.
type MetadataValidator struct {
	schema *jsonschema.Schema
}

// NewMetadataValidator compiles the agent document schema.
func NewMetadataValidator() (*MetadataValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("agent.schema.json", bytes.NewReader(agentSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("agent.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &MetadataValidator{schema: schema}, nil
}

// Validate returns a *ValidationError naming every offending field.
func (v *MetadataValidator) Validate(doc *models.AgentMetadata) error {
	if missing := doc.MissingFields(); len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "missing required fields"}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}

	err = v.schema.Validate(instance)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	return &ValidationError{Fields: schemaFields(verr), Reason: verr.Error()}
}

// schemaFields collects the top-level properties named by the leaf errors.
func schemaFields(verr *jsonschema.ValidationError) []string {
	seen := map[string]bool{}
	for _, unit := range verr.BasicOutput().Errors {
		loc := strings.TrimPrefix(unit.InstanceLocation, "/")
		if loc == "" {
			continue
		}
		field, _, _ := strings.Cut(loc, "/")
		seen[field] = true
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// canonicalCategory maps a case-insensitive category to its listed form.
func canonicalCategory(c string) string {
	for _, known := range models.Categories {
		if strings.EqualFold(known, strings.TrimSpace(c)) {
			return known
		}
	}
	return c
}
