package content

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// packMetadataSchema is the pack_metadata.json contract: required identity
// fields, closed support/marketplace enums, ISO-8601 timestamps.
const packMetadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "description", "support", "currentVersion", "author", "categories"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "support": {"type": "string", "enum": ["xsoar", "partner", "developer", "community"]},
    "currentVersion": {"type": "string", "pattern": "^[0-9]+\\.[0-9]+\\.[0-9]+$"},
    "author": {"type": "string", "minLength": 1},
    "categories": {"type": "array", "items": {"type": "string"}},
    "tags": {"type": "array", "items": {"type": "string"}},
    "useCases": {"type": "array", "items": {"type": "string"}},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "dependencies": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {"mandatory": {"type": "boolean"}}
      }
    },
    "marketplaces": {
      "type": "array",
      "items": {"type": "string", "enum": ["xsoar", "xsoar_saas", "marketplacev2", "xpanse"]}
    },
    "supportedModules": {"type": "array", "items": {"type": "string"}},
    "certification": {"type": "string"},
    "price": {"type": "integer", "minimum": 0},
    "created": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}Z$"},
    "updated": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}Z$"}
  }
}`

var (
	metadataSchemaOnce sync.Once
	metadataSchema     *gojsonschema.Schema
	metadataSchemaErr  error
)

func compiledMetadataSchema() (*gojsonschema.Schema, error) {
	metadataSchemaOnce.Do(func() {
		loader := gojsonschema.NewStringLoader(packMetadataSchema)
		metadataSchema, metadataSchemaErr = gojsonschema.NewSchema(loader)
	})
	return metadataSchema, metadataSchemaErr
}

// ValidatePackMetadata checks a parsed pack_metadata.json mapping against the
// contract and returns one message per violation, sorted for determinism.
func ValidatePackMetadata(raw map[string]any) ([]string, error) {
	schema, err := compiledMetadataSchema()
	if err != nil {
		return nil, fmt.Errorf("compile pack metadata schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("validate pack metadata: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return msgs, nil
}
