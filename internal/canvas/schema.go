package canvas

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// metadataSchemaText constrains the durable metadata document: a map of node
// records whose id and type are mandatory and whose type is file or folder.
// Unknown extra properties are allowed so newer documents stay loadable.
const metadataSchemaText = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["id", "type"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "type": {"enum": ["file", "folder"]},
      "description": {"type": "string"},
      "x": {"type": "number"},
      "y": {"type": "number"},
      "fileName": {"type": "string"},
      "status": {"type": "string"},
      "name": {"type": "string"},
      "width": {"type": "number"},
      "height": {"type": "number"},
      "isExpanded": {"type": "boolean"},
      "containedFiles": {"type": "array", "items": {"type": "string"}},
      "parentFolder": {"type": "string"}
    }
  }
}`

var (
	metadataSchemaOnce sync.Once
	metadataSchema     *jsonschema.Schema
	metadataSchemaErr  error
)

func compiledMetadataSchema() (*jsonschema.Schema, error) {
	metadataSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(metadataSchemaText))
		if err != nil {
			metadataSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("metadata.json", doc); err != nil {
			metadataSchemaErr = err
			return
		}
		metadataSchema, metadataSchemaErr = compiler.Compile("metadata.json")
	})
	return metadataSchema, metadataSchemaErr
}

// validateMetadataDocument checks a raw metadata document before it is
// decoded. Callers treat a validation failure as an absent document.
func validateMetadataDocument(raw []byte) error {
	schema, err := compiledMetadataSchema()
	if err != nil {
		return fmt.Errorf("compile metadata schema: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse metadata document: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("metadata document invalid: %w", err)
	}
	return nil
}
