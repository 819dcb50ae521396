package config

import (
	"encoding/json"
	"fmt"

	pkgconfig "github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/invopop/jsonschema"
)

const schemaID = "https://github.com/goran-ethernal/DropIndexor/config.schema.json"

// Schema reflects the JSON Schema of the configuration file.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		FieldNameTag:              "json",
		RequiredFromJSONSchemaTags: true,
	}

	schema := r.Reflect(&pkgconfig.Config{})
	schema.ID = schemaID
	schema.Title = "DropIndexor configuration"

	return schema
}

// SchemaJSON returns the indented JSON encoding of Schema.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config schema: %w", err)
	}

	return data, nil
}
