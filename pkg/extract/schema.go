package extract

import (
	"fmt"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// DefaultSchema is the built-in extraction schema used when SCHEMA_NAME
// is "default" or when a backend requires schema-guided extraction and
// none was configured.
func DefaultSchema() *domain.Schema {
	return &domain.Schema{
		Name:     "default",
		Entities: []string{"PERSON", "ORGANIZATION", "LOCATION", "TECHNOLOGY", "PROJECT", "DOCUMENT"},
		Relations: []string{
			"WORKS_FOR", "LOCATED_IN", "USES", "COLLABORATES_WITH", "DEVELOPS", "MENTIONS",
		},
		Validation: []domain.ValidationTriple{
			{Subject: "PERSON", Relation: "WORKS_FOR", Object: "ORGANIZATION"},
			{Subject: "PERSON", Relation: "LOCATED_IN", Object: "LOCATION"},
			{Subject: "PERSON", Relation: "USES", Object: "TECHNOLOGY"},
			{Subject: "PERSON", Relation: "COLLABORATES_WITH", Object: "PERSON"},
			{Subject: "ORGANIZATION", Relation: "LOCATED_IN", Object: "LOCATION"},
			{Subject: "ORGANIZATION", Relation: "DEVELOPS", Object: "TECHNOLOGY"},
			{Subject: "ORGANIZATION", Relation: "DEVELOPS", Object: "PROJECT"},
			{Subject: "PROJECT", Relation: "USES", Object: "TECHNOLOGY"},
			{Subject: "DOCUMENT", Relation: "MENTIONS", Object: "PERSON"},
			{Subject: "DOCUMENT", Relation: "MENTIONS", Object: "ORGANIZATION"},
			{Subject: "DOCUMENT", Relation: "MENTIONS", Object: "TECHNOLOGY"},
		},
		Strict:              false,
		MaxTripletsPerChunk: 15,
	}
}

// ResolveSchema maps SCHEMA_NAME to a schema. "none" selects schema-free
// extraction (nil schema); "default" selects the built-in schema; any
// other name must match one of the configured schemas.
func ResolveSchema(name string, configured []domain.Schema) (*domain.Schema, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "default":
		return DefaultSchema(), nil
	}
	for i := range configured {
		if configured[i].Name == name {
			return &configured[i], nil
		}
	}
	return nil, fmt.Errorf("%w: schema %q not found", domain.ErrConfig, name)
}
