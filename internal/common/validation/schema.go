// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateAgainstSchema checks a document against a JSON schema expressed as a Go map.
func ValidateAgainstSchema(schema, document interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("document validation failed: %v", errs)
	}

	return nil
}
