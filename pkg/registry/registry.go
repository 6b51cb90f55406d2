// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"os"

	"intake-bot/internal/catalog"
	"intake-bot/internal/common/validation"
	"intake-bot/internal/models"
)

// LoadCatalog reads and validates a question catalog seed file.
func LoadCatalog(path string) (*QuestionCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := validation.ValidateAgainstSchema(catalogSchema, raw); err != nil {
		return nil, err
	}

	var doc QuestionCatalog
	err = json.Unmarshal(data, &doc)
	return &doc, err
}

// SeedOptions normalizes a seed entry's options into catalog options.
func SeedOptions(raw []interface{}) ([]models.Option, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return catalog.NormalizeOptions(data)
}
