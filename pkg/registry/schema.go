// pkg/registry/schema.go
package registry

// QuestionCatalog is the seed document for the questionnaire.
type QuestionCatalog struct {
	Version     string         `json:"version"`
	LastUpdated string         `json:"lastUpdated"`
	Questions   []QuestionSeed `json:"questions"`
}

// QuestionSeed is one catalog entry as authored in the seed file.
type QuestionSeed struct {
	StepID    string        `json:"stepId"`
	Position  int           `json:"position"`
	Prompt    string        `json:"prompt"`
	InputKind string        `json:"inputKind"` // free_text, single_choice, multi_choice, media
	Options   []interface{} `json:"options,omitempty"`
	Active    bool          `json:"active"`
}

// catalogSchema constrains seed documents before they reach storage.
var catalogSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"version", "questions"},
	"properties": map[string]interface{}{
		"version":     map[string]interface{}{"type": "string"},
		"lastUpdated": map[string]interface{}{"type": "string"},
		"questions": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"stepId", "position", "prompt", "inputKind"},
				"properties": map[string]interface{}{
					"stepId":   map[string]interface{}{"type": "string", "minLength": 1},
					"position": map[string]interface{}{"type": "integer", "minimum": 0},
					"prompt":   map[string]interface{}{"type": "string", "minLength": 1},
					"inputKind": map[string]interface{}{
						"type": "string",
						"enum": []interface{}{"free_text", "single_choice", "multi_choice", "media"},
					},
					"options": map[string]interface{}{"type": "array"},
					"active":  map[string]interface{}{"type": "boolean"},
				},
			},
		},
	},
}
