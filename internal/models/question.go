// internal/models/question.go
package models

// Input kinds for catalog steps.
const (
	InputFreeText     = "free_text"
	InputSingleChoice = "single_choice"
	InputMultiChoice  = "multi_choice"
	InputMedia        = "media"
)

// QuestionDefinition is one catalog step as served to the flow.
type QuestionDefinition struct {
	StepID    string   `json:"stepId"`
	Position  int      `json:"position"`
	Prompt    string   `json:"prompt"`
	InputKind string   `json:"inputKind"`
	Options   []Option `json:"options,omitempty"`
	Active    bool     `json:"active"`
}

// Option is one selectable answer. Token is the stable identity used in
// callback payloads and stored answers; Label and Decoration are presentation.
type Option struct {
	Token      string `json:"token"`
	Label      string `json:"label"`
	Decoration string `json:"decoration,omitempty"`
}

// OptionByToken looks up an option by its stable token.
func (q *QuestionDefinition) OptionByToken(token string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Token == token {
			return opt, true
		}
	}
	return Option{}, false
}

// ButtonText renders the caption shown on an inline button.
func (o Option) ButtonText() string {
	if o.Decoration != "" {
		return o.Decoration + " " + o.Label
	}
	return o.Label
}
