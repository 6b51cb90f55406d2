// internal/bot/flow/validate.go
package flow

import (
	"strconv"
	"strings"
	"unicode/utf8"

	stderrors "intake-bot/internal/common/errors"
)

// validateText checks a free-text answer. A rejection leaves state untouched;
// the returned error carries the hint shown to the user.
func (h *Handler) validateText(stepID, text string) (string, *stderrors.StandardError) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", stderrors.NewAnswerValidationFailedError(stepID, h.config.EmptyTextHint)
	}
	if utf8.RuneCountInString(trimmed) > h.config.MaxTextLength {
		hint := renderTemplate(h.config.TextTooLongHint, map[string]string{
			"max": strconv.Itoa(h.config.MaxTextLength),
		})
		return "", stderrors.NewAnswerValidationFailedError(stepID, hint)
	}
	return trimmed, nil
}

// renderTemplate substitutes {{key}} placeholders.
func renderTemplate(template string, values map[string]string) string {
	out := template
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
