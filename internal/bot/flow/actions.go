// internal/bot/flow/actions.go
package flow

import (
	"fmt"
	"strings"
)

// Callback payload prefixes. The step id rides in the payload so stale
// presses on an old keyboard can be detected against the live state.
const (
	prefixAnswer  = "ans"
	prefixConfirm = "cnf"
	prefixDone    = "done"
	prefixStart   = "start"
)

func EncodeAnswer(stepID, token string) string {
	return fmt.Sprintf("%s:%s:%s", prefixAnswer, stepID, token)
}

func EncodeConfirm(stepID string) string {
	return fmt.Sprintf("%s:%s", prefixConfirm, stepID)
}

func EncodeDone(stepID string) string {
	return fmt.Sprintf("%s:%s", prefixDone, stepID)
}

func EncodeStart() string {
	return prefixStart
}

// ParseAction decodes a callback payload into an Action. Unknown or
// malformed payloads return false and are dropped by the caller.
func ParseAction(data string) (Action, bool) {
	parts := strings.SplitN(data, ":", 3)
	switch parts[0] {
	case prefixStart:
		return Action{Kind: ActionStart}, true
	case prefixAnswer:
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return Action{}, false
		}
		return Action{Kind: ActionAnswer, StepID: parts[1], Token: parts[2]}, true
	case prefixConfirm:
		if len(parts) != 2 || parts[1] == "" {
			return Action{}, false
		}
		return Action{Kind: ActionConfirm, StepID: parts[1]}, true
	case prefixDone:
		if len(parts) != 2 || parts[1] == "" {
			return Action{}, false
		}
		return Action{Kind: ActionDone, StepID: parts[1]}, true
	}
	return Action{}, false
}
