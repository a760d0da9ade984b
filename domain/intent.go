package domain

import (
	"encoding/json"
	"fmt"
)

// Intent is the structured classification of a user's request, as
// produced by the completion model. Field values are untrusted until
// Normalize has run.
type Intent struct {
	Type           IntentType      `json:"type"`
	Section        string          `json:"section,omitempty"`
	NewContent     json.RawMessage `json:"newContent,omitempty"`
	AutoApprovable bool            `json:"autoApprovable"`
	Priority       Priority        `json:"priority"`
	Description    string          `json:"description"`
}

// CompletionEnvelope is the JSON shape the model emits for change
// requests. Ordinary answers are plain text with no envelope.
type CompletionEnvelope struct {
	Intent   *Intent `json:"intent"`
	Response string  `json:"response"`
}

// Normalize validates the model-supplied fields against the closed
// enums and coerces anything unknown to a safe value. It returns a
// description of each anomaly found so callers can log them; the
// conversation itself must never fail on malformed model output.
func (in *Intent) Normalize() []string {
	var anomalies []string

	if !KnownIntentTypes[in.Type] {
		anomalies = append(anomalies, fmt.Sprintf("unknown intent type %q, treating as general query", in.Type))
		in.Type = IntentGeneralQuery
	}

	switch in.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	case "":
		in.Priority = PriorityMedium
	default:
		anomalies = append(anomalies, fmt.Sprintf("unknown priority %q, defaulting to medium", in.Priority))
		in.Priority = PriorityMedium
	}

	// A change intent with no payload has nothing to apply or review.
	if in.Type != IntentGeneralQuery && len(in.NewContent) == 0 {
		anomalies = append(anomalies, fmt.Sprintf("intent %q carries no new content, treating as general query", in.Type))
		in.Type = IntentGeneralQuery
	}

	return anomalies
}
