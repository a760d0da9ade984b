// Package intent turns raw model completions into structured change
// intents.
package intent

import (
	"encoding/json"
	"strings"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// Extract attempts a strict parse of the entire completion as the
// intent envelope. It returns the intent (nil when the completion is an
// ordinary answer) and the text to show the user: the envelope's
// response field when an intent is present, otherwise the raw
// completion verbatim. Parse failures are not errors; model output
// format is not guaranteed.
func Extract(raw string) (*domain.Intent, string) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, raw
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var envelope domain.CompletionEnvelope
	if err := dec.Decode(&envelope); err != nil {
		return nil, raw
	}
	// Trailing content after the object means the completion was not a
	// single JSON envelope.
	if dec.More() {
		return nil, raw
	}
	if envelope.Intent == nil {
		return nil, raw
	}

	return envelope.Intent, envelope.Response
}
