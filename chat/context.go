package chat

import (
	"encoding/json"
	"fmt"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
)

// SessionContext is the structured snapshot injected into the model's
// system instruction to ground its responses. It is captured once at
// session creation.
type SessionContext struct {
	BusinessName string          `json:"businessName"`
	Website      *WebsiteContext `json:"website,omitempty"`
}

// WebsiteContext snapshots the website's published sections.
type WebsiteContext struct {
	ID      string                     `json:"id"`
	Title   string                     `json:"title"`
	URL     string                     `json:"url,omitempty"`
	Content map[string]json.RawMessage `json:"content"`
}

func buildSessionContext(client *domain.ClientProfile, website *domain.Website, sections []domain.WebsiteContent) ([]byte, error) {
	sessionCtx := SessionContext{BusinessName: client.BusinessName}
	if website != nil {
		content := make(map[string]json.RawMessage, len(sections))
		for _, section := range sections {
			content[section.Section] = section.Content
		}
		sessionCtx.Website = &WebsiteContext{
			ID:      website.ID,
			Title:   website.Title,
			URL:     website.URL,
			Content: content,
		}
	}
	return json.Marshal(sessionCtx)
}

// systemInstruction assembles the system prompt from the session's
// context blob. The envelope format here must match what the intent
// extractor parses.
func systemInstruction(sessionCtx json.RawMessage) string {
	contextJSON := "{}"
	if len(sessionCtx) > 0 {
		var pretty map[string]interface{}
		if err := json.Unmarshal(sessionCtx, &pretty); err == nil {
			if b, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				contextJSON = string(b)
			}
		}
	}

	return fmt.Sprintf(`You are a helpful AI assistant for the Local Pro Sites platform. You help clients with their managed website.

Context:
%s

Your tasks:
1. Answer questions about the website
2. Process change requests for website content
3. Explain processes
4. Escalate complex requests to support

When a client asks for a change (such as opening hours, text, contact info), analyze the request and respond with structured output.

For change requests, format your entire answer as a single JSON object:
{
  "intent": {
    "type": "hours_update" | "content_change" | "logo_update" | "contact_info" | "general_query",
    "section": "hero" | "about" | "services" | "contact" | etc,
    "newContent": { ... },
    "autoApprovable": boolean,
    "priority": "low" | "medium" | "high",
    "description": "description of the change"
  },
  "response": "Your answer to the client"
}

For general questions, answer in plain text without any JSON structure.

Be friendly and professional.`, contextJSON)
}
