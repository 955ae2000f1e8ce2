// Package extract turns an uploaded statement document into a structured
// payload via a document-understanding model call.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/flechilla/statements/internal/core"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// Extractor converts raw document bytes into a statement payload. The call
// is slow and unreliable; implementations do not retry, and errors are
// surfaced to the caller as-is.
type Extractor interface {
	Extract(ctx context.Context, file []byte, mimeType string) (core.StatementPayload, error)
}

// Gemini extracts statements by sending the document inline to a Gemini
// model with a strict-JSON prompt. An empty apiKey falls back to the
// environment (GEMINI_API_KEY / GOOGLE_API_KEY).
type Gemini struct {
	model  string
	apiKey string
}

func NewGemini(model, apiKey string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{model: model, apiKey: apiKey}
}

const extractionPrompt = `You are a credit card statement parser.

Task:
- Extract the statement period, bank name, card name, and the full list of
  transactions from the attached statement.
- Output STRICT JSON only (no comments, no trailing commas, no extra text).
- Output a single JSON object.

The object must have these fields:
- "statementPeriod": string (e.g. "January 1 - January 31, 2025")
- "bankName": string (e.g. "Chase", "Bank of America")
- "cardName": string (e.g. "Freedom Unlimited", "Sapphire Preferred")
- "transactions": array of objects, each with:
  - "date": string, "MM/DD/YYYY"
  - "description": string, the merchant or transaction description
  - "amount": number
  - "category": string (e.g. "Travel", "Food", "Office")

Return ONLY valid raw JSON.
Do NOT wrap the response in code fences.
Do NOT use ` + "```json" + ` or any Markdown.
Output must begin with "{" and end with "}".
`

func (g *Gemini) Extract(ctx context.Context, file []byte, mimeType string) (core.StatementPayload, error) {
	if len(file) == 0 {
		return core.StatementPayload{}, fmt.Errorf("extract statement: empty file")
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return core.StatementPayload{}, fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     file,
					},
				},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return core.StatementPayload{}, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return core.StatementPayload{}, fmt.Errorf("extract statement: empty response from model")
	}

	payload, err := decodePayload(cleanModelJSON(raw))
	if err != nil {
		return core.StatementPayload{}, fmt.Errorf("extract statement: %w", err)
	}
	return payload, nil
}

// decodePayload parses cleaned model output, applies the category default,
// and validates the result.
func decodePayload(s string) (core.StatementPayload, error) {
	var payload core.StatementPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return core.StatementPayload{}, fmt.Errorf("unmarshal model output: %w", err)
	}
	payload.ApplyDefaults()
	if err := payload.Validate(); err != nil {
		return core.StatementPayload{}, fmt.Errorf("model output invalid: %w", err)
	}
	return payload, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk the model may
// emit despite the prompt.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if junk remains around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
