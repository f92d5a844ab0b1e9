package llm

import (
	"context"
	"encoding/json"
	"strings"
)

const fixedTextField = "fixed_text"

// BuildPrompt wraps the clipboard text in the fixed correction instructions.
func BuildPrompt(preprompt, text string) string {
	return preprompt + " \n\n INSTRUCTIONS:\n" +
		"1. Fix typos and grammar.\n" +
		"2. STRICTLY PRESERVE all original newlines, paragraph breaks, and indentation.\n" +
		"3. Do NOT merge lines.\n\n" +
		"INPUT TEXT:\n```\n" + text + "\n```"
}

// NewFixRequest builds a generateContent request asking for a JSON object with a
// single string property fixed_text.
func NewFixRequest(preprompt, text string) GenerateRequest {
	return GenerateRequest{
		Contents: []Content{{Parts: []Part{{Text: BuildPrompt(preprompt, text)}}}},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: &Schema{
				Type: "object",
				Properties: map[string]Schema{
					fixedTextField: {Type: "string"},
				},
			},
		},
	}
}

// ExtractFixedText reads fixed_text from the model's JSON answer. Anything that
// is not a JSON object with a string fixed_text is returned unchanged.
func ExtractFixedText(candidate string) string {
	var inner map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &inner); err != nil {
		return candidate
	}
	raw, ok := inner[fixedTextField]
	if !ok {
		return candidate
	}
	var fixed *string
	if err := json.Unmarshal(raw, &fixed); err != nil || fixed == nil {
		return candidate
	}
	return *fixed
}

// NormalizeLineBreaks turns literal backslash-n sequences into line breaks and
// drops literal backslash-r sequences.
func NormalizeLineBreaks(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	return strings.ReplaceAll(s, `\r`, "")
}

// FixText runs one correction round trip and returns the post-processed text.
// An answer without candidates is ErrNoCandidate, not an empty fix.
func (c *Client) FixText(ctx context.Context, preprompt, text string) (string, error) {
	resp, err := c.GenerateContent(ctx, NewFixRequest(preprompt, text))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoCandidate
	}
	return NormalizeLineBreaks(ExtractFixedText(resp.Text())), nil
}
