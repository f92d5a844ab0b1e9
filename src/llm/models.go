package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

const maxModelPages = 10

type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

type listModelsResponse struct {
	Models        []Model          `json:"models"`
	NextPageToken string           `json:"nextPageToken"`
	Error         *json.RawMessage `json:"error,omitempty"`
}

// ListModels returns the ids of Gemini models that support generateContent,
// with the "models/" prefix stripped.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var all []Model
	pageToken := ""
	for page := 0; page < maxModelPages; page++ {
		q := url.Values{}
		q.Set("key", c.apiKey)
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/models?%s", c.baseURL, q.Encode())

		var resp listModelsResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		if resp.Error != nil && string(*resp.Error) != "null" {
			return nil, parseAPIError(*resp.Error)
		}
		all = append(all, resp.Models...)
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return FilterModels(all), nil
}

// FilterModels keeps models that support generateContent and whose name mentions gemini.
func FilterModels(models []Model) []string {
	out := []string{}
	for _, m := range models {
		if !strings.Contains(m.Name, "gemini") || !slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		out = append(out, strings.ReplaceAll(m.Name, "models/", ""))
	}
	return out
}
