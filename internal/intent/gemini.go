package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/framehound/framehound/internal/match"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent"

const geminiPrompt = `You extract computer-vision detection intents from natural language.
Respond ONLY with a JSON object shaped like {"pairs": [{"object": "car", "color": "red"}]}.
Use lowercase singular nouns (e.g., "person", "car", "laptop"). Set "color" to null when no color is requested. Omit unrelated words.
User request: %q
JSON response:`

// jsonBlob pulls the first {...} span out of a model reply that may be
// wrapped in prose or markdown fences.
var jsonBlob = regexp.MustCompile(`\{[\s\S]*\}`)

// GeminiClient calls the Gemini REST API to extract detection intents.
type GeminiClient struct {
	BaseURL string
	APIKey  string

	HTTP *http.Client
}

// NewGeminiClient builds a client for the given API key.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		BaseURL: geminiEndpoint,
		APIKey:  apiKey,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Extract asks the model for object/color pairs. Any transport, status,
// or parse problem comes back as an error; the caller falls back to the
// local parser.
func (c *GeminiClient) Extract(ctx context.Context, query string) ([]match.Query, error) {
	body := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: fmt.Sprintf(geminiPrompt, query)}},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("parse gemini envelope: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return parsePairsReply(parsed.Candidates[0].Content.Parts[0].Text)
}

// parsePairsReply decodes the model's JSON reply into queries, dropping
// entries without an object.
func parsePairsReply(text string) ([]match.Query, error) {
	blob := jsonBlob.FindString(text)
	if blob == "" {
		return nil, fmt.Errorf("no JSON object in gemini reply")
	}

	var reply struct {
		Pairs []struct {
			Object string  `json:"object"`
			Color  *string `json:"color"`
		} `json:"pairs"`
	}
	if err := json.Unmarshal([]byte(blob), &reply); err != nil {
		return nil, fmt.Errorf("decode gemini intent JSON: %w", err)
	}

	var pairs []match.Query
	for _, p := range reply.Pairs {
		obj := strings.TrimSpace(strings.ToLower(p.Object))
		if obj == "" {
			continue
		}
		q := match.Query{Object: obj}
		if p.Color != nil {
			q.Color = strings.TrimSpace(strings.ToLower(*p.Color))
		}
		pairs = append(pairs, q)
	}
	return pairs, nil
}
