package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/zapsend/zapsend/internal/config"
)

const suggestionCount = 3

const promptTemplate = "You are an expert email marketer. Given the following email content, " +
	"suggest 3 creative and compelling subject lines that are likely to result in higher open rates. " +
	"Ensure the subjects are concise and engaging. Return one subject line per line, nothing else.\n\n" +
	"Email Content:\n%s\n\nSubject Lines:"

// Gemini talks to the Google Generative Language REST API. Requests
// are best-effort: no retries, a failure surfaces as a single error.
type Gemini struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

// NewGemini builds a client from the suggestion config.
func NewGemini(cfg config.SuggestConfig) *Gemini {
	return &Gemini{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Suggest asks the model for subject lines and normalizes the reply
// into exactly three entries.
func (g *Gemini) Suggest(ctx context.Context, emailContent string) ([]string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, emailContent)}}}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode suggestion request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build suggestion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggestion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestion response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return nil, fmt.Errorf("suggestion service returned %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("suggestion service returned %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("suggestion service returned no candidates")
	}

	lines := extractLines(parsed.Candidates[0].Content.Parts[0].Text)
	if len(lines) < suggestionCount {
		return nil, fmt.Errorf("expected %d subject lines, got %d", suggestionCount, len(lines))
	}
	return lines[:suggestionCount], nil
}

// listMarker strips leading numbering or bullets like "1.", "2)", "-"
// or "*".
var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

func extractLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
