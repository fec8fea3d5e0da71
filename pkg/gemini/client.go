// Package gemini writes narrative activity digests with Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash-lite"

// Summary is the model's digest of an activity window.
type Summary struct {
	Headline   string   `json:"headline"`
	Narrative  string   `json:"narrative"`
	Highlights []string `json:"highlights"`
	Confidence string   `json:"confidence"` // "high", "medium", or "low"
}

// Client represents a Gemini API client.
type Client struct {
	cache      Cache
	logger     Logger
	apiKey     string
	model      string
	gcpProject string
}

// NewClient creates a client. With no API key it uses Vertex AI with
// application default credentials. cache may be nil.
func NewClient(apiKey, model, gcpProject string, cache Cache, logger Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:     apiKey,
		model:      strings.TrimPrefix(model, "models/"),
		gcpProject: gcpProject,
		cache:      cache,
		logger:     logger,
	}
}

// Summarize asks the model for a digest of a.
func (c *Client) Summarize(ctx context.Context, a Activity) (*Summary, error) {
	prompt := BuildPrompt(a)
	if cached := c.checkCache(prompt); cached != nil {
		return cached, nil
	}

	client, err := c.createClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  1500,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}

	var resp *genai.GenerateContentResponse
	err = retry.Do(
		func() error {
			var callErr error
			resp, callErr = client.Models.GenerateContent(ctx, c.model, contents, config)
			if callErr != nil && !isTransientError(callErr) {
				return retry.Unrecoverable(callErr)
			}
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying Gemini API call", "attempt", n+1, "error", err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	summary, raw, err := parseResponse(resp)
	if err != nil {
		c.logger.Warn("failed to parse Gemini response", "error", err)
		return nil, err
	}
	c.logger.Debug("Gemini summary received", "headline", summary.Headline, "confidence", summary.Confidence)

	if c.cache != nil {
		if err := c.cache.SetAPICall(c.cacheKey(), []byte(prompt), raw); err != nil {
			c.logger.Debug("failed to cache Gemini response", "error", err)
		}
	}
	return summary, nil
}

func (c *Client) cacheKey() string {
	return "genai:" + c.model
}

func (c *Client) checkCache(prompt string) *Summary {
	if c.cache == nil {
		return nil
	}
	data, found := c.cache.APICall(c.cacheKey(), []byte(prompt))
	if !found {
		return nil
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil || s.Narrative == "" {
		c.logger.Debug("ignoring unusable cached Gemini response", "error", err)
		return nil
	}
	c.logger.Debug("Gemini cache hit", "headline", s.Headline)
	return &s
}

func (c *Client) createClient(ctx context.Context) (*genai.Client, error) {
	var config *genai.ClientConfig
	if c.apiKey != "" {
		config = &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  c.apiKey,
		}
		c.logger.Info("using Gemini API with API key")
	} else {
		projectID := c.projectID()
		if projectID == "" {
			return nil, errors.New("no Gemini API key and no GCP project configured")
		}
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  projectID,
			Location: "us-central1",
		}
		c.logger.Info("using Vertex AI with Application Default Credentials", "project", projectID)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func (c *Client) projectID() string {
	if c.gcpProject != "" {
		return c.gcpProject
	}
	if id := os.Getenv("GCP_PROJECT"); id != "" {
		return id
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"headline": {
				Type:        genai.TypeString,
				Description: "One sentence summary of the window, under 100 characters",
			},
			"narrative": {
				Type:        genai.TypeString,
				Description: "Two to four sentences describing tap and sleep patterns in plain language",
			},
			"highlights": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Notable observations, such as long bouts or timezone changes",
			},
			"confidence": {
				Type:        genai.TypeString,
				Enum:        []string{"high", "medium", "low"},
				Description: "How much data supports the digest: high, medium, or low",
			},
		},
		PropertyOrdering: []string{"headline", "narrative", "highlights", "confidence"},
		Required:         []string{"headline", "narrative", "confidence"},
	}
}

func isTransientError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"internal server error", "502", "503", "504",
	} {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

// parseResponse returns the decoded summary and its normalized JSON.
func parseResponse(resp *genai.GenerateContentResponse) (*Summary, []byte, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, nil, errors.New("empty response from Gemini API")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, nil, errors.New("no content in Gemini response")
	}
	text := candidate.Content.Parts[0].Text
	if text == "" {
		return nil, nil, errors.New("empty text in Gemini response")
	}

	jsonText, err := extractJSON(text)
	if err != nil {
		return nil, nil, err
	}
	var s Summary
	if err := json.Unmarshal([]byte(jsonText), &s); err != nil {
		return nil, nil, fmt.Errorf("failed to parse Gemini JSON response: %w", err)
	}

	s.Headline = clean(s.Headline)
	s.Narrative = clean(s.Narrative)
	for i := range s.Highlights {
		s.Highlights[i] = clean(s.Highlights[i])
	}
	if s.Narrative == "" {
		return nil, nil, errors.New("gemini response missing narrative")
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding summary: %w", err)
	}
	return &s, raw, nil
}

// extractJSON finds the JSON object in text that may be wrapped in a code
// fence or prose.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if isValidJSON(text) {
		return text, nil
	}

	for _, fence := range []string{"```json", "```"} {
		if start := strings.Index(text, fence); start != -1 {
			start += len(fence)
			if end := strings.Index(text[start:], "```"); end != -1 {
				if candidate := strings.TrimSpace(text[start : start+end]); isValidJSON(candidate) {
					return candidate, nil
				}
			}
		}
	}

	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			if candidate := text[start : end+1]; isValidJSON(candidate) {
				return candidate, nil
			}
		}
	}
	return "", errors.New("no valid JSON found in response")
}

func isValidJSON(s string) bool {
	var js map[string]any
	return json.Unmarshal([]byte(s), &js) == nil
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
