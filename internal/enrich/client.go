// Package enrich calls an OpenAI-compatible chat-completions endpoint
// to derive contextual metadata from episode text.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modulr-studio/modulr/internal/model"
)

// Analyzer is the collaborator interface the ingestion pipeline and
// the analyze endpoint depend on.
type Analyzer interface {
	Analyze(ctx context.Context, text, title string) (*Analysis, error)
}

// Analysis is the fixed-shape result of one enrichment call.
type Analysis struct {
	Summary            string   `json:"summary"`
	Topics             []string `json:"topics"`
	Entities           []string `json:"entities"`
	Tone               string   `json:"tone"`
	Sentiment          string   `json:"sentiment"`
	BrandSafetyScore   float64  `json:"brand_safety_score"`
	IABCategories      []string `json:"iab_categories"`
	ContextualSegments []string `json:"contextual_segments"`
}

// Metadata converts the analysis into the episode's stored shape.
func (a *Analysis) Metadata() *model.EnrichedMetadata {
	return &model.EnrichedMetadata{
		Summary:            a.Summary,
		Topics:             a.Topics,
		Entities:           a.Entities,
		Tone:               a.Tone,
		Sentiment:          a.Sentiment,
		BrandSafetyScore:   a.BrandSafetyScore,
		IABCategories:      a.IABCategories,
		ContextualSegments: a.ContextualSegments,
	}
}

// Client talks to the chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	httpClient *http.Client
}

// NewClient creates an enrichment client. baseURL defaults to the
// public OpenAI endpoint, chatModel to gpt-4o.
func NewClient(baseURL, apiKey, chatModel string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if chatModel == "" {
		chatModel = "gpt-4o"
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		chatModel: chatModel,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

const systemPrompt = "You are a precise contextual classifier for audio content. " +
	"Always return valid JSON without markdown formatting."

const promptTemplate = `You are a contextual intelligence engine for podcast and audio content analysis.

Analyze the following podcast episode content and return a JSON object with the following structure:
{
  "summary": "A concise 2-3 sentence summary of the episode content",
  "topics": ["topic1", "topic2", "topic3"],
  "entities": ["entity1", "entity2", "entity3"],
  "tone": "professional|casual|conversational|educational|entertaining",
  "sentiment": "positive|neutral|negative",
  "brand_safety_score": 0-10,
  "iab_categories": ["IAB1", "IAB2", "IAB3"],
  "contextual_segments": ["segment1", "segment2", "segment3"]
}

Guidelines:
- topics: Extract 5-10 main topics discussed (be specific)
- entities: Extract 5-10 key people, places, brands, or organizations mentioned
- tone: Choose the primary tone from the options above
- sentiment: Assess overall sentiment of the content
- brand_safety_score: Rate 0-10 where 10 is completely brand-safe (no profanity, violence, controversial content)
- iab_categories: Use IAB Content Taxonomy 2.0 categories (e.g., "IAB1" for Arts & Entertainment, "IAB2" for Automotive, etc.)
- contextual_segments: Identify 3-5 specific contextual segments that would be valuable for advertisers (e.g., "tech-savvy professionals", "health & wellness enthusiasts")

%sContent to analyze:
%s`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze runs one enrichment call over the given text. The call is
// retried a bounded number of times on rate limiting; a final failure
// is the caller's to isolate or propagate.
func (c *Client) Analyze(ctx context.Context, text, title string) (*Analysis, error) {
	titleLine := ""
	if title != "" {
		titleLine = "Episode Title: " + title + "\n\n"
	}
	body, err := json.Marshal(chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, titleLine, text)},
		},
		Temperature:    0.3,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	const maxAttempts = 3
	var resp *http.Response
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("enrichment request: %w", err)
		}
		// A final-attempt 429 falls through with its body intact so the
		// error below can report the response text.
		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxAttempts-1 {
			break
		}
		resp.Body.Close()
		select {
		case <-time.After(time.Duration(2<<uint(attempt)) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("enrichment API status %d: %s", resp.StatusCode, msg)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode enrichment response: %w", err)
	}
	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty enrichment response")
	}
	return parseAnalysis(chat.Choices[0].Message.Content)
}

// parseAnalysis decodes and validates the model's JSON payload.
// brand_safety_score is mandatory and range-checked; list fields
// default to empty and tone/sentiment to "neutral".
func parseAnalysis(content string) (*Analysis, error) {
	var raw struct {
		Summary            string   `json:"summary"`
		Topics             []string `json:"topics"`
		Entities           []string `json:"entities"`
		Tone               string   `json:"tone"`
		Sentiment          string   `json:"sentiment"`
		BrandSafetyScore   *float64 `json:"brand_safety_score"`
		IABCategories      []string `json:"iab_categories"`
		ContextualSegments []string `json:"contextual_segments"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse enrichment payload: %w", err)
	}
	if raw.BrandSafetyScore == nil || *raw.BrandSafetyScore < 0 || *raw.BrandSafetyScore > 10 {
		return nil, fmt.Errorf("invalid brand_safety_score in enrichment payload")
	}
	a := &Analysis{
		Summary:            raw.Summary,
		Topics:             emptyIfNil(raw.Topics),
		Entities:           emptyIfNil(raw.Entities),
		Tone:               defaultNeutral(raw.Tone),
		Sentiment:          defaultNeutral(raw.Sentiment),
		BrandSafetyScore:   *raw.BrandSafetyScore,
		IABCategories:      emptyIfNil(raw.IABCategories),
		ContextualSegments: emptyIfNil(raw.ContextualSegments),
	}
	return a, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func defaultNeutral(s string) string {
	if s == "" {
		return model.SentimentNeutral
	}
	return s
}
