package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
)

// ErrReasoningUnavailable covers network failures, timeouts, and non-2xx
// replies from the reasoning service. Callers recover via the deterministic
// fallback; this error never reaches API clients.
var ErrReasoningUnavailable = errors.New("reasoning service unavailable")

const (
	reasoningAPI            = "https://generativelanguage.googleapis.com/v1beta/models/gemini-3-pro-preview:generateContent"
	defaultReasoningTimeout = 15 * time.Second
)

// ReasoningRequest is one prompt sent to the reasoning service
type ReasoningRequest struct {
	SystemContext string
	Prompt        string
	Temperature   float64
	MaxTokens     int
}

// ReasoningClient is the minimal surface the engine needs from the external
// reasoning service: one prompt in, free text out
type ReasoningClient interface {
	Complete(ctx context.Context, req ReasoningRequest) (string, error)
}

// GeminiReasoningClient calls the Gemini generation API directly via HTTP
type GeminiReasoningClient struct {
	geminiClient *genai.Client
	apiKey       string
	endpoint     string
	httpClient   *http.Client
}

// GeminiOption is a functional option for GeminiReasoningClient
type GeminiOption func(*GeminiReasoningClient)

// GeminiWithClient sets the genai client used for SDK-level operations
func GeminiWithClient(client *genai.Client) GeminiOption {
	return func(c *GeminiReasoningClient) {
		c.geminiClient = client
	}
}

// GeminiWithAPIKey sets the API key; defaults to GEMINI_API_KEY
func GeminiWithAPIKey(key string) GeminiOption {
	return func(c *GeminiReasoningClient) {
		c.apiKey = key
	}
}

// GeminiWithEndpoint overrides the generation endpoint
func GeminiWithEndpoint(endpoint string) GeminiOption {
	return func(c *GeminiReasoningClient) {
		c.endpoint = endpoint
	}
}

// GeminiWithHTTPClient overrides the HTTP client
func GeminiWithHTTPClient(client *http.Client) GeminiOption {
	return func(c *GeminiReasoningClient) {
		c.httpClient = client
	}
}

// NewGeminiReasoningClient creates a Gemini-backed reasoning client
func NewGeminiReasoningClient(opts ...GeminiOption) *GeminiReasoningClient {
	c := &GeminiReasoningClient{
		endpoint:   reasoningAPI,
		httpClient: &http.Client{Timeout: defaultReasoningTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one prompt to the generation API and returns the reply text.
// All transport and decode failures are wrapped in ErrReasoningUnavailable.
func (c *GeminiReasoningClient) Complete(ctx context.Context, req ReasoningRequest) (string, error) {
	apiKey := c.apiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY not set", ErrReasoningUnavailable)
	}

	fullPrompt := req.Prompt
	if req.SystemContext != "" {
		fullPrompt = req.SystemContext + "\n\n" + req.Prompt
	}

	generationConfig := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": fullPrompt},
				},
			},
		},
		"generationConfig": generationConfig,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReasoningUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Printf("Reasoning API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return "", fmt.Errorf("%w: status %d", ErrReasoningUnavailable, resp.StatusCode)
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason,omitempty"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason,omitempty"`
		} `json:"promptFeedback,omitempty"`
		Error struct {
			Code    int    `json:"code,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"error,omitempty"`
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		log.Printf("Failed to decode reasoning response. Body: %s", string(bodyBytes))
		return "", fmt.Errorf("%w: undecodable response", ErrReasoningUnavailable)
	}

	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("%w: %s (code: %d)", ErrReasoningUnavailable, apiResp.Error.Message, apiResp.Error.Code)
	}

	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", ErrReasoningUnavailable, apiResp.PromptFeedback.BlockReason)
	}

	if len(apiResp.Candidates) == 0 {
		log.Printf("Reasoning API returned no candidates. Full response: %s", string(bodyBytes))
		return "", fmt.Errorf("%w: no candidates", ErrReasoningUnavailable)
	}

	var responseText strings.Builder
	for i, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	result := responseText.String()
	if result == "" {
		return "", fmt.Errorf("%w: empty content", ErrReasoningUnavailable)
	}

	return result, nil
}
