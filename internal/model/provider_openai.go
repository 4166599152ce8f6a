// provider_openai.go — concrete Provider (§4.3) talking to an
// OpenAI-compatible chat-completions endpoint, trimmed to this engine's
// two-method Provider interface: no tracing spans, alias resolution, or
// reasoning-model token multipliers.
package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAIProvider implements Provider against /chat/completions. A
// separate VisionModel/VisionEndpoint pair lets CompleteVision target a
// distinct multimodal-capable deployment, matching §6's
// VISION_MODEL/VISION_MODEL_ENDPOINT variables.
type OpenAIProvider struct {
	httpClient     *http.Client
	apiURL         string
	apiKey         string
	orgID          string
	model          string
	visionModel    string
	visionEndpoint string
	maxTokens      int
	temperature    float64
}

// OpenAIProviderConfig configures NewOpenAIProvider.
type OpenAIProviderConfig struct {
	APIURL         string
	APIKey         string
	OrgID          string
	Model          string
	VisionModel    string
	VisionEndpoint string
	MaxTokens      int
	Temperature    float64
	HTTPClient     *http.Client
}

// NewOpenAIProvider constructs an OpenAIProvider. A nil HTTPClient gets
// a client with defaultTimeout.
func NewOpenAIProvider(cfg OpenAIProviderConfig) *OpenAIProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	endpoint := cfg.VisionEndpoint
	if endpoint == "" {
		endpoint = cfg.APIURL
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &OpenAIProvider{
		httpClient:     client,
		apiURL:         cfg.APIURL,
		apiKey:         cfg.APIKey,
		orgID:          cfg.OrgID,
		model:          cfg.Model,
		visionModel:    visionModel,
		visionEndpoint: endpoint,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type imageContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// Complete issues a text-only chat completion against apiURL.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (Response, error) {
	messages := []chatMessage{}
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})
	return p.do(ctx, p.apiURL, p.model, messages, maxTokens, temperature)
}

// CompleteVision issues a chat completion with an inline base64 image,
// against visionEndpoint/visionModel.
func (p *OpenAIProvider) CompleteVision(ctx context.Context, imageBytes []byte, systemPrompt, userPrompt string) (Response, error) {
	messages := []chatMessage{}
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	content := []imageContentPart{
		{Type: "text", Text: userPrompt},
		{Type: "image_url", ImageURL: &struct {
			URL string `json:"url"`
		}{URL: "data:image/png;base64," + encoded}},
	}
	messages = append(messages, chatMessage{Role: "user", Content: content})
	return p.do(ctx, p.visionEndpoint, p.visionModel, messages, p.maxTokens, p.temperature)
}

func (p *OpenAIProvider) do(ctx context.Context, baseURL, model string, messages []chatMessage, maxTokens int, temperature float64) (Response, error) {
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	reqBody := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, fmt.Errorf("model: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("model: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.orgID != "" {
		req.Header.Set("OpenAI-Organization", p.orgID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("model: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("model: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &ProviderError{StatusCode: resp.StatusCode, Provider: "openai", Message: string(body)}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Response{}, fmt.Errorf("model: parse response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("model: provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("model: empty choices in response")
	}

	return Response{
		Text: parsed.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
