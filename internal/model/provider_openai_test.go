package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderCompleteParsesUsageAndContent(t *testing.T) {
	var gotBody chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "hello there"}}},
			Usage: struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
				TotalTokens      int `json:"total_tokens"`
			}{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIProviderConfig{
		APIURL: server.URL,
		APIKey: "test-key",
		Model:  "gpt-4o-mini",
	})

	resp, err := p.Complete(context.Background(), "system", "user prompt", 100, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
}

func TestOpenAIProviderCompleteReturnsProviderErrorOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIProviderConfig{APIURL: server.URL, APIKey: "k", Model: "m"})
	_, err := p.Complete(context.Background(), "", "hi", 10, 0)
	require.Error(t, err)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, http.StatusTooManyRequests, pErr.StatusCode)
	assert.True(t, pErr.Retryable())
}

func TestOpenAIProviderCompleteVisionEncodesImageAndUsesVisionEndpoint(t *testing.T) {
	var hitVisionPath bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hitVisionPath = true
		var body chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "vision-model", body.Model)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "described"}}},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIProviderConfig{
		APIURL:         "https://unused.invalid",
		VisionEndpoint: server.URL,
		VisionModel:    "vision-model",
		APIKey:         "k",
		Model:          "text-model",
	})

	resp, err := p.CompleteVision(context.Background(), []byte{0x01, 0x02}, "sys", "describe this")
	require.NoError(t, err)
	assert.True(t, hitVisionPath)
	assert.Equal(t, "described", resp.Text)
}
