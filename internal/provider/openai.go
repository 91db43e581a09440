package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/auralane/render-service/internal/audio"
	"github.com/auralane/render-service/internal/config"
	"github.com/auralane/render-service/internal/model"
)

// NameOpenAI is the registry key for the OpenAI adapter.
const NameOpenAI = "openai"

const defaultOpenAIModel = "gpt-4o-mini-tts"

// OpenAIClient synthesizes speech via the OpenAI audio/speech endpoint.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// NewOpenAIClient creates a new OpenAI TTS client.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// Synthesize requests WAV speech audio for the script.
func (c *OpenAIClient) Synthesize(ctx context.Context, script string, voice model.VoiceSelection) (*audio.Asset, error) {
	reqBody := openAISpeechRequest{
		Model:          defaultOpenAIModel,
		Input:          script,
		Voice:          voice.VoiceID,
		ResponseFormat: "wav",
	}
	if s := voice.Settings; s != nil {
		if s.Model != "" {
			reqBody.Model = s.Model
		}
		if s.Speed != nil {
			reqBody.Speed = *s.Speed
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/v1/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[openai] → POST %s (voice=%s, %d chars)", url, voice.VoiceID, len(script))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProvider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[openai] ← %d (voice=%s) — %s", resp.StatusCode, voice.VoiceID, truncate(string(data), 300))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, truncate(string(data), 300))
	}

	log.Printf("[openai] ← %d (voice=%s) — %d bytes of WAV", resp.StatusCode, voice.VoiceID, len(data))

	asset, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable audio payload: %v", ErrProvider, err)
	}
	return asset, nil
}

// IsConfigured returns true if the client has an API key.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}
