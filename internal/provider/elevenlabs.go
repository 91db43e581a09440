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

// NameElevenLabs is the registry key for the ElevenLabs adapter.
const NameElevenLabs = "elevenlabs"

// elevenLabsSampleRate matches the pcm_44100 output format requested from
// the API: headerless 16-bit mono PCM.
const elevenLabsSampleRate = 44100

const defaultElevenLabsModel = "eleven_multilingual_v2"

// ElevenLabsClient synthesizes speech via the ElevenLabs API.
type ElevenLabsClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type elevenLabsVoiceSettings struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client.
func NewElevenLabsClient(cfg *config.ElevenLabsConfig) *ElevenLabsClient {
	return &ElevenLabsClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// Synthesize requests raw PCM speech audio for the script.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, script string, voice model.VoiceSelection) (*audio.Asset, error) {
	reqBody := elevenLabsRequest{
		Text:    script,
		ModelID: defaultElevenLabsModel,
	}
	if s := voice.Settings; s != nil {
		if s.Model != "" {
			reqBody.ModelID = s.Model
		}
		if s.Stability != nil || s.SimilarityBoost != nil || s.Speed != nil {
			reqBody.VoiceSettings = &elevenLabsVoiceSettings{
				Stability:       s.Stability,
				SimilarityBoost: s.SimilarityBoost,
				Speed:           s.Speed,
			}
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=pcm_44100", c.baseURL, voice.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	log.Printf("[elevenlabs] → POST %s (voice=%s, %d chars)", url, voice.VoiceID, len(script))

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
		log.Printf("[elevenlabs] ← %d (voice=%s) — %s", resp.StatusCode, voice.VoiceID, truncate(string(data), 300))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, truncate(string(data), 300))
	}

	log.Printf("[elevenlabs] ← %d (voice=%s) — %d bytes of PCM", resp.StatusCode, voice.VoiceID, len(data))

	return audio.DecodePCM16(data, elevenLabsSampleRate, 1), nil
}

// IsConfigured returns true if the client has an API key.
func (c *ElevenLabsClient) IsConfigured() bool {
	return c.apiKey != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
