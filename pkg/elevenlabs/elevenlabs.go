package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const baseURL = "https://api.elevenlabs.io/v1"

type ISynthesizer interface {
	SynthesizeClone(ctx context.Context, text string, voiceID string) ([]byte, error)
	SynthesizeDefault(ctx context.Context, text string) ([]byte, error)
}

type ttsClient struct {
	apiKey         string
	defaultVoiceID string
	modelID        string
	httpClient     *http.Client
}

func New() ISynthesizer {
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	}

	modelID := os.Getenv("ELEVENLABS_MODEL")
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}

	return &ttsClient{
		apiKey:         os.Getenv("ELEVENLABS_API_KEY"),
		defaultVoiceID: voiceID,
		modelID:        modelID,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SynthesizeClone renders text with a cloned persona voice.
func (t *ttsClient) SynthesizeClone(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if voiceID == "" {
		return nil, fmt.Errorf("no voice clone configured")
	}
	return t.synthesize(ctx, text, voiceID)
}

// SynthesizeDefault renders text with the configured default voice.
func (t *ttsClient) SynthesizeDefault(ctx context.Context, text string) ([]byte, error) {
	return t.synthesize(ctx, text, t.defaultVoiceID)
}

func (t *ttsClient) synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("ElevenLabs API key not configured")
	}

	url := baseURL + "/text-to-speech/" + voiceID

	requestBody := map[string]interface{}{
		"text":     text,
		"model_id": t.modelID,
		"voice_settings": map[string]interface{}{
			"stability":         0.5,
			"similarity_boost":  0.8,
			"style":             0.0,
			"use_speaker_boost": true,
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ElevenLabs API error: %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned empty audio")
	}

	return audio, nil
}
