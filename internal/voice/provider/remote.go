package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const remoteTTSEndpoint = "/tts"

// RemoteProvider synthesizes through the app backend, which answers POST /tts
// with raw audio bytes.
type RemoteProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteProvider creates a provider for the backend at baseURL
func NewRemoteProvider(baseURL, apiKey string) *RemoteProvider {
	return &RemoteProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type remoteTTSRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// Name returns the provider name
func (p *RemoteProvider) Name() string {
	return "remote"
}

// ListVoices returns the voice chosen by the backend for each locale
func (p *RemoteProvider) ListVoices(ctx context.Context, locale string) ([]Voice, error) {
	locales := []string{"zh-CN", "en-US", "ja-JP"}
	if locale != "" {
		locales = []string{locale}
	}
	voices := make([]Voice, 0, len(locales))
	for _, l := range locales {
		voices = append(voices, Voice{ID: "default", Name: "Backend default", Language: l, Description: "Voice selected by the server"})
	}
	return voices, nil
}

// Synthesize posts text to the backend
func (p *RemoteProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if p.baseURL == "" {
		return nil, fmt.Errorf("backend URL is not configured")
	}

	body, err := json.Marshal(remoteTTSRequest{
		Text:     text,
		Voice:    options.Voice,
		Language: options.Locale,
		Speed:    options.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+remoteTTSEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("backend TTS error: status %d, body: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	log.Debug().Str("content_type", resp.Header.Get("Content-Type")).Msg("Backend synthesis successful")
	return resp.Body, nil
}

// IsAvailable checks if the backend answers at all
func (p *RemoteProvider) IsAvailable(ctx context.Context) bool {
	if p.baseURL == "" {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, p.baseURL+remoteTTSEndpoint, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("Backend availability check failed")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
