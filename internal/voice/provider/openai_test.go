package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_Name(t *testing.T) {
	assert.Equal(t, "openai", NewOpenAIProvider("key", "", "").Name())
}

func TestOpenAIProvider_ListVoices(t *testing.T) {
	voices, err := NewOpenAIProvider("key", "", "").ListVoices(context.Background(), "ja-JP")
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, v := range voices {
		ids[v.ID] = true
	}
	for _, id := range []string{"alloy", "nova", "shimmer"} {
		assert.True(t, ids[id], id)
	}
}

func TestOpenAIProvider_Synthesize(t *testing.T) {
	t.Run("returns error for empty text", func(t *testing.T) {
		_, err := NewOpenAIProvider("key", "", "").Synthesize(context.Background(), "", SynthesizeOptions{})
		assert.ErrorContains(t, err, "text cannot be empty")
	})

	t.Run("successful synthesis", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.True(t, strings.HasSuffix(r.URL.Path, "/audio/speech"))
			assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "你好", body["input"])
			assert.Equal(t, "nova", body["voice"])
			assert.Equal(t, "tts-1", body["model"])
			assert.Equal(t, "mp3", body["response_format"])
			assert.InDelta(t, 0.5, body["speed"], 1e-9)

			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("mock audio data"))
		}))
		defer server.Close()

		p := NewOpenAIProvider("test-api-key", server.URL, "")
		reader, err := p.Synthesize(context.Background(), "你好", SynthesizeOptions{Locale: "zh-CN", Speed: 0.5})
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "mock audio data", string(data))
	})

	t.Run("handles API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "invalid_request_error"}}`))
		}))
		defer server.Close()

		p := NewOpenAIProvider("bad-key", server.URL, "")
		_, err := p.Synthesize(context.Background(), "Test", SynthesizeOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OpenAI API error (status 401)")
	})
}
