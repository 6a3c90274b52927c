package story

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyspeak/storyspeak/internal/config"
)

const storyJSON = `{
  "id": "abc",
  "chinese": {"text": "早上好", "pinyin": "zǎoshang hǎo"},
  "english": {"text": "Good morning", "ipa": "ɡʊd ˈmɔrnɪŋ"},
  "japanese": {"text": "おはよう", "hiragana": "おはよう"},
  "category": "daily_life",
  "difficulty": "beginner"
}`

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantID  string
		wantErr string
	}{
		{name: "plain JSON", reply: storyJSON, wantID: "abc"},
		{name: "fenced JSON", reply: "```json\n" + storyJSON + "\n```", wantID: "abc"},
		{name: "bare fence", reply: "```\n" + storyJSON + "\n```", wantID: "abc"},
		{name: "not JSON", reply: "Sorry, I cannot help", wantErr: "failed to parse story JSON"},
		{name: "incomplete story", reply: `{"id": "x", "category": "food"}`, wantErr: "invalid story"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseReply(tt.reply)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, s.ID)
			assert.Equal(t, "早上好", s.Chinese.Text)
		})
	}

	t.Run("missing id is generated", func(t *testing.T) {
		s, err := ParseReply(strings.Replace(storyJSON, `"id": "abc",`, "", 1))
		require.NoError(t, err)
		assert.Len(t, s.ID, 36)
	})
}

func TestBackendGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		assert.InDelta(t, 0.9, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Contains(t, req.Messages[1].Content, "hiragana")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse{Reply: storyJSON})
	}))
	defer server.Close()

	s, err := NewBackendGenerator(server.URL+"/", "key", 0).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, "Good morning", s.English.Text)
}

func TestBackendGenerator_Errors(t *testing.T) {
	t.Run("missing URL", func(t *testing.T) {
		_, err := NewBackendGenerator("", "", 0).Generate(context.Background())
		assert.ErrorContains(t, err, "backend URL is not configured")
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewBackendGenerator(server.URL, "", 0).Generate(context.Background())
		assert.ErrorContains(t, err, "backend error (status 502): upstream unavailable")
	})

	t.Run("unparseable reply", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(chatResponse{Reply: "not json"})
		}))
		defer server.Close()

		_, err := NewBackendGenerator(server.URL, "", 0).Generate(context.Background())
		assert.ErrorContains(t, err, "failed to parse story JSON")
	})
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.EqualValues(t, 1000, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": storyJSON},
			}},
		})
	}))
	defer server.Close()

	s, err := NewOpenAIGenerator("sk-test", server.URL, "").Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", s.ID)
}

func TestOpenAIGenerator_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Invalid API key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAIGenerator("bad", server.URL, "").Generate(context.Background())
	assert.ErrorContains(t, err, "OpenAI API error (status 401)")
}

type stubGenerator struct {
	story Story
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context) (Story, error) {
	g.calls++
	return g.story, g.err
}

func TestFallbackGenerator(t *testing.T) {
	catalog := BuiltinCatalog()
	catalog.intn = func(int) int { return 1 }

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &stubGenerator{story: validStory()}
		s, err := NewFallbackGenerator(primary, catalog).Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "42", s.ID)
	})

	t.Run("primary fails", func(t *testing.T) {
		primary := &stubGenerator{err: errors.New("backend down")}
		s, err := NewFallbackGenerator(primary, catalog).Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2", s.ID)
		assert.Equal(t, 1, primary.calls)
	})

	t.Run("no primary", func(t *testing.T) {
		s, err := NewFallbackGenerator(nil, catalog).Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2", s.ID)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary := &stubGenerator{err: context.Canceled}
		_, err := NewFallbackGenerator(primary, catalog).Generate(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewGenerator(t *testing.T) {
	catalog := BuiltinCatalog()

	t.Run("local", func(t *testing.T) {
		g, err := NewGenerator(config.Default(), catalog)
		require.NoError(t, err)
		assert.Nil(t, g.(*FallbackGenerator).primary)
	})

	t.Run("backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.Story.Source = "backend"
		_, err := NewGenerator(cfg, catalog)
		assert.ErrorContains(t, err, "requires backend.url")

		cfg.Backend.URL = "https://api.example.com"
		g, err := NewGenerator(cfg, catalog)
		require.NoError(t, err)
		assert.IsType(t, &BackendGenerator{}, g.(*FallbackGenerator).primary)
	})

	t.Run("openai", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := config.Default()
		cfg.Story.Source = "openai"
		_, err := NewGenerator(cfg, catalog)
		assert.ErrorContains(t, err, "OpenAI API key not found")

		cfg.Providers.OpenAI.APIKey = "sk"
		g, err := NewGenerator(cfg, catalog)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIGenerator{}, g.(*FallbackGenerator).primary)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Story.Source = "library"
		_, err := NewGenerator(cfg, catalog)
		assert.ErrorContains(t, err, "unknown story source")
	})
}

func TestLoadConfiguredCatalog(t *testing.T) {
	c, err := LoadConfiguredCatalog(config.Default())
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
}
