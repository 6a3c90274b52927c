package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// Generator produces practice stories
type Generator interface {
	Generate(ctx context.Context) (Story, error)
}

const (
	// DefaultChatModel is the model requested for story generation
	DefaultChatModel = "gpt-4o-mini"

	chatMaxTokens   = 1000
	chatTemperature = 0.9
	chatEndpoint    = "/chat"
)

const systemPrompt = "You are an expert writer of multilingual stories for language learners. " +
	"Write content that is engaging, educational and suitable for adult learners."

var userPrompt = `Write one short multilingual sentence or story with these requirements:

1. Lively and interesting content suited to language learning; avoid repeating earlier stories.
2. Do not reuse a fixed opening or template; vary the style (dialogue, proverb, story fragment, narration).
3. Provide the text in Chinese, English and Japanese.
4. Give pinyin for the Chinese text.
5. Give an IPA transcription for the English text.
6. Give hiragana for the Japanese text; katakana is not needed.
7. Pick one category at random: ` + strings.Join(Categories, ", ") + `
8. Pick one difficulty at random: beginner, intermediate, advanced

Reply with JSON in exactly this shape:
{
  "id": "random id",
  "chinese": { "text": "...", "pinyin": "..." },
  "english": { "text": "...", "ipa": "..." },
  "japanese": { "text": "...", "hiragana": "..." },
  "category": "...",
  "difficulty": "..."
}

Reply with the JSON only.`

// ParseReply decodes a model reply into a validated story. Markdown code
// fences around the JSON are tolerated and a missing id is generated.
func ParseReply(reply string) (Story, error) {
	body := strings.TrimSpace(reply)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}

	var s Story
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return Story{}, fmt.Errorf("failed to parse story JSON: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Story{}, err
	}
	return s, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// BackendGenerator asks the app backend's chat endpoint for a story
type BackendGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewBackendGenerator creates a generator for the backend at baseURL
func NewBackendGenerator(baseURL, apiKey string, timeout time.Duration) *BackendGenerator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      DefaultChatModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate implements Generator
func (g *BackendGenerator) Generate(ctx context.Context) (Story, error) {
	if g.baseURL == "" {
		return Story{}, errors.New("backend URL is not configured")
	}

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Model:       g.model,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		return Story{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+chatEndpoint, bytes.NewReader(body))
	if err != nil {
		return Story{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Story{}, fmt.Errorf("failed to request story: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Story{}, fmt.Errorf("backend error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Story{}, fmt.Errorf("failed to decode backend response: %w", err)
	}

	return ParseReply(raw.Reply)
}

// OpenAIGenerator asks the OpenAI chat API for a story directly
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator creates an OpenAI story generator. baseURL may be empty.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...), model: model}
}

// Generate implements Generator
func (g *OpenAIGenerator) Generate(ctx context.Context) (Story, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(chatMaxTokens),
		Temperature: openai.Float(chatTemperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Story{}, fmt.Errorf("OpenAI API error (status %d): %w", apiErr.StatusCode, err)
		}
		return Story{}, fmt.Errorf("failed to request story: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Story{}, errors.New("OpenAI returned no choices")
	}
	if refusal := resp.Choices[0].Message.Refusal; refusal != "" {
		return Story{}, fmt.Errorf("story request refused: %s", refusal)
	}

	return ParseReply(resp.Choices[0].Message.Content)
}

// FallbackGenerator serves a catalog story whenever the primary generator fails
type FallbackGenerator struct {
	primary Generator
	catalog *Catalog
}

// NewFallbackGenerator wraps primary; a nil primary always uses the catalog
func NewFallbackGenerator(primary Generator, catalog *Catalog) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, catalog: catalog}
}

// Generate implements Generator. It only fails when ctx is done.
func (g *FallbackGenerator) Generate(ctx context.Context) (Story, error) {
	if g.primary != nil {
		s, err := g.primary.Generate(ctx)
		if err == nil {
			log.Debug().Str("id", s.ID).Msg("Generated story")
			return s, nil
		}
		if ctx.Err() != nil {
			return Story{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("Story generation failed, using local story")
	}
	return g.catalog.Random(), nil
}
