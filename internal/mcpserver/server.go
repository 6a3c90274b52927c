package mcpserver

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/history"
	"github.com/storyspeak/storyspeak/internal/story"
)

// Speaker reads text aloud. *audio.Controller implements it.
type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// Server exposes story generation, practice history and speech as MCP tools
type Server struct {
	generator story.Generator
	history   *history.Store
	speaker   Speaker
	now       func() time.Time
	mcp       *server.MCPServer
}

// New creates the MCP server and registers its tools
func New(generator story.Generator, store *history.Store, speaker Speaker, version string) *Server {
	s := &Server{
		generator: generator,
		history:   store,
		speaker:   speaker,
		now:       time.Now,
		mcp: server.NewMCPServer("storyspeak", version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Multilingual story practice: generate stories in Chinese, English and Japanese, read them aloud and review pronunciation scores."),
		),
	}

	s.mcp.AddTool(mcp.NewTool("generate_story",
		mcp.WithDescription("Generate a short practice story with Chinese (pinyin), English (IPA) and Japanese (hiragana) text"),
	), s.handleGenerateStory)

	s.mcp.AddTool(mcp.NewTool("score_history",
		mcp.WithDescription("Recent pronunciation scores, per-language averages and the current practice streak"),
		mcp.WithNumber("limit",
			mcp.Description("Number of recent attempts to return"),
			mcp.DefaultNumber(10),
			mcp.Min(1),
			mcp.Max(100),
		),
	), s.handleScoreHistory)

	s.mcp.AddTool(mcp.NewTool("speak",
		mcp.WithDescription("Read text aloud on this machine's speaker"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to speak"),
		),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Language of the text"),
			mcp.Enum(string(audio.LanguageChinese), string(audio.LanguageEnglish), string(audio.LanguageJapanese)),
		),
	), s.handleSpeak)

	return s
}

// Serve speaks MCP over the given streams until ctx is done or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(log.Logger, "", 0))
	log.Debug().Msg("MCP server listening on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleGenerateStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.generator.Generate(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to generate story", err), nil
	}
	return mcp.NewToolResultJSON(st)
}

// HistoryReport is the score_history result
type HistoryReport struct {
	Recent  []history.Attempt         `json:"recent"`
	Summary []history.LanguageSummary `json:"summary"`
	Streak  int                       `json:"streak_days"`
}

func (s *Server) handleScoreHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := min(100, max(1, req.GetInt("limit", 10)))

	recent, err := s.history.Recent(ctx, limit)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to read history", err), nil
	}
	summary, err := s.history.Summary(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to read history", err), nil
	}
	streak, err := s.history.Streak(ctx, s.now())
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to read history", err), nil
	}

	return mcp.NewToolResultJSON(HistoryReport{
		Recent:  nonNil(recent),
		Summary: nonNil(summary),
		Streak:  streak,
	})
}

func (s *Server) handleSpeak(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, err := req.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.speaker.Speak(ctx, text, lang); err != nil {
		return mcp.NewToolResultErrorFromErr("failed to speak", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Speaking %d characters", len([]rune(text)))), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
