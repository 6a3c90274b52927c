package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/storyspeak/storyspeak/internal/audio"
	"github.com/storyspeak/storyspeak/internal/history"
	"github.com/storyspeak/storyspeak/internal/story"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

var languageFlags = map[audio.Language]string{
	audio.LanguageChinese:  "🇨🇳",
	audio.LanguageEnglish:  "🇺🇸",
	audio.LanguageJapanese: "🇯🇵",
}

func printStory(w io.Writer, s story.Story) {
	fmt.Fprintf(w, "📖 Story %s (%s, %s)\n\n", s.ID, s.Category, s.Difficulty)
	for _, lang := range audio.SupportedLanguages {
		fmt.Fprintf(w, "%s %s\n", languageFlags[lang], s.Text(lang))
		if reading := s.Reading(lang); reading != "" {
			fmt.Fprintf(w, "   %s\n", color.New(color.Faint).Sprint(reading))
		}
	}
}

// scoreColor colors a score green from 90, yellow from 80 and red below
func scoreColor(v int) string {
	switch {
	case v >= 90:
		return color.GreenString("%d", v)
	case v >= 80:
		return color.YellowString("%d", v)
	default:
		return color.RedString("%d", v)
	}
}

func printScore(w io.Writer, s audio.PronunciationScore) {
	fmt.Fprintf(w, "🎯 Overall      %s\n", scoreColor(s.Overall))
	fmt.Fprintf(w, "   Accuracy     %s\n", scoreColor(s.Accuracy))
	fmt.Fprintf(w, "   Fluency      %s\n", scoreColor(s.Fluency))
	fmt.Fprintf(w, "   Completeness %s\n", scoreColor(s.Completeness))
}

// sparkline renders metering samples in [0,1] as block characters, keeping
// the last width samples
func sparkline(samples []float64, width int) string {
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}
	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range samples {
		v = min(1, max(0, v))
		b.WriteRune(sparkBlocks[int(v*float64(top)+0.5)])
	}
	return b.String()
}

func printHistory(w io.Writer, recent []history.Attempt, summary []history.LanguageSummary, streak int) {
	if len(recent) == 0 {
		fmt.Fprintln(w, "No practice attempts yet.")
		fmt.Fprintln(w, "\nRun 'storyspeak practice' to record your first one.")
		return
	}

	fmt.Fprintln(w, "Recent attempts:")
	for _, a := range recent {
		fmt.Fprintf(w, "  %s  %s %-8s story %-6s overall %s\n",
			a.CreatedAt.Format("2006-01-02 15:04"),
			languageFlags[a.Language], a.Language.DisplayName(), a.StoryID, scoreColor(a.Score.Overall))
	}

	fmt.Fprintln(w, "\nBy language:")
	for _, ls := range summary {
		fmt.Fprintf(w, "  %s %-8s %3d attempts  average %s  best %s\n",
			languageFlags[ls.Language], ls.Language.DisplayName(), ls.Attempts,
			scoreColor(int(ls.Average+0.5)), scoreColor(ls.Best))
	}

	fmt.Fprintf(w, "\n🔥 Practice streak: %d day(s)\n", streak)
}
