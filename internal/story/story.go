package story

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storyspeak/storyspeak/internal/audio"
)

// ErrInvalidStory is returned for stories missing required fields
var ErrInvalidStory = errors.New("invalid story")

// Difficulty is the learner level a story targets
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Categories a generated story is drawn from
var Categories = []string{
	"daily_life", "education", "philosophy", "relationships", "motivation",
	"travel", "food", "nature", "technology", "culture",
}

// Story is one practice passage in all three languages
type Story struct {
	ID         string     `json:"id" yaml:"id"`
	Chinese    Chinese    `json:"chinese" yaml:"chinese"`
	English    English    `json:"english" yaml:"english"`
	Japanese   Japanese   `json:"japanese" yaml:"japanese"`
	Category   string     `json:"category" yaml:"category"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Chinese text with its pinyin reading
type Chinese struct {
	Text   string `json:"text" yaml:"text"`
	Pinyin string `json:"pinyin" yaml:"pinyin"`
}

// English text with its IPA transcription
type English struct {
	Text string `json:"text" yaml:"text"`
	IPA  string `json:"ipa" yaml:"ipa"`
}

// Japanese text with kana readings. Katakana is optional.
type Japanese struct {
	Text     string `json:"text" yaml:"text"`
	Hiragana string `json:"hiragana" yaml:"hiragana"`
	Katakana string `json:"katakana,omitempty" yaml:"katakana,omitempty"`
}

// Validate reports the first missing or malformed field
func (s *Story) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidStory)
	case s.Category == "":
		return fmt.Errorf("%w: missing category", ErrInvalidStory)
	case s.Chinese.Text == "" || s.Chinese.Pinyin == "":
		return fmt.Errorf("%w: invalid chinese fields", ErrInvalidStory)
	case s.English.Text == "" || s.English.IPA == "":
		return fmt.Errorf("%w: invalid english fields", ErrInvalidStory)
	case s.Japanese.Text == "" || s.Japanese.Hiragana == "":
		return fmt.Errorf("%w: invalid japanese fields", ErrInvalidStory)
	}

	switch s.Difficulty {
	case Beginner, Intermediate, Advanced:
		return nil
	case "":
		return fmt.Errorf("%w: missing difficulty", ErrInvalidStory)
	}
	return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidStory, s.Difficulty)
}

// normalize trims fields, lowercases the difficulty and assigns an ID when
// the source left it out
func (s *Story) normalize() {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Category = strings.TrimSpace(s.Category)
	s.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(s.Difficulty))))
}

// Text returns the passage in lang
func (s Story) Text(lang audio.Language) string {
	switch lang {
	case audio.LanguageChinese:
		return s.Chinese.Text
	case audio.LanguageJapanese:
		return s.Japanese.Text
	default:
		return s.English.Text
	}
}

// Reading returns the pronunciation guide for lang: pinyin, IPA or hiragana
func (s Story) Reading(lang audio.Language) string {
	switch lang {
	case audio.LanguageChinese:
		return s.Chinese.Pinyin
	case audio.LanguageJapanese:
		return s.Japanese.Hiragana
	default:
		return s.English.IPA
	}
}
