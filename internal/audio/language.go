package audio

import (
	"fmt"

	"golang.org/x/text/language"
)

// Language is a supported practice language.
type Language string

const (
	LanguageChinese  Language = "zh"
	LanguageEnglish  Language = "en"
	LanguageJapanese Language = "ja"
)

// SupportedLanguages lists the languages stories and speech are available in.
var SupportedLanguages = []Language{LanguageChinese, LanguageEnglish, LanguageJapanese}

// ParseLanguage resolves a BCP-47 tag such as "zh", "en-US" or "ja-JP" to a
// supported Language.
func ParseLanguage(tag string) (Language, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
	}

	base, _ := t.Base()
	switch Language(base.String()) {
	case LanguageChinese:
		return LanguageChinese, nil
	case LanguageEnglish:
		return LanguageEnglish, nil
	case LanguageJapanese:
		return LanguageJapanese, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, tag)
}

// Locale returns the regional locale used for speech synthesis.
func (l Language) Locale() string {
	switch l {
	case LanguageChinese:
		return "zh-CN"
	case LanguageJapanese:
		return "ja-JP"
	default:
		return "en-US"
	}
}

// DisplayName returns the English name of the language.
func (l Language) DisplayName() string {
	switch l {
	case LanguageChinese:
		return "Chinese"
	case LanguageJapanese:
		return "Japanese"
	default:
		return "English"
	}
}
