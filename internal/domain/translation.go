package domain

import "time"

type InputType string

const (
	InputText  InputType = "text"
	InputAudio InputType = "audio"
)

// MaxTranslationText caps the stored original and translated text.
const MaxTranslationText = 5000

// Translation is one entry of a user's history.
type Translation struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	OriginalText     string    `json:"originalText"`
	TranslatedText   string    `json:"translatedText"`
	SourceLanguage   string    `json:"sourceLanguage"`
	DetectedLanguage string    `json:"detectedLanguage,omitempty"`
	TargetLanguage   string    `json:"targetLanguage"`
	Duration         *float64  `json:"duration,omitempty"`
	InputType        InputType `json:"inputType"`
	Provider         Provider  `json:"provider"`
	Confidence       *float64  `json:"confidence,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HistoryFilter selects one page of a user's translations, newest first.
// Page is 1-based.
type HistoryFilter struct {
	UserID         string
	TargetLanguage string
	Page           int
	Limit          int
}

func (f HistoryFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TruncateText cuts s to at most n runes.
func TruncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
