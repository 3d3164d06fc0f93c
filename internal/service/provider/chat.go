package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
)

const (
	chatTemperature = 0.1
	chatMaxTokens   = 2000
	// provider error bodies are only logged, and only this much of them
	errorBodyLimit = 512
)

type TextRequest struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

type TextResult struct {
	TranslatedText   string   `json:"translatedText"`
	DetectedLanguage string   `json:"detectedLanguage"`
	Confidence       *float64 `json:"confidence"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatTranslator translates text through a provider's OpenAI-compatible
// chat completions endpoint.
type ChatTranslator struct {
	client   *http.Client
	baseURLs map[domain.Provider]string
	logger   *slog.Logger
}

func NewChatTranslator(client *http.Client, logger *slog.Logger) *ChatTranslator {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ChatTranslator{
		client:   client,
		baseURLs: make(map[domain.Provider]string),
		logger:   logger.With("component", "translator"),
	}
}

// WithBaseURL points a provider at another endpoint, for tests and proxies.
func (t *ChatTranslator) WithBaseURL(p domain.Provider, url string) *ChatTranslator {
	t.baseURLs[p] = strings.TrimRight(url, "/")
	return t
}

func systemPrompt(targetLanguage string) string {
	return fmt.Sprintf(`You are a professional translator. Translate the given text to %s.
Rules:
- Translate ONLY the text, preserve formatting, punctuation and structure
- If source language is auto-detected, detect it automatically
- Return a JSON object with: { "translatedText": "...", "detectedLanguage": "language_code", "confidence": 0.0-1.0 }
- The detectedLanguage should be an ISO 639-1 language code (e.g., "en", "fr", "es")
- Respond ONLY with the JSON object, no additional text`, domain.LanguageName(targetLanguage))
}

// TranslateText maps a 401 to ErrInvalidAPIKey and a 429 to
// ErrProviderRateLimited. Every other failure wraps ErrProviderFailed.
func (t *ChatTranslator) TranslateText(ctx context.Context, cred Credential, req TextRequest) (TextResult, error) {
	base := cred.BaseURL
	if override, ok := t.baseURLs[cred.Provider]; ok {
		base = override
	}

	body, err := json.Marshal(chatRequest{
		Model: cred.TextModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(req.TargetLanguage)},
			{Role: "user", Content: req.Text},
		},
		Temperature:    chatTemperature,
		MaxTokens:      chatMaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return TextResult{}, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return TextResult{}, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return TextResult{}, err
		}
		return TextResult{}, fmt.Errorf("%w: %s: %v", domain.ErrProviderFailed, cred.Provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return TextResult{}, domain.ErrInvalidAPIKey
	case resp.StatusCode == http.StatusTooManyRequests:
		return TextResult{}, fmt.Errorf("%w: %s", domain.ErrProviderRateLimited, cred.Provider)
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		t.logger.Warn("provider returned an error", "provider", cred.Provider, "status", resp.StatusCode, "body", string(snippet))
		return TextResult{}, fmt.Errorf("%w: %s answered %d", domain.ErrProviderFailed, cred.Provider, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return TextResult{}, fmt.Errorf("%w: undecodable response: %v", domain.ErrProviderFailed, err)
	}
	if len(chat.Choices) == 0 {
		return TextResult{}, fmt.Errorf("%w: empty response", domain.ErrProviderFailed)
	}

	var result TextResult
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &result); err != nil {
		return TextResult{}, fmt.Errorf("%w: reply is not the requested JSON: %v", domain.ErrProviderFailed, err)
	}
	if result.TranslatedText == "" {
		return TextResult{}, fmt.Errorf("%w: reply has no translation", domain.ErrProviderFailed)
	}
	if c := result.Confidence; c != nil && (*c < 0 || *c > 1) {
		result.Confidence = nil
	}
	return result, nil
}
