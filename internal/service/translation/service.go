// Package translation runs text translations and keeps each user's history.
package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/service/provider"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxTextLength   = 10000
)

type Repository interface {
	Create(ctx context.Context, t *domain.Translation) error
	List(ctx context.Context, f domain.HistoryFilter) ([]domain.Translation, int, error)
	Delete(ctx context.Context, userID, id string) error
}

// UserCounter keeps User.TranslationCount in step with the history.
type UserCounter interface {
	Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
}

type CredentialResolver interface {
	Resolve(user *domain.User, p domain.Provider) (provider.Credential, error)
}

type TextTranslator interface {
	TranslateText(ctx context.Context, cred provider.Credential, req provider.TextRequest) (provider.TextResult, error)
}

type TextInput struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Provider       string
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type HistoryPage struct {
	Translations []domain.Translation `json:"translations"`
	Pagination   Pagination           `json:"pagination"`
}

type Service struct {
	repo       Repository
	users      UserCounter
	resolver   CredentialResolver
	translator TextTranslator
	logger     *slog.Logger
}

func NewService(repo Repository, users UserCounter, resolver CredentialResolver, translator TextTranslator, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		users:      users,
		resolver:   resolver,
		translator: translator,
		logger:     logger.With("component", "translation"),
	}
}

// TranslateText calls the provider with the user's key (or the system key),
// stores the result in the history and bumps the user's counter.
func (s *Service) TranslateText(ctx context.Context, user *domain.User, in TextInput) (*domain.Translation, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, fmt.Errorf("%w: text cannot exceed %d characters", domain.ErrValidation, MaxTextLength)
	}

	p, err := domain.ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(in.TargetLanguage)
	if !domain.IsTargetLanguage(target) {
		return nil, domain.ErrUnsupportedLanguage
	}
	source := strings.TrimSpace(in.SourceLanguage)
	if source == "" {
		source = domain.DefaultSourceLanguage
	}
	if source != domain.DefaultSourceLanguage && !domain.IsTargetLanguage(source) {
		return nil, domain.ErrUnsupportedLanguage
	}

	cred, err := s.resolver.Resolve(user, p)
	if err != nil {
		return nil, err
	}

	res, err := s.translator.TranslateText(ctx, cred, provider.TextRequest{
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
	})
	if err != nil {
		return nil, err
	}

	record := &domain.Translation{
		UserID:           user.ID,
		OriginalText:     domain.TruncateText(text, domain.MaxTranslationText),
		TranslatedText:   domain.TruncateText(res.TranslatedText, domain.MaxTranslationText),
		SourceLanguage:   source,
		DetectedLanguage: res.DetectedLanguage,
		TargetLanguage:   target,
		InputType:        domain.InputText,
		Provider:         p,
		Confidence:       res.Confidence,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	// the full translation is returned even when the stored copy is cut
	record.TranslatedText = res.TranslatedText
	s.adjustCount(ctx, user.ID, 1)

	s.logger.Info("translation completed", "user_id", user.ID, "provider", p, "target", target, "key_source", cred.Source)
	return record, nil
}

// History clamps page to >= 1 and limit to [1, MaxPageSize]; zero picks the default.
func (s *Service) History(ctx context.Context, userID string, page, limit int, targetLanguage string) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	items, total, err := s.repo.List(ctx, domain.HistoryFilter{
		UserID:         userID,
		TargetLanguage: strings.TrimSpace(targetLanguage),
		Page:           page,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Translations: items,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

// Delete only removes the user's own entries; anything else is ErrTranslationNotFound.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.adjustCount(ctx, userID, -1)
	return nil
}

// adjustCount is best effort: the history entry is the source of truth.
func (s *Service) adjustCount(ctx context.Context, userID string, delta int) {
	if _, err := s.users.Update(ctx, userID, domain.UserUpdate{TranslationCountDelta: delta}); err != nil {
		s.logger.Warn("failed to update translation count", "user_id", userID, "delta", delta, "error", err)
	}
}
