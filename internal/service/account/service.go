// Package account implements the signed-in user's self-service operations.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
)

const (
	MinNameLength   = 2
	MaxNameLength   = 50
	MinAPIKeyLength = 10
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
	ComparePassword(ctx context.Context, user *domain.User, plain string) bool
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int, error)
}

type Encrypter interface {
	Encrypt(plaintext string) string
}

// KeyChecker verifies a provider key before it is stored. Optional.
type KeyChecker interface {
	Check(ctx context.Context, p domain.Provider, apiKey string) error
}

type ProfileInput struct {
	Name                    *string
	PreferredSourceLanguage *string
	PreferredTargetLanguage *string
}

type Service struct {
	users    UserRepository
	sessions SessionRevoker
	vault    Encrypter
	checker  KeyChecker
	logger   *slog.Logger
}

func NewService(users UserRepository, sessions SessionRevoker, vault Encrypter, checker KeyChecker, logger *slog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		vault:    vault,
		checker:  checker,
		logger:   logger.With("component", "account"),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// UpdateProfile ignores blank fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*domain.User, error) {
	var upd domain.UserUpdate

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
				return nil, invalid("name must be between %d and %d characters", MinNameLength, MaxNameLength)
			}
			upd.Name = &name
		}
	}
	if in.PreferredSourceLanguage != nil && *in.PreferredSourceLanguage != "" {
		upd.PreferredSourceLanguage = in.PreferredSourceLanguage
	}
	if in.PreferredTargetLanguage != nil && *in.PreferredTargetLanguage != "" {
		upd.PreferredTargetLanguage = in.PreferredTargetLanguage
	}

	return s.users.Update(ctx, userID, upd)
}

// SaveAPIKey checks the key with the provider, then stores it encrypted.
func (s *Service) SaveAPIKey(ctx context.Context, userID string, provider, apiKey string) (*domain.User, error) {
	p, err := domain.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	apiKey = strings.TrimSpace(apiKey)
	if len(apiKey) < MinAPIKeyLength {
		return nil, invalid("valid API key is required")
	}

	if s.checker != nil {
		if err := s.checker.Check(ctx, p, apiKey); err != nil {
			return nil, err
		}
	}

	user, err := s.users.Update(ctx, userID, domain.UserUpdate{
		APIKeys: map[domain.Provider]string{p: s.vault.Encrypt(apiKey)},
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("api key saved", "user_id", userID, "provider", p)
	return user, nil
}

func (s *Service) DeleteAPIKey(ctx context.Context, userID string, provider string) (*domain.User, error) {
	p, err := domain.ParseProvider(provider)
	if err != nil {
		return nil, err
	}
	return s.users.Update(ctx, userID, domain.UserUpdate{
		APIKeys: map[domain.Provider]string{p: ""},
	})
}

// ChangePassword verifies the current password, stores the new one and
// revokes every session so all devices must log in again.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.verifyPassword(ctx, userID, current)
	if err != nil {
		return err
	}
	if err := auth.ValidatePasswordStrength(next); err != nil {
		return invalid("%s", err.Error())
	}

	if _, err := s.users.Update(ctx, user.ID, domain.UserUpdate{Password: &next}); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", user.ID)
	return nil
}

// Deactivate is soft delete: sessions are revoked and the account can no longer log in.
func (s *Service) Deactivate(ctx context.Context, userID, password string) error {
	user, err := s.verifyPassword(ctx, userID, password)
	if err != nil {
		return err
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	inactive := false
	if _, err := s.users.Update(ctx, user.ID, domain.UserUpdate{IsActive: &inactive}); err != nil {
		return err
	}
	s.logger.Info("account deactivated", "user_id", user.ID)
	return nil
}

func (s *Service) verifyPassword(ctx context.Context, userID, password string) (*domain.User, error) {
	if password == "" {
		return nil, invalid("password is required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	if !s.users.ComparePassword(ctx, user, password) {
		return nil, domain.ErrIncorrectPassword
	}
	return user, nil
}
