// Package session implements login, refresh-token rotation and revocation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
)

const DefaultRefreshTTL = 7 * 24 * time.Hour

// UserRepository is the boundary to the user store. Find methods return
// nil, nil when no user matches. The store owns password hashing.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User, password string) error
	Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
	ComparePassword(ctx context.Context, user *domain.User, plain string) bool
}

// Disconnector closes a user's live connections after their sessions are revoked.
type Disconnector interface {
	DisconnectUser(userID, reason string) int
}

type Options struct {
	RefreshTTL time.Duration
	// MultiDevice keeps earlier refresh tokens alive on login instead of
	// enforcing a single active session.
	MultiDevice bool
}

// Session is the result of a successful register, login or refresh.
type Session struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Client   domain.ClientInfo
}

type LoginInput struct {
	Email    string
	Password string
	Client   domain.ClientInfo
}

type Service struct {
	users  UserRepository
	tokens *TokenStore
	codec  *auth.Codec
	opts   Options
	logger *slog.Logger

	disconnector Disconnector
	now          func() time.Time
	// compared against when the email is unknown so login timing doesn't leak existence
	dummyHash string
}

func NewService(users UserRepository, tokens *TokenStore, codec *auth.Codec, opts Options, logger *slog.Logger) *Service {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	dummy, _ := auth.HashPassword("not-a-real-password", 0)
	return &Service{
		users:     users,
		tokens:    tokens,
		codec:     codec,
		opts:      opts,
		logger:    logger.With("component", "session"),
		now:       time.Now,
		dummyHash: dummy,
	}
}

// SetDisconnector wires the live-connection registry once the transport exists.
func (s *Service) SetDisconnector(d Disconnector) {
	s.disconnector = d
}

func (s *Service) RefreshTTL() time.Duration {
	return s.opts.RefreshTTL
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := domain.NormalizeEmail(in.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	user := &domain.User{Name: in.Name, Email: email, Role: domain.RoleUser}
	if err := s.users.Create(ctx, user, in.Password); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.startSession(ctx, user, in.Client)
}

// Login fails with ErrInvalidCredentials whether the user is absent, inactive
// or the password is wrong.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(in.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		auth.CheckPasswordHash(in.Password, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if !s.users.ComparePassword(ctx, user, in.Password) || !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	if !s.opts.MultiDevice {
		revoked, err := s.RevokeAll(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if revoked > 0 {
			s.logger.Info("previous sessions revoked on login", "user_id", user.ID, "count", revoked)
		}
	}

	return s.startSession(ctx, user, in.Client)
}

// Refresh rotates a refresh token. The presented token is consumed before any
// other check, so it can never be used twice.
func (s *Service) Refresh(ctx context.Context, tokenID string, client domain.ClientInfo) (*Session, error) {
	if tokenID == "" {
		return nil, domain.ErrNoRefreshToken
	}

	record, err := s.tokens.Consume(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrInvalidRefreshToken
	}

	// The token stays consumed when the lookup below fails. A failed refresh
	// always ends the session and the client has to log in again.
	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !user.IsActive {
		s.logger.Info("refresh for missing or inactive user", "user_id", record.UserID)
		return nil, domain.ErrUserNotFound
	}

	return s.issue(ctx, user, client)
}

// Logout deletes the refresh record if present. It never fails.
func (s *Service) Logout(ctx context.Context, tokenID string) {
	if tokenID == "" {
		return
	}
	if err := s.tokens.Delete(ctx, tokenID); err != nil {
		s.logger.Warn("failed to delete refresh token on logout", "error", err)
	}
}

// RevokeAll deletes every refresh token of the user and drops their live connections.
func (s *Service) RevokeAll(ctx context.Context, userID string) (int, error) {
	count, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.disconnector != nil {
		s.disconnector.DisconnectUser(userID, "session revoked")
	}
	return count, nil
}

func (s *Service) startSession(ctx context.Context, user *domain.User, client domain.ClientInfo) (*Session, error) {
	now := s.now().UTC()
	updated, err := s.users.Update(ctx, user.ID, domain.UserUpdate{LastLogin: &now})
	if err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
		user.LastLogin = &now
	} else {
		user = updated
	}
	return s.issue(ctx, user, client)
}

func (s *Service) issue(ctx context.Context, user *domain.User, client domain.ClientInfo) (*Session, error) {
	accessToken, err := s.codec.Sign(auth.Subject{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, err
	}

	record := &domain.RefreshTokenRecord{
		TokenID:    auth.NewRefreshTokenID(),
		UserID:     user.ID,
		CreatedAt:  s.now().UTC(),
		DeviceInfo: client.DeviceInfo,
		IPAddress:  client.IPAddress,
	}
	if err := s.tokens.Put(ctx, record, s.opts.RefreshTTL); err != nil {
		return nil, err
	}

	return &Session{User: user, AccessToken: accessToken, RefreshToken: record.TokenID}, nil
}
