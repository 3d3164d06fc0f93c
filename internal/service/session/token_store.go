package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
)

const RefreshTokenKeyPrefix = "refresh_token:"

// KeyValueStore is the capability the token store needs from redis or the
// in-memory fallback. Misses return domain.ErrKeyNotFound.
type KeyValueStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
}

// TokenStore keeps refresh token records keyed by token ID.
type TokenStore struct {
	kv      KeyValueStore
	timeout time.Duration
	logger  *slog.Logger
}

func NewTokenStore(kv KeyValueStore, timeout time.Duration, logger *slog.Logger) *TokenStore {
	return &TokenStore{kv: kv, timeout: timeout, logger: logger.With("component", "token_store")}
}

func (s *TokenStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func refreshKey(tokenID string) string {
	return RefreshTokenKeyPrefix + tokenID
}

func (s *TokenStore) Put(ctx context.Context, record *domain.RefreshTokenRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode refresh token: %w", err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.kv.Set(ctx, refreshKey(record.TokenID), string(data), ttl); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// Get returns nil, nil when the token is absent, expired or deleted.
func (s *TokenStore) Get(ctx context.Context, tokenID string) (*domain.RefreshTokenRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	data, err := s.kv.Get(ctx, refreshKey(tokenID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh token lookup failed: %w", err)
	}
	return s.decode(ctx, tokenID, data), nil
}

// Consume atomically reads and deletes a record. Of several concurrent calls
// for one token, only one gets the record.
func (s *TokenStore) Consume(ctx context.Context, tokenID string) (*domain.RefreshTokenRecord, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	data, err := s.kv.GetDel(ctx, refreshKey(tokenID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh token lookup failed: %w", err)
	}
	return s.decode(ctx, tokenID, data), nil
}

// decode treats undecodable records as absent and removes them.
func (s *TokenStore) decode(ctx context.Context, tokenID, data string) *domain.RefreshTokenRecord {
	var record domain.RefreshTokenRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil || record.UserID == "" {
		s.logger.Warn("dropping undecodable refresh token record", "error", err)
		if delErr := s.kv.Del(ctx, refreshKey(tokenID)); delErr != nil {
			s.logger.Warn("failed to delete undecodable record", "error", delErr)
		}
		return nil
	}
	if record.TokenID == "" {
		record.TokenID = tokenID
	}
	return &record
}

func (s *TokenStore) Delete(ctx context.Context, tokenID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.kv.Del(ctx, refreshKey(tokenID)); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

func (s *TokenStore) ListKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	keys, err := s.kv.Keys(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func (s *TokenStore) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.kv.Ping(ctx)
}

// RevokeAllForUser scans every outstanding refresh token and deletes the
// ones owned by userID. Cost grows with the total number of live tokens.
func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	keys, err := s.ListKeysByPrefix(ctx, RefreshTokenKeyPrefix)
	if err != nil {
		return 0, err
	}

	var owned []string
	for _, key := range keys {
		tokenID := strings.TrimPrefix(key, RefreshTokenKeyPrefix)
		record, err := s.Get(ctx, tokenID)
		if err != nil {
			return 0, err
		}
		if record != nil && record.UserID == userID {
			owned = append(owned, key)
		}
	}
	if len(owned) == 0 {
		return 0, nil
	}

	dctx, cancel := s.bound(ctx)
	defer cancel()
	if err := s.kv.Del(dctx, owned...); err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return len(owned), nil
}
