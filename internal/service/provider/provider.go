// Package provider resolves which API key a translation request runs with.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/vault"
)

// Spec describes a provider's OpenAI-compatible endpoint and default models.
type Spec struct {
	Provider   domain.Provider
	BaseURL    string
	TextModel  string
	AudioModel string
}

var specs = map[domain.Provider]Spec{
	domain.ProviderOpenAI: {
		Provider:   domain.ProviderOpenAI,
		BaseURL:    "https://api.openai.com/v1",
		TextModel:  "gpt-4o-mini",
		AudioModel: "whisper-1",
	},
	domain.ProviderGroq: {
		Provider:   domain.ProviderGroq,
		BaseURL:    "https://api.groq.com/openai/v1",
		TextModel:  "llama-3.3-70b-versatile",
		AudioModel: "whisper-large-v3",
	},
}

func SpecFor(p domain.Provider) (Spec, error) {
	s, ok := specs[p]
	if !ok {
		return Spec{}, domain.ErrUnsupportedProvider
	}
	return s, nil
}

type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
	SourceNone   Source = "none"
)

// Credential is a ready-to-use key for one provider.
type Credential struct {
	Spec
	APIKey string
	Source Source
}

type Availability struct {
	Provider domain.Provider `json:"provider"`
	Source   Source          `json:"source"`
}

type Resolver struct {
	vault      *vault.Vault
	systemKeys map[domain.Provider]string
	logger     *slog.Logger
}

func NewResolver(v *vault.Vault, systemKeys map[domain.Provider]string, logger *slog.Logger) *Resolver {
	keys := make(map[domain.Provider]string, len(systemKeys))
	for p, k := range systemKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[p] = k
		}
	}
	return &Resolver{vault: v, systemKeys: keys, logger: logger.With("component", "provider")}
}

// Resolve picks the user's own key, then the system key. A corrupt user
// envelope is skipped rather than sent to the provider.
func (r *Resolver) Resolve(user *domain.User, p domain.Provider) (Credential, error) {
	spec, err := SpecFor(p)
	if err != nil {
		return Credential{}, err
	}

	if key, ok := r.userKey(user, p); ok {
		return Credential{Spec: spec, APIKey: key, Source: SourceUser}, nil
	}
	if key, ok := r.systemKeys[p]; ok {
		return Credential{Spec: spec, APIKey: key, Source: SourceSystem}, nil
	}
	return Credential{}, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, p)
}

func (r *Resolver) userKey(user *domain.User, p domain.Provider) (string, bool) {
	if user == nil || !user.HasAPIKey(p) {
		return "", false
	}
	key, ok := r.vault.Decrypt(user.APIKeys[p]).Value()
	if !ok {
		r.logger.Warn("stored api key is corrupt, falling back", "user_id", user.ID, "provider", p)
		return "", false
	}
	return key, true
}

// Available reports, per provider, which key a request would use.
func (r *Resolver) Available(user *domain.User) []Availability {
	out := make([]Availability, 0, len(domain.Providers))
	for _, p := range domain.Providers {
		source := SourceNone
		if cred, err := r.Resolve(user, p); err == nil {
			source = cred.Source
		}
		out = append(out, Availability{Provider: p, Source: source})
	}
	return out
}

// KeyChecker asks the provider whether a key authenticates before it is stored.
type KeyChecker struct {
	client   *http.Client
	baseURLs map[domain.Provider]string
	logger   *slog.Logger
}

func NewKeyChecker(client *http.Client, logger *slog.Logger) *KeyChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	urls := make(map[domain.Provider]string, len(specs))
	for p, s := range specs {
		urls[p] = s.BaseURL
	}
	return &KeyChecker{client: client, baseURLs: urls, logger: logger.With("component", "key_checker")}
}

// WithBaseURL points a provider at another endpoint, for tests and proxies.
func (c *KeyChecker) WithBaseURL(p domain.Provider, url string) *KeyChecker {
	c.baseURLs[p] = strings.TrimRight(url, "/")
	return c
}

// Check returns ErrInvalidAPIKey only when the provider answers 401. Network
// errors, rate limits and outages are logged and the key is accepted.
func (c *KeyChecker) Check(ctx context.Context, p domain.Provider, apiKey string) error {
	base, ok := c.baseURLs[p]
	if !ok {
		return domain.ErrUnsupportedProvider
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to build key check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.logger.Warn("api key check failed, accepting key", "provider", p, "error", err)
		return nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrInvalidAPIKey
	case resp.StatusCode >= 300:
		c.logger.Warn("api key check inconclusive, accepting key", "provider", p, "status", resp.StatusCode)
	}
	return nil
}
