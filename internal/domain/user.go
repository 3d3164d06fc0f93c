package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Provider is the closed set of translation backends a user can hold a key for.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

var Providers = []Provider{ProviderOpenAI, ProviderGroq}

// ParseProvider accepts any casing and surrounding whitespace.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnsupportedProvider
}

const (
	DefaultSourceLanguage = "auto"
	DefaultTargetLanguage = "en"
)

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`

	// APIKeys holds vault envelopes, never plaintext keys.
	APIKeys map[Provider]string `json:"-"`

	PreferredSourceLanguage string     `json:"preferredSourceLanguage"`
	PreferredTargetLanguage string     `json:"preferredTargetLanguage"`
	TranslationCount        int        `json:"translationCount"`
	IsActive                bool       `json:"isActive"`
	LastLogin               *time.Time `json:"lastLogin"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

// HasAPIKey reports whether an encrypted key is stored for the provider.
func (u *User) HasAPIKey(p Provider) bool {
	return u.APIKeys != nil && u.APIKeys[p] != ""
}

// SafeUser is the projection of a user that may leave the server.
type SafeUser struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	Email                   string     `json:"email"`
	Role                    Role       `json:"role"`
	HasOpenAIKey            bool       `json:"hasOpenApiKey"`
	HasGroqKey              bool       `json:"hasGroqApiKey"`
	PreferredSourceLanguage string     `json:"preferredSourceLanguage"`
	PreferredTargetLanguage string     `json:"preferredTargetLanguage"`
	TranslationCount        int        `json:"translationCount"`
	LastLogin               *time.Time `json:"lastLogin"`
	CreatedAt               time.Time  `json:"createdAt"`
}

func (u *User) Safe() SafeUser {
	return SafeUser{
		ID:                      u.ID,
		Name:                    u.Name,
		Email:                   u.Email,
		Role:                    u.Role,
		HasOpenAIKey:            u.HasAPIKey(ProviderOpenAI),
		HasGroqKey:              u.HasAPIKey(ProviderGroq),
		PreferredSourceLanguage: u.PreferredSourceLanguage,
		PreferredTargetLanguage: u.PreferredTargetLanguage,
		TranslationCount:        u.TranslationCount,
		LastLogin:               u.LastLogin,
		CreatedAt:               u.CreatedAt,
	}
}

// UserUpdate lists the fields a store update may touch. Nil means unchanged.
// An empty string in APIKeys clears that provider's key. Password is plaintext
// and hashed by the store. TranslationCountDelta is added to the stored count
// in the same write.
type UserUpdate struct {
	Name                    *string
	PreferredSourceLanguage *string
	PreferredTargetLanguage *string
	Password                *string
	IsActive                *bool
	LastLogin               *time.Time
	APIKeys                 map[Provider]string
	TranslationCountDelta   int
}

// NormalizeEmail is the case-insensitive key used by every user store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
