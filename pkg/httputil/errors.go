package httputil

import (
	"errors"
	"net/http"

	"github.com/iamasit07/audio-translator/internal/domain"
)

// APIError is the JSON body sent for every handled failure.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

var knownErrors = []struct {
	err  domain.Error
	resp APIError
}{
	{domain.ErrNoToken, APIError{http.StatusUnauthorized, "Access token required", "NO_TOKEN"}},
	{domain.ErrInvalidToken, APIError{http.StatusUnauthorized, "Invalid or expired token", "INVALID_TOKEN"}},
	{domain.ErrNoRefreshToken, APIError{http.StatusUnauthorized, "Refresh token required", "NO_REFRESH_TOKEN"}},
	{domain.ErrInvalidRefreshToken, APIError{http.StatusUnauthorized, "Invalid refresh token", "INVALID_REFRESH_TOKEN"}},
	{domain.ErrUserNotFound, APIError{http.StatusUnauthorized, "User not found", "USER_NOT_FOUND"}},
	{domain.ErrInvalidCredentials, APIError{http.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS"}},
	{domain.ErrForbidden, APIError{http.StatusForbidden, "Insufficient permissions", "FORBIDDEN"}},
	{domain.ErrDuplicateEmail, APIError{http.StatusConflict, "Email already registered", "DUPLICATE_EMAIL"}},
	{domain.ErrValidation, APIError{http.StatusBadRequest, "Validation failed", "VALIDATION_FAILED"}},
	{domain.ErrIncorrectPassword, APIError{http.StatusBadRequest, "Current password is incorrect", "INCORRECT_PASSWORD"}},
	{domain.ErrUnsupportedProvider, APIError{http.StatusBadRequest, "Unsupported provider", "UNSUPPORTED_PROVIDER"}},
	{domain.ErrInvalidAPIKey, APIError{http.StatusBadRequest, "Invalid API key - authentication failed", "INVALID_API_KEY"}},
	{domain.ErrProviderUnavailable, APIError{http.StatusBadRequest, "No API key configured for provider", "PROVIDER_UNAVAILABLE"}},
	{domain.ErrUnsupportedLanguage, APIError{http.StatusBadRequest, "Unsupported language", "UNSUPPORTED_LANGUAGE"}},
	{domain.ErrBodyTooLarge, APIError{http.StatusRequestEntityTooLarge, "Request body too large", "PAYLOAD_TOO_LARGE"}},
	{domain.ErrTranslationNotFound, APIError{http.StatusNotFound, "Translation not found", "NOT_FOUND"}},
	{domain.ErrProviderRateLimited, APIError{http.StatusTooManyRequests, "Provider rate limit exceeded. Please try again later.", "PROVIDER_RATE_LIMITED"}},
	{domain.ErrProviderFailed, APIError{http.StatusBadGateway, "Translation provider request failed", "PROVIDER_ERROR"}},
}

// ErrorFor maps err onto a response. Unknown errors become a 500 with the
// given fallback message and no detail.
func ErrorFor(err error, fallback string) APIError {
	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			return known.resp
		}
	}
	return APIError{Status: http.StatusInternalServerError, Message: fallback}
}

// IsSessionTerminating reports whether the client's cookies should be cleared.
func IsSessionTerminating(err error) bool {
	return errors.Is(err, domain.ErrInvalidRefreshToken) || errors.Is(err, domain.ErrUserNotFound)
}
