package domain

// basic errors that can occur in the auth core
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// Authentication failures (401)
	ErrNoToken             Error = "authentication required"
	ErrInvalidToken        Error = "invalid or expired token"
	ErrNoRefreshToken      Error = "refresh token required"
	ErrInvalidRefreshToken Error = "invalid refresh token"
	ErrUserNotFound        Error = "user not found"
	ErrInvalidCredentials  Error = "invalid email or password"

	// Authorization (403)
	ErrForbidden Error = "insufficient privileges"

	// Conflict (409)
	ErrDuplicateEmail Error = "email already registered"

	// Input problems (400)
	ErrValidation          Error = "validation failed"
	ErrIncorrectPassword   Error = "password is incorrect"
	ErrUnsupportedProvider Error = "unsupported provider"
	ErrProviderUnavailable Error = "no api key configured for provider"
	ErrInvalidAPIKey       Error = "api key rejected by provider"
	ErrUnsupportedLanguage Error = "unsupported language"
	ErrBodyTooLarge        Error = "request body too large"

	// Not found (404)
	ErrTranslationNotFound Error = "translation not found"

	// Upstream provider problems
	ErrProviderRateLimited Error = "provider rate limit exceeded"
	ErrProviderFailed      Error = "provider request failed"

	// Key-value store miss
	ErrKeyNotFound Error = "key not found"
)
