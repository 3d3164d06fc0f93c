package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"github.com/iamasit07/audio-translator/pkg/httputil"
)

const (
	userKey   = "user"
	claimsKey = "claims"

	DefaultLookupTimeout = 3 * time.Second
)

type ctxKey struct{}

type identity struct {
	user   *domain.User
	claims *auth.Claims
}

// UserFinder loads the account behind a token. A nil user means it no longer exists.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Gate turns an access token into a live user. HTTP middleware and the
// WebSocket upgrade both go through Resolve.
type Gate struct {
	codec   *auth.Codec
	users   UserFinder
	timeout time.Duration
	logger  *slog.Logger
}

func NewGate(codec *auth.Codec, users UserFinder, timeout time.Duration, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Gate{codec: codec, users: users, timeout: timeout, logger: logger.With("component", "auth")}
}

// Resolve verifies the token and loads its user. Deactivated accounts are
// treated like deleted ones.
func (g *Gate) Resolve(ctx context.Context, token string) (*domain.User, *auth.Claims, error) {
	if token == "" {
		return nil, nil, domain.ErrNoToken
	}

	claims, err := g.codec.Verify(token)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	user, err := g.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, nil, domain.ErrUserNotFound
	}
	return user, claims, nil
}

// Authenticate rejects requests without a valid access token.
func (g *Gate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, claims, err := g.Resolve(c.Request.Context(), httputil.GetAccessToken(c.Request))
		if err != nil {
			g.abort(c, err)
			return
		}
		setIdentity(c, user, claims)
		c.Next()
	}
}

// OptionalAuthenticate attaches the user when the token is good and carries on regardless.
func (g *Gate) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := httputil.GetAccessToken(c.Request)
		if token != "" {
			if user, claims, err := g.Resolve(c.Request.Context(), token); err == nil {
				setIdentity(c, user, claims)
			} else if !isAuthFailure(err) {
				g.logger.Warn("optional authentication lookup failed", "error", err)
			}
		}
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			writeError(c, httputil.ErrorFor(domain.ErrNoToken, ""))
			return
		}
		if user.Role != role {
			writeError(c, httputil.ErrorFor(domain.ErrForbidden, ""))
			return
		}
		c.Next()
	}
}

func (g *Gate) abort(c *gin.Context, err error) {
	if !isAuthFailure(err) {
		g.logger.Error("authentication error", "error", err, "path", c.Request.URL.Path)
	}
	writeError(c, httputil.ErrorFor(err, "Authentication failed"))
}

func isAuthFailure(err error) bool {
	return errors.Is(err, domain.ErrNoToken) ||
		errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrUserNotFound)
}

func writeError(c *gin.Context, apiErr httputil.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

func setIdentity(c *gin.Context, user *domain.User, claims *auth.Claims) {
	c.Set(userKey, user)
	c.Set(claimsKey, claims)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, identity{user: user, claims: claims}))
}

func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}

func CurrentClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// UserFromContext is for code that only has the request context.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	id, ok := ctx.Value(ctxKey{}).(identity)
	if !ok || id.user == nil {
		return nil, false
	}
	return id.user, true
}

// Unauthorized is used by handlers that need an identity but find none.
func Unauthorized(c *gin.Context) {
	writeError(c, httputil.ErrorFor(domain.ErrNoToken, ""))
}
