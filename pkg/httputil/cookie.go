package httputil

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"

	AccessCookiePath  = "/"
	RefreshCookiePath = "/api/auth"
)

// CookieConfig holds the attributes shared by both auth cookies.
type CookieConfig struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetTokenCookies writes the access and refresh cookies for a fresh session.
func SetTokenCookies(w http.ResponseWriter, cfg CookieConfig, accessToken, refreshToken string) {
	http.SetCookie(w, cfg.cookie(AccessCookieName, accessToken, AccessCookiePath, int(cfg.AccessTTL.Seconds())))
	http.SetCookie(w, cfg.cookie(RefreshCookieName, refreshToken, RefreshCookiePath, int(cfg.RefreshTTL.Seconds())))
}

// ClearTokenCookies expires both cookies; paths must match the ones they were set with.
func ClearTokenCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessCookieName, "", AccessCookiePath, -1))
	http.SetCookie(w, cfg.cookie(RefreshCookieName, "", RefreshCookiePath, -1))
}

func (cfg CookieConfig) cookie(name, value, path string, maxAge int) *http.Cookie {
	sameSite := cfg.SameSite
	secure := cfg.Secure
	// browsers drop SameSite=None cookies without Secure
	if sameSite == http.SameSiteNoneMode {
		secure = true
	}
	if sameSite == http.SameSiteDefaultMode {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	}
}

// GetAccessToken extracts the access token from the cookie, falling back to
// an Authorization: Bearer header.
func GetAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func GetRefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
