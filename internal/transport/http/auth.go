package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/service/session"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"github.com/iamasit07/audio-translator/pkg/httputil"
	"github.com/iamasit07/audio-translator/pkg/useragent"
)

const authFailed = "Authentication failed"

type AuthHandler struct {
	Sessions *session.Service
	Cookies  httputil.CookieConfig
	logger   *slog.Logger
}

func NewAuthHandler(sessions *session.Service, cookies httputil.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		Sessions: sessions,
		Cookies:  cookies,
		logger:   logger.With("component", "auth"),
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Message string          `json:"message"`
	User    domain.SafeUser `json:"user"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	errs := bindJSON(c, &req, func(r *registerRequest) {
		r.Name = strings.TrimSpace(r.Name)
		r.Email = domain.NormalizeEmail(r.Email)
	})
	if len(req.Password) >= auth.MinPasswordLength && auth.ValidatePasswordStrength(req.Password) != nil {
		errs = append(errs, FieldError{Field: "password", Message: "Password must contain uppercase, lowercase, and number"})
	}
	if errs != nil {
		respondValidation(c, errs)
		return
	}

	s, err := h.Sessions.Register(c.Request.Context(), session.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Client:   useragent.ClientInfo(c.Request),
	})
	if err != nil {
		h.fail(c, err, "register")
		return
	}

	h.startSession(c, http.StatusCreated, "Registration successful", s)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errs := bindJSON(c, &req, func(r *loginRequest) {
		r.Email = domain.NormalizeEmail(r.Email)
	}); errs != nil {
		respondValidation(c, errs)
		return
	}

	s, err := h.Sessions.Login(c.Request.Context(), session.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   useragent.ClientInfo(c.Request),
	})
	if err != nil {
		h.fail(c, err, "login")
		return
	}

	h.logger.Info("user logged in", "user_id", s.User.ID)
	h.startSession(c, http.StatusOK, "Login successful", s)
}

// Refresh rotates the refresh token from the cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	s, err := h.Sessions.Refresh(c.Request.Context(), httputil.GetRefreshToken(c.Request), useragent.ClientInfo(c.Request))
	if err != nil {
		if httputil.IsSessionTerminating(err) {
			httputil.ClearTokenCookies(c.Writer, h.Cookies)
		}
		h.fail(c, err, "refresh")
		return
	}
	h.startSession(c, http.StatusOK, "Token refreshed", s)
}

// Logout always succeeds and always clears both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Sessions.Logout(c.Request.Context(), httputil.GetRefreshToken(c.Request))
	httputil.ClearTokenCookies(c.Writer, h.Cookies)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Safe()})
}

func (h *AuthHandler) startSession(c *gin.Context, status int, message string, s *session.Session) {
	httputil.SetTokenCookies(c.Writer, h.Cookies, s.AccessToken, s.RefreshToken)
	c.JSON(status, sessionResponse{Message: message, User: s.User.Safe()})
}

func (h *AuthHandler) fail(c *gin.Context, err error, op string) {
	respondError(c, h.logger, err, authFailed, op)
}

// respondError writes the mapped error. Unmapped errors are logged in full
// and reach the client only as the fallback message.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback, op string) {
	apiErr := httputil.ErrorFor(err, fallback)
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error(op+" failed", "error", err)
	}
	if apiErr.Code == "VALIDATION_FAILED" {
		detail := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		respondValidation(c, []FieldError{{Message: detail}})
		return
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}
