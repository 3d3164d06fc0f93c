package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/service/account"
	"github.com/iamasit07/audio-translator/internal/service/provider"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
	"github.com/iamasit07/audio-translator/pkg/httputil"
)

const requestFailed = "Internal server error"

// UserHandler serves the signed-in user's own account.
type UserHandler struct {
	Accounts  *account.Service
	Providers *provider.Resolver
	Cookies   httputil.CookieConfig
	logger    *slog.Logger
}

func NewUserHandler(accounts *account.Service, providers *provider.Resolver, cookies httputil.CookieConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		Accounts:  accounts,
		Providers: providers,
		Cookies:   cookies,
		logger:    logger.With("component", "user"),
	}
}

type profileRequest struct {
	Name                    *string `json:"name"`
	PreferredSourceLanguage *string `json:"preferredSourceLanguage"`
	PreferredTargetLanguage *string `json:"preferredTargetLanguage"`
}

type apiKeyRequest struct {
	APIKey   string `json:"apiKey" binding:"required,min=10"`
	Provider string `json:"provider" binding:"required"`
}

type providerRequest struct {
	Provider string `json:"provider" binding:"required"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Safe()})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	var req profileRequest
	if errs := bindJSON(c, &req, nil); errs != nil {
		respondValidation(c, errs)
		return
	}

	updated, err := h.Accounts.UpdateProfile(c.Request.Context(), user.ID, account.ProfileInput{
		Name:                    req.Name,
		PreferredSourceLanguage: req.PreferredSourceLanguage,
		PreferredTargetLanguage: req.PreferredTargetLanguage,
	})
	if err != nil {
		respondError(c, h.logger, err, requestFailed, "update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": updated.Safe()})
}

func (h *UserHandler) SaveAPIKey(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	var req apiKeyRequest
	if errs := bindJSON(c, &req, func(r *apiKeyRequest) {
		r.APIKey = strings.TrimSpace(r.APIKey)
		r.Provider = strings.TrimSpace(r.Provider)
	}); errs != nil {
		respondValidation(c, errs)
		return
	}

	if _, err := h.Accounts.SaveAPIKey(c.Request.Context(), user.ID, req.Provider, req.APIKey); err != nil {
		respondError(c, h.logger, err, requestFailed, "save api key")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key saved successfully", "hasApiKey": true})
}

func (h *UserHandler) DeleteAPIKey(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	var req providerRequest
	if errs := bindJSON(c, &req, func(r *providerRequest) {
		r.Provider = strings.TrimSpace(r.Provider)
	}); errs != nil {
		respondValidation(c, errs)
		return
	}

	if _, err := h.Accounts.DeleteAPIKey(c.Request.Context(), user.ID, req.Provider); err != nil {
		respondError(c, h.logger, err, requestFailed, "delete api key")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key removed", "hasApiKey": false})
}

// ListProviders reports, per provider, whether requests would run on the
// user's own key, the system key or nothing.
func (h *UserHandler) ListProviders(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": h.Providers.Available(user)})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	var req passwordRequest
	if errs := bindJSON(c, &req, nil); errs != nil {
		respondValidation(c, errs)
		return
	}

	if err := h.Accounts.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, h.logger, err, requestFailed, "change password")
		return
	}

	httputil.ClearTokenCookies(c.Writer, h.Cookies)
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. Please log in again."})
}

func (h *UserHandler) DeleteAccount(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	var req deleteAccountRequest
	if errs := bindJSON(c, &req, nil); errs != nil {
		respondValidation(c, errs)
		return
	}

	if err := h.Accounts.Deactivate(c.Request.Context(), user.ID, req.Password); err != nil {
		respondError(c, h.logger, err, requestFailed, "deactivate account")
		return
	}

	httputil.ClearTokenCookies(c.Writer, h.Cookies)
	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated successfully"})
}
