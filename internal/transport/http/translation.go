package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/service/translation"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
)

// TranslationHandler serves /api/translate. Every route needs a signed-in user.
type TranslationHandler struct {
	Translations *translation.Service
	logger       *slog.Logger
}

func NewTranslationHandler(translations *translation.Service, logger *slog.Logger) *TranslationHandler {
	return &TranslationHandler{
		Translations: translations,
		logger:       logger.With("component", "translate"),
	}
}

type textTranslationRequest struct {
	Text           string `json:"text" binding:"required,max=10000"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage" binding:"required"`
	Provider       string `json:"provider" binding:"required"`
}

type textTranslationResponse struct {
	TranslatedText       string   `json:"translatedText"`
	DetectedLanguage     string   `json:"detectedLanguage,omitempty"`
	DetectedLanguageName string   `json:"detectedLanguageName,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty"`
	TranslationID        string   `json:"translationId"`
}

func (h *TranslationHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": domain.SupportedLanguages})
}

func (h *TranslationHandler) TranslateText(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	var req textTranslationRequest
	if errs := bindJSON(c, &req, func(r *textTranslationRequest) {
		r.Text = strings.TrimSpace(r.Text)
		r.SourceLanguage = strings.TrimSpace(r.SourceLanguage)
		r.TargetLanguage = strings.TrimSpace(r.TargetLanguage)
		r.Provider = strings.TrimSpace(r.Provider)
	}); errs != nil {
		respondValidation(c, errs)
		return
	}

	tr, err := h.Translations.TranslateText(c.Request.Context(), user, translation.TextInput{
		Text:           req.Text,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Provider:       req.Provider,
	})
	if err != nil {
		respondError(c, h.logger, err, requestFailed, "translate text")
		return
	}

	resp := textTranslationResponse{
		TranslatedText:   tr.TranslatedText,
		DetectedLanguage: tr.DetectedLanguage,
		Confidence:       tr.Confidence,
		TranslationID:    tr.ID,
	}
	if tr.DetectedLanguage != "" {
		resp.DetectedLanguageName = domain.LanguageName(tr.DetectedLanguage)
	}
	c.JSON(http.StatusOK, resp)
}

// History reads page, limit and targetLanguage from the query string.
// Unparseable numbers fall back to the defaults.
func (h *TranslationHandler) History(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.Translations.History(c.Request.Context(), user.ID, page, limit, c.Query("targetLanguage"))
	if err != nil {
		respondError(c, h.logger, err, requestFailed, "list history")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TranslationHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		middleware.Unauthorized(c)
		return
	}

	if err := h.Translations.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, h.logger, err, requestFailed, "delete translation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Translation deleted"})
}
