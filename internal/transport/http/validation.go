package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/httputil"
)

// FieldError is one entry of the errors[] list in a 400 response.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationResponse struct {
	httputil.APIError
	Errors []FieldError `json:"errors"`
}

// messages keyed by "<field>.<tag>"
var fieldMessages = map[string]string{
	"name.required":            "Name is required",
	"name.min":                 "Name must be 2-50 characters",
	"name.max":                 "Name must be 2-50 characters",
	"email.required":           "Valid email is required",
	"email.email":              "Valid email is required",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 8 characters",
	"apiKey.required":          "API key is required",
	"apiKey.min":               "Valid API key is required",
	"provider.required":        "Provider is required",
	"currentPassword.required": "Current password required",
	"newPassword.required":     "New password is required",
	"newPassword.min":          "Must be at least 8 characters",
	"text.required":            "Text is required",
	"text.max":                 "Text cannot exceed 10000 characters",
	"targetLanguage.required":  "Target language is required",
}

// maxBodyBytes caps every JSON body read by bindJSON.
const maxBodyBytes = 1 << 20

var bodyTooLarge = FieldError{Message: "Request body too large"}

// bindJSON decodes the body, lets normalize trim fields, then runs the
// struct's binding tags. A nil return means the handler may proceed.
func bindJSON[T any](c *gin.Context, req *T, normalize func(*T)) []FieldError {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := json.NewDecoder(c.Request.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return []FieldError{bodyTooLarge}
		}
		return []FieldError{{Message: "Request body must be valid JSON"}}
	}
	if normalize != nil {
		normalize(req)
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := fieldMessages[field+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid", field)
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}
	return out
}

// report fields under their JSON names
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

func respondValidation(c *gin.Context, errs []FieldError) {
	if len(errs) == 1 && errs[0] == bodyTooLarge {
		apiErr := httputil.ErrorFor(domain.ErrBodyTooLarge, "")
		c.AbortWithStatusJSON(apiErr.Status, apiErr)
		return
	}
	apiErr := httputil.ErrorFor(domain.ErrValidation, "")
	c.AbortWithStatusJSON(http.StatusBadRequest, validationResponse{APIError: apiErr, Errors: errs})
}
