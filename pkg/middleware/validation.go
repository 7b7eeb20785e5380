package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	MaxBodySize int64 // Maximum request body size in bytes
	Logger      *zap.Logger
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve ValidationErrors) Error() string {
	var messages []string
	for _, err := range ve.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct checks the `validate` tags of s.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fe.Field(),
			Message: describe(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// RequestValidation middleware validates request body size and JSON format
func RequestValidation(config ValidationConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut {
				next.ServeHTTP(w, r)
				return
			}

			if config.MaxBodySize > 0 && r.ContentLength > config.MaxBodySize {
				config.Logger.Warn("Request body too large",
					zap.Int64("content_length", r.ContentLength),
					zap.Int64("max_size", config.MaxBodySize),
					zap.String("path", r.URL.Path))

				WriteError(w, errors.NewInputError("request body too large").
					WithDetails(fmt.Sprintf("maximum size: %d bytes", config.MaxBodySize)), http.StatusRequestEntityTooLarge)
				return
			}

			reader := io.Reader(r.Body)
			if config.MaxBodySize > 0 {
				reader = io.LimitReader(r.Body, config.MaxBodySize)
			}
			body, err := io.ReadAll(reader)
			if err != nil {
				config.Logger.Error("Failed to read request body", zap.Error(err))
				WriteError(w, errors.NewInputError("failed to read request body"), http.StatusBadRequest)
				return
			}
			r.Body.Close()

			if len(body) > 0 && !json.Valid(body) {
				config.Logger.Warn("Invalid JSON format", zap.String("path", r.URL.Path))
				WriteError(w, errors.NewInputError("invalid JSON format"), http.StatusBadRequest)
				return
			}

			// Restore body for downstream handlers
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as the standard JSON error body. A zero status is
// derived from the error.
func WriteError(w http.ResponseWriter, err error, status int) {
	if status == 0 {
		status = errors.StatusFor(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errors.ToErrorResponse(err))
}
