package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/campusconnect/backend/internal/authz"
	"github.com/campusconnect/backend/internal/models"
	"github.com/campusconnect/backend/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1_048_576 // 1 MB

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message" example:"Logout successful"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a validator that reports JSON field names and knows the
// "role" tag.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// fieldError is a validation failure detected outside struct tags.
type fieldError struct {
	field string
	msg   string
}

func (e fieldError) Error() string { return e.field + ": " + e.msg }

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		var verrs validator.ValidationErrors
		var ferr fieldError
		switch {
		case errors.As(validationErr, &verrs):
			for _, err := range verrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		case errors.As(validationErr, &ferr):
			errorResp.Details[ferr.field] = ferr.msg
		}
	}

	writeJSON(w, statusCode, errorResp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var errMultipleObjects = errors.New("request body must only contain a single JSON object")

// decodeJSON reads exactly one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errMultipleObjects
	}
	return nil
}

// bind decodes and validates the body, answering 400 itself on failure.
func bind(w http.ResponseWriter, r *http.Request, v *ValidationHelper, log logrus.FieldLogger, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		log.WithError(err).Debug("Invalid request body")
		if errors.Is(err, errMultipleObjects) {
			SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		} else {
			SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		}
		return false
	}
	if err := v.ValidateStruct(dst); err != nil {
		log.WithError(err).Debug("Validation failed")
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// writeStoreError maps domain errors to HTTP. resource names the thing in messages.
func writeStoreError(w http.ResponseWriter, log logrus.FieldLogger, err error, resource string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		SendErrorResponse(w, resource+" not found", http.StatusNotFound, nil)
	case errors.Is(err, store.ErrAlreadyExists):
		SendErrorResponse(w, resource+" already exists", http.StatusBadRequest, nil)
	case errors.Is(err, authz.ErrForbidden):
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
	default:
		log.WithError(err).WithField("resource", resource).Error("Request failed")
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
	}
}

// pageFromQuery reads limit and offset. Invalid values fall back to the store defaults.
func pageFromQuery(r *http.Request) store.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return store.Page{Limit: limit, Offset: offset}
}
