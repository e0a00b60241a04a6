package proxy

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Error codes returned in the error envelope
const (
	CodeInternal        = "INTERNAL_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
	CodeSubjectRequired = "SUBJECT_REQUIRED"
	CodeInvalidCustomer = "INVALID_CUSTOMER"
	CodeInvalidForm     = "INVALID_FORM"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
	CodeNotFound        = "NOT_FOUND"
)

// APIError is an error with an HTTP status and a machine-readable code
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return e.Message
}

// NewValidationError creates a 400 error
func NewValidationError(code, message string, details map[string]any) *APIError {
	if code == "" {
		code = CodeValidation
	}
	return &APIError{Status: http.StatusBadRequest, Code: code, Message: message, Details: details}
}

// NewExternalServiceError creates a 502 error for a failing upstream service
func NewExternalServiceError(code, message string, details map[string]any) *APIError {
	if code == "" {
		code = CodeExternalService
	}
	return &APIError{Status: http.StatusBadGateway, Code: code, Message: message, Details: details}
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError renders err as {"error":{...}}. In production the message of a 500 and
// all details are withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn("Handled API error",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("code", apiErr.Code),
			zap.String("message", apiErr.Message),
			zap.Any("details", apiErr.Details))
	} else {
		s.logger.Error("Unhandled error",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err))
		apiErr = &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: err.Error()}
	}

	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	body := errorBody{Code: apiErr.Code, Message: apiErr.Message}
	if body.Code == "" {
		body.Code = CodeInternal
	}
	if body.Message == "" || (status == http.StatusInternalServerError && s.production) {
		body.Message = "Internal server error"
	}
	if !s.production {
		body.Details = apiErr.Details
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}
