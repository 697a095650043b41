package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// Machine-readable error codes
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidRequestBody  = "INVALID_REQUEST_BODY"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeDuplicateCredential = "DUPLICATE_CREDENTIAL"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailNotVerified    = "EMAIL_NOT_VERIFIED"
	CodeInvalidVerification = "INVALID_VERIFICATION"
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeInvalidResetToken   = "INVALID_RESET_TOKEN"
	CodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code,omitempty"`
	Fields []FieldError `json:"fields,omitempty"`
}

// Paging describes one page of a list result
type Paging struct {
	CurrentPage int `json:"current_page"`
	Size        int `json:"size"`
	TotalPage   int `json:"total_page"`
}

// Envelope wraps every successful response
type Envelope struct {
	Code   int     `json:"code"`
	Status string  `json:"status"`
	Data   any     `json:"data"`
	Paging *Paging `json:"paging,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondData sends data wrapped in the success envelope. message becomes
// the envelope status; an empty message falls back to the status text.
func RespondData(w http.ResponseWriter, data any, message string, statusCode int) {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	RespondJSON(w, Envelope{Code: statusCode, Status: message, Data: data}, statusCode)
}

// RespondPage sends a page of results wrapped in the success envelope
func RespondPage(w http.ResponseWriter, data any, message string, paging Paging) {
	if message == "" {
		message = http.StatusText(http.StatusOK)
	}
	RespondJSON(w, Envelope{
		Code:   http.StatusOK,
		Status: message,
		Data:   data,
		Paging: &paging,
	}, http.StatusOK)
}

// RespondError sends a JSON error response with the given message and status code.
func RespondError(w http.ResponseWriter, message string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// RespondErrorWithCode sends a JSON error response with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

// RespondValidationError sends the per-field failures of a rejected request
func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondJSON(w, ErrorResponse{
		Error:  "validation failed",
		Code:   CodeValidationFailed,
		Fields: fields,
	}, http.StatusBadRequest)
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// DecodeAndValidate decodes the body into dst and validates it, writing the
// error response itself. It reports whether the handler may continue.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := DecodeJSON(r, dst); err != nil {
		RespondErrorWithCode(w, "Invalid request body", CodeInvalidRequestBody, http.StatusBadRequest)
		return false
	}
	if fields := Validate(dst); len(fields) > 0 {
		RespondValidationError(w, fields)
		return false
	}
	return true
}
