package responder

import (
	"net/http"

	"github.com/leeforge/recipemedia/json"
)

var encodeFailedBody = []byte("{\"error\":{\"code\":5000,\"message\":\"encode failed\"}}")

// writeJSON is the internal helper for all responses
func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailedBody)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// Write sends a success response with data
func Write(w http.ResponseWriter, r *http.Request, status int, data any, opts ...Option) {
	writeJSON(w, status, &Response{
		Data: data,
		Meta: *NewMeta(opts...),
	})
}

// WriteError sends an error response
func WriteError(w http.ResponseWriter, r *http.Request, status int, err Error, opts ...Option) {
	writeJSON(w, status, &Response{
		Error: &err,
		Meta:  *NewMeta(opts...),
	})
}

// OK responds with 200 OK and data
func OK(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusOK, data, opts...)
}

// Created responds with 201 Created and data
func Created(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusCreated, data, opts...)
}

// BadRequest responds with 400 Bad Request
func BadRequest(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewError(ErrCodeBadRequest, message), opts...)
}

// NotFound responds with 404 Not Found
func NotFound(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusNotFound, NewError(ErrCodeNotFound, message), opts...)
}

// ValidationError responds with 400 Bad Request and field details
func ValidationError(w http.ResponseWriter, r *http.Request, details []FieldError, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeValidationFailed, "", details), opts...)
}

// InternalServerError responds with 500 Internal Server Error
func InternalServerError(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusInternalServerError, NewError(ErrCodeInternalServer, message), opts...)
}

// CustomError responds with custom status code and error
func CustomError(w http.ResponseWriter, r *http.Request, status int, code int, message string, details any, opts ...Option) {
	WriteError(w, r, status, NewErrorWithDetails(code, message, details), opts...)
}
