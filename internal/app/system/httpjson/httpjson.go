// Package httpjson writes the API's JSON success and error envelopes.
//
// Every failure body carries at least a "message" field; machine-readable
// cases (e.g. a church admin whose application is still under review) add a
// "code" field the frontend can branch on.
package httpjson

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Write encodes v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Message writes a {"message": ...} body with the given status.
func Message(w http.ResponseWriter, status int, msg string) {
	Write(w, status, ErrorBody{Message: msg})
}

// Error writes an error body with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, ErrorBody{Message: msg})
}

// ErrorCode writes an error body with a machine-readable code.
func ErrorCode(w http.ResponseWriter, status int, msg, code string) {
	Write(w, status, ErrorBody{Message: msg, Code: code})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, msg string) {
	Error(w, http.StatusBadRequest, msg)
}

// Unauthorized writes a 401 error.
func Unauthorized(w http.ResponseWriter, msg string) {
	Error(w, http.StatusUnauthorized, msg)
}

// Forbidden writes a 403 error.
func Forbidden(w http.ResponseWriter, msg string) {
	Error(w, http.StatusForbidden, msg)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, msg string) {
	Error(w, http.StatusNotFound, msg)
}

// ServerError writes a generic 500 error. Internals are logged by the
// caller, never surfaced here.
func ServerError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "A server error occurred.")
}

// Decode parses a JSON request body into dst. Returns false (after writing
// a 400) when the body is malformed.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "Invalid request body.")
		return false
	}
	return true
}
