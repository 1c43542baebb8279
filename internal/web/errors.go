package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to a user message and support code
//  4. The code selects the HTTP status
//  5. Technical error + context is logged with request ID for correlation
//  6. User message is written as JSON, or as an HTML fragment for browsers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvdiff/internal/core"
	"github.com/JonMunkholm/csvdiff/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and writes the mapped
// user message with the status its code calls for.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := statusFor(userMsg.Code)
	logRequestError(r, err, status)

	if isHTMX(r) || prefersHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w); err != nil {
			slog.Error("render error alert", "error", err)
		}
		return
	}

	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// logRequestError logs the technical error with the request ID. Server
// faults log at error level, client mistakes at warn.
func logRequestError(r *http.Request, err error, status int) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError || status < http.StatusBadRequest {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", core.MapError(err).Code,
		"request_id", middleware.GetReqID(r.Context()),
	)
}

// statusFor maps a support code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "CMP001":
		return http.StatusServiceUnavailable
	case "CMP002":
		return http.StatusNotFound
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE004", "KEY003", "REQ001", "REQ003":
		return http.StatusBadRequest
	case "REQ002":
		return http.StatusGatewayTimeout
	case "RATE001":
		return http.StatusTooManyRequests
	}
	switch {
	case strings.HasPrefix(code, "LOAD"), strings.HasPrefix(code, "KEY"), strings.HasPrefix(code, "DUP"):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// prefersHTML reports whether the client asked for HTML ahead of JSON,
// as a browser following an export link does.
func prefersHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	html := strings.Index(accept, "text/html")
	if html < 0 {
		return false
	}
	js := strings.Index(accept, "application/json")
	return js < 0 || html < js
}

