package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request id; the client only sees
// the coded message from core.MapError:
//
//	{"error": "...", "message": "...", "action": "...", "code": "FILE005"}

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/moviedata/internal/core"
	"github.com/go-chi/render"
)

// errNoFile is returned when a multipart request has no "file" part.
var errNoFile = errors.New("no file provided")

// errRateLimited is what the rate limiter reports.
var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message with statusCode.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.MapError(err)

	s.requestLogger(r).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for a load or clean error.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNoFile),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrUnknownEncoding),
		errors.Is(err, core.ErrInvalidOrient):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidCSV),
		errors.Is(err, core.ErrColumnNotFound):
		return http.StatusUnprocessableEntity
	}
	var ce *core.CleanError
	if errors.As(err, &ce) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
