package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/recordmatch/internal/match"
	"github.com/sells-group/recordmatch/internal/runner"
	"github.com/sells-group/recordmatch/internal/sheet"
	"github.com/sells-group/recordmatch/internal/store"
)

// errBadRequest marks request validation failures raised by the handlers.
var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }
func (e badRequest) Unwrap() error { return errBadRequest }

func invalid(msg string) error { return badRequest{msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	var perr *runner.ParseError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, match.ErrResourceExhausted):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, match.ErrInvalidArgument),
		errors.Is(err, sheet.ErrUnsupportedFormat),
		errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError sends {"error": ...}. Internal errors are logged and their
// details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	var br badRequest
	if errors.As(err, &br) {
		msg = br.msg
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
