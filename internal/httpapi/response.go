package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/casthq/warden/pkg/errors"
)

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *errorBody `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// errorBody is the wire form of a platform error. Internal errors are
// collapsed to a generic message so no cause detail leaks out.
type errorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.log.Warn("encoding response", zap.Error(err))
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, status int, data any) {
	s.writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError maps the error's taxonomy code to an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorStatus(w, errors.HTTPStatus(err), err)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, envelope{Success: false, Error: toErrorBody(err)})
}

func toErrorBody(err error) *errorBody {
	var we *errors.WardenError
	if !errors.As(err, &we) || we.Code == errors.CodeInternal {
		return &errorBody{Code: errors.CodeInternal, Message: "internal error"}
	}
	return &errorBody{
		Code:       we.Code,
		Message:    we.Message,
		Details:    we.Details,
		Suggestion: we.Suggestion,
	}
}

// decodeBody parses a JSON request body into dst, rejecting unknown
// fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("invalid request body: %v", err)
	}
	return nil
}
