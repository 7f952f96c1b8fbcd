package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WarnContext(r.Context(), "write response failed", logger.Error(err))
	}
}

func (s *Server) ok(w http.ResponseWriter, r *http.Request, data any) {
	s.writeJSON(w, r, http.StatusOK, Envelope{Data: data})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := errorToDetail(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	s.writeJSON(w, r, status, Envelope{Error: detail})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindBusinessRule:
		return http.StatusConflict
	case errs.KindIntegrity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorToDetail(err error) (int, *ErrorDetail) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		detail := &ErrorDetail{
			Code:    "validation_error",
			Message: "request validation failed",
			Details: make(map[string][]string, len(verrs)),
		}
		for _, fe := range verrs {
			detail.Details[fe.Field()] = append(detail.Details[fe.Field()], fieldMessage(fe))
		}
		return http.StatusBadRequest, detail
	}

	if errors.Is(err, ErrInvalidJSON) || errors.Is(err, ErrUnsupportedMediaType) {
		return http.StatusBadRequest, &ErrorDetail{Code: "invalid_request", Message: err.Error()}
	}

	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		return status, &ErrorDetail{Code: "internal_error", Message: http.StatusText(status)}
	}
	return status, &ErrorDetail{Code: errs.CodeOf(err), Message: err.Error()}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
