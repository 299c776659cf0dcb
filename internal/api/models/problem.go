package models

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/terracast/terracast/internal/apperr"
)

// Problem is an RFC7807 error response. Error repeats the detail so that
// clients reading a plain {"error": "..."} body keep working.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Error    string       `json:"error"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError is a validation error on a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemTypeBase = "https://terracast.dev/problems/"

// Problem types.
const (
	ProblemTypeValidation      = problemTypeBase + "validation-error"
	ProblemTypeComputation     = problemTypeBase + "computation-error"
	ProblemTypeUnauthorized    = problemTypeBase + "unauthorized"
	ProblemTypeForbidden       = problemTypeBase + "forbidden"
	ProblemTypeNotFound        = problemTypeBase + "not-found"
	ProblemTypeUnsupportedType = problemTypeBase + "unsupported-media-type"
	ProblemTypeTooManyRequests = problemTypeBase + "too-many-requests"
	ProblemTypeUpstream        = problemTypeBase + "upstream-error"
	ProblemTypeInternal        = problemTypeBase + "internal-error"
	ProblemTypeUnavailable     = problemTypeBase + "service-unavailable"
)

// NewProblem creates a Problem.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
		Error:   title,
	}
}

// WithDetail sets the detail message, which also becomes the error member.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	if detail != "" {
		p.Error = detail
	}
	return p
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as application/problem+json.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return NewProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID).
		WithDetail(detail).
		WithErrors(errors)
}

// NewUnauthorized creates a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID).WithDetail(detail)
}

// NewForbidden creates a 403 problem.
func NewForbidden(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeForbidden, "Forbidden", http.StatusForbidden, traceID).WithDetail(detail)
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID).WithDetail(detail)
}

// NewUnsupportedMediaType creates a 415 problem.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnsupportedType, "Unsupported media type", http.StatusUnsupportedMediaType, traceID).WithDetail(detail)
}

// NewUnprocessable creates a 422 problem for inputs the pipeline cannot
// compute features from.
func NewUnprocessable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeComputation, "Computation error", http.StatusUnprocessableEntity, traceID).WithDetail(detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID).WithDetail(detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID).WithDetail(detail)
}

// NewBadGateway creates a 502 problem.
func NewBadGateway(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUpstream, "Upstream error", http.StatusBadGateway, traceID).WithDetail(detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID).WithDetail(detail)
}

// ProblemFromError maps a pipeline error to a problem using its apperr kind.
// Internal errors keep their message out of the response.
func ProblemFromError(traceID string, err error) *Problem {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return NewInternalError(traceID, "an unexpected error occurred")
	}

	switch appErr.Kind {
	case apperr.KindValidation:
		var fields []FieldError
		if appErr.Field != "" {
			fields = []FieldError{{Field: appErr.Field, Message: appErr.Message, Code: "invalid"}}
		}
		return NewBadRequest(traceID, err.Error(), fields)
	case apperr.KindComputation:
		return NewUnprocessable(traceID, err.Error())
	case apperr.KindExternal:
		return NewBadGateway(traceID, err.Error())
	case apperr.KindUnavailable:
		return NewServiceUnavailable(traceID, err.Error())
	default:
		return NewInternalError(traceID, "an unexpected error occurred")
	}
}
