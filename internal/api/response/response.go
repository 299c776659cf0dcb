// Package response writes JSON and problem responses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/terracast/terracast/internal/api/middleware"
	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/apperr"
)

// JSON writes data as JSON with the given status code and echoes the
// request ID.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a problem response for the current request.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// FromError writes the problem matching err's apperr kind. Server-side
// failures are logged with the request ID.
func FromError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	requestID := middleware.GetRequestID(r.Context())
	problem := models.ProblemFromError(requestID, err)

	if problem.Status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", requestID).
			Str("kind", string(apperr.KindOf(err))).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	Error(w, r, problem)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// ValidationFailed writes a 400 problem listing every failed field of a
// validator error. Other errors become a plain 400.
func ValidationFailed(w http.ResponseWriter, r *http.Request, err error) {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		BadRequest(w, r, err.Error(), nil)
		return
	}

	fields := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	BadRequest(w, r, fields[0].Field+" "+fields[0].Message, fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// MethodNotAllowed writes a 405 problem.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewProblem(models.ProblemTypeNotFound, "Method not allowed",
		http.StatusMethodNotAllowed, middleware.GetRequestID(r.Context())).
		WithDetail(r.Method+" is not supported on "+r.URL.Path))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
