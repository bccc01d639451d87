package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/eco-queue/internal/api/shared"
	"github.com/phrazzld/eco-queue/internal/domain"
	"github.com/phrazzld/eco-queue/internal/store"
	"github.com/phrazzld/eco-queue/internal/task"
)

const genericErrorMessage = "An unexpected error occurred"

// MapErrorToStatusCode maps err to an HTTP status. Unknown errors are 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, store.ErrEcosystemNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrNotFailed),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, task.ErrUnknownType),
		errors.Is(err, task.ErrInvalidPayload),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err. Errors without a
// mapping get a generic message so driver or gateway text never leaks.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return genericErrorMessage
	}

	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrEcosystemNotFound):
		return "Ecosystem not found"
	case errors.Is(err, task.ErrNotFailed):
		return "Only failed tasks can be retried"
	case errors.Is(err, task.ErrUnknownType):
		return "Unknown task type"
	case errors.Is(err, task.ErrInvalidPayload):
		return "Invalid task payload"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	default:
		return genericErrorMessage
	}
}

// HandleAPIError writes the response for err. defaultMsg replaces the generic
// message for errors that have no safe mapping of their own.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if msg == genericErrorMessage && defaultMsg != "" {
		msg = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}

// SanitizeValidationError reports the first failing field of a validator
// error as "Invalid <Field>: <reason>", without values or struct paths.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	return fmt.Sprintf("Invalid %s: %s", verrs[0].Field(), validationTagMessage(verrs[0].Tag()))
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
