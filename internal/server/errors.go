package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/listing-auditor/internal/reference"
	"github.com/jonathan/listing-auditor/internal/schemas"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrRunNotFound indicates an audit run was not found
type ErrRunNotFound struct {
	RunID uuid.UUID
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("audit run not found: %s", e.RunID)
}

// ErrHistoryUnavailable indicates the server has no database for run history
type ErrHistoryUnavailable struct{}

func (e *ErrHistoryUnavailable) Error() string {
	return "audit history requires a database"
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Input errors from the reference loader and schema validation are client errors.
func HTTPStatus(err error) int {
	var (
		validationErr  *ErrValidation
		notFoundErr    *ErrRunNotFound
		unavailableErr *ErrHistoryUnavailable
		missingColErr  *reference.MissingColumnError
		loadErr        *reference.LoadError
		schemaErr      *schemas.ValidationError
		schemaLoadErr  *schemas.SchemaLoadError
		maxBytesErr    *http.MaxBytesError
	)

	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &validationErr),
		errors.As(err, &missingColErr),
		errors.As(err, &loadErr),
		errors.As(err, &schemaErr),
		errors.As(err, &schemaLoadErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &unavailableErr):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
