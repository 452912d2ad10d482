package bill

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by the database when a record does not exist
var ErrNotFound = errors.New("not found")

// ValidationKind identifies why user input was rejected
type ValidationKind string

const (
	InvalidFileType   ValidationKind = "invalid_file_type"
	MissingAttachment ValidationKind = "missing_attachment"
	MissingField      ValidationKind = "missing_field"
	InvalidDate       ValidationKind = "invalid_date"
	InvalidAmount     ValidationKind = "invalid_amount"
	InvalidVAT        ValidationKind = "invalid_vat"
	UnknownAttachment ValidationKind = "unknown_attachment"
)

// ValidationError is returned when a file or form value is rejected
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case InvalidFileType:
		return fmt.Sprintf("invalid file type %q: only png, jpg and jpeg are accepted", e.Value)
	case MissingAttachment:
		return "no receipt attached"
	case MissingField:
		return fmt.Sprintf("%s is required", e.Field)
	case UnknownAttachment:
		return fmt.Sprintf("receipt %q was not uploaded by this user", e.Value)
	default:
		return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
	}
}

// StoreKind classifies a store failure so callers can choose a message
type StoreKind string

const (
	NotFound    StoreKind = "not_found"
	ServerError StoreKind = "server_error"
	Unknown     StoreKind = "unknown"
)

// StoreError wraps a failed store call
type StoreError struct {
	Kind StoreKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// UnknownErrorMessage is shown for failures that are neither 404 nor 500.
// The cause stays in the logs.
const UnknownErrorMessage = "Erreur inattendue"

// Message returns the text shown to the user on the error page
func (e *StoreError) Message() string {
	switch e.Kind {
	case NotFound:
		return "Erreur 404"
	case ServerError:
		return "Erreur 500"
	default:
		return UnknownErrorMessage
	}
}

// ClassifyStoreError turns any store failure into a *StoreError.
// Remote services that only report a message are matched on the
// "Erreur 404" and "Erreur 500" forms.
func ClassifyStoreError(err error) *StoreError {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, ErrNotFound) {
		return &StoreError{Kind: NotFound, Err: err}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Erreur 404"):
		return &StoreError{Kind: NotFound, Err: err}
	case strings.Contains(msg, "Erreur 500"):
		return &StoreError{Kind: ServerError, Err: err}
	}
	return &StoreError{Kind: Unknown, Err: err}
}
