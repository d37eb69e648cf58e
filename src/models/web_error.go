package models

import (
	"errors"
	"net/http"
)

// WebError pins an HTTP status onto an error returned by a handler.
type WebError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *WebError) Error() string {
	if e.Cause == nil {
		return e.Message
	}

	if e.Message == "" {
		return e.Cause.Error()
	}

	return e.Message + ": " + e.Cause.Error()
}

func (e *WebError) Unwrap() error {
	return e.Cause
}

func NewWebError(statusCode int, message string, cause error) *WebError {
	return &WebError{
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

var conflictErrors = []error{
	ErrDuplicateRecord,
	ErrInvalidTransition,
	ErrCommissionAlreadyReversed,
	ErrTradeNotOpen,
	ErrCopyTradeNotOpen,
	ErrStaleChallengeAccount,
	ErrAccountNotActive,
	ErrMasterNotActive,
}

// HTTPStatus maps an error to the status the router answers with. An explicit WebError wins.
func HTTPStatus(err error) int {
	var webErr *WebError
	if errors.As(err, &webErr) {
		return webErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInsufficientFreeMargin),
		errors.Is(err, ErrNoPriceAvailable):
		return http.StatusUnprocessableEntity
	}

	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}
