package app

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidState is returned when a lifecycle method runs out of order.
var ErrInvalidState = errors.New("kubit: invalid application state")

// Exception is an application error carrying a stable code and an HTTP
// status for the exception handler.
type Exception struct {
	Code    string
	Message string
	Status  int
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches exceptions by code.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	return ok && t.Code == e.Code
}

// AppKeyException reports a missing or unusable application key.
type AppKeyException struct {
	Exception
}

// Is matches app key exceptions by code.
func (e *AppKeyException) Is(target error) bool {
	t, ok := target.(*AppKeyException)
	return ok && t.Code == e.Code
}

// MissingAppKey is returned by Setup when no app key is configured.
func MissingAppKey() *AppKeyException {
	return &AppKeyException{Exception{
		Code:    "E_MISSING_APP_KEY",
		Message: "Missing APP_KEY environment variable. It is required to keep your app secure",
		Status:  http.StatusInternalServerError,
	}}
}

// InvalidAppKey is returned by Setup when the app key is too short.
func InvalidAppKey() *AppKeyException {
	return &AppKeyException{Exception{
		Code:    "E_INVALID_APP_KEY",
		Message: fmt.Sprintf("APP_KEY must be at least %d characters long", MinAppKeyLength),
		Status:  http.StatusInternalServerError,
	}}
}

// ProviderError wraps a failure of one provider lifecycle hook.
type ProviderError struct {
	Provider string
	Phase    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed to %s: %v", e.Provider, e.Phase, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
