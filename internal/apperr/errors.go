// Package apperr holds the error taxonomy shared by every vaultchat layer.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrConfiguration marks missing or malformed settings.
	ErrConfiguration = errors.New("configuration error")

	// Model service failures.
	ErrAuthentication = errors.New("model service: authentication failed")
	ErrPermission     = errors.New("model service: permission denied")
	ErrTransport      = errors.New("model service: transport error")

	ErrPersistence = errors.New("persistence error")
)

// OpError attaches the failing operation name to an underlying cause.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

// Op wraps err with the operation name. A nil err stays nil.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// IsModelError reports whether err came from the language-model service.
func IsModelError(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrTransport)
}
