package auth

import (
	"errors"
	"fmt"

	"github.com/geoapp/geoapp-api/internal/platform/httpx"
)

// ErrFatalConfig marks signing or bootstrap misconfiguration. It must abort
// startup.
var ErrFatalConfig = errors.New("auth: fatal configuration")

// ErrInvalidToken is returned by the verifier for any rejected token.
var ErrInvalidToken = fmt.Errorf("auth: invalid token: %w", httpx.ErrUnauthorized)

func validationError(format string, args ...any) error {
	return fmt.Errorf("auth: %s: %w", fmt.Sprintf(format, args...), httpx.ErrValidation)
}

func authorizationError(format string, args ...any) error {
	return fmt.Errorf("auth: %s: %w", fmt.Sprintf(format, args...), httpx.ErrForbidden)
}
