package auth

import (
	"errors"
	"fmt"
)

var (
	ErrStateInvalid  = errors.New("auth: invalid state")
	ErrStateExpired  = errors.New("auth: state expired or already used")
	ErrMissingCode   = errors.New("auth: missing authorization code")
	ErrProviderError = errors.New("auth: provider returned an error")
	ErrExchange      = errors.New("auth: code exchange failed")
	ErrTokenInvalid  = errors.New("auth: id_token rejected")
	ErrStore         = errors.New("auth: session store failure")
)

// ProviderError es el error=... que el proveedor devuelve en el callback.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("auth: provider error %q", e.Code)
	}
	return fmt.Sprintf("auth: provider error %q: %s", e.Code, e.Description)
}

func (e *ProviderError) Unwrap() error { return ErrProviderError }

// códigos de error OAuth2 que se reenvían tal cual a la página
var passthroughCodes = map[string]bool{
	"access_denied":             true,
	"login_required":            true,
	"consent_required":          true,
	"interaction_required":      true,
	"temporarily_unavailable":   true,
	"unauthorized_client":       true,
	"invalid_scope":             true,
	"unsupported_response_type": true,
}

// ErrorCode mapea un error del flujo a un código corto para ?auth_error=.
func ErrorCode(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		if passthroughCodes[pe.Code] {
			return pe.Code
		}
		return "provider_error"
	case errors.Is(err, ErrStateInvalid):
		return "state_invalid"
	case errors.Is(err, ErrStateExpired):
		return "state_expired"
	case errors.Is(err, ErrMissingCode):
		return "missing_code"
	case errors.Is(err, ErrExchange):
		return "exchange_failed"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	default:
		return "server_error"
	}
}
