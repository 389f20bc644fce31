// Package auth maneja el ciclo de vida de la sesión del navegador contra el
// proveedor OIDC del backend: inicio de login, callback, lectura y cierre.
//
// La cookie sólo lleva un ID opaco; la sesión vive cifrada en cache.
package auth

import "time"

// Session es lo que ve la página: perfil, usuario y cuenta vinculada.
type Session struct {
	Profile Profile   `json:"profile"`
	User    User      `json:"user"`
	Account Account   `json:"account"`
	Expires time.Time `json:"expires"`
}

// Profile son los claims de identidad tal como los entrega el proveedor.
type Profile struct {
	Sub               string `json:"sub"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	Picture           string `json:"picture,omitempty"`
	Locale            string `json:"locale,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Account guarda los tokens emitidos por el proveedor.
type Account struct {
	Provider          string `json:"provider"`
	Type              string `json:"type"`
	ProviderAccountID string `json:"provider_account_id"`
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	IDToken           string `json:"id_token,omitempty"`
	TokenType         string `json:"token_type,omitempty"`
	Scope             string `json:"scope,omitempty"`
	ExpiresAt         int64  `json:"expires_at,omitempty"`
}

// Expired reporta si la sesión venció respecto de now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && !now.Before(s.Expires)
}

// pending es el estado de un login en curso, guardado bajo el state.
type pending struct {
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	Verifier  string    `json:"verifier"`
	ReturnTo  string    `json:"return_to"`
	CreatedAt time.Time `json:"created_at"`
}
