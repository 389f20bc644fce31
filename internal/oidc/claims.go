package oidc

import (
	"context"
	"fmt"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Claims del id_token / userinfo que mapeamos a la sesión.
type Claims struct {
	Subject           string `json:"sub"`
	Nonce             string `json:"nonce,omitempty"`
	Azp               string `json:"azp,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
	Locale            string `json:"locale,omitempty"`
}

// Merge completa los campos de perfil vacíos con los de other (userinfo).
// sub no se toca.
func (c *Claims) Merge(other *Claims) {
	if other == nil {
		return
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&c.Email, other.Email)
	fill(&c.Name, other.Name)
	fill(&c.GivenName, other.GivenName)
	fill(&c.FamilyName, other.FamilyName)
	fill(&c.PreferredUsername, other.PreferredUsername)
	fill(&c.Picture, other.Picture)
	fill(&c.Locale, other.Locale)
	if !c.EmailVerified && other.Email == c.Email {
		c.EmailVerified = other.EmailVerified
	}
}

// VerifyIDToken valida firma, iss, aud y exp con el verifier de go-oidc y
// después azp, sub y nonce, que la librería no mira.
func (c *Client) VerifyIDToken(ctx context.Context, raw, expectedNonce string) (*Claims, error) {
	p, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}
	v := p.Verifier(&gooidc.Config{
		ClientID:             c.cfg.ClientID,
		SupportedSigningAlgs: []string{gooidc.RS256},
		// exp con margen de reloj
		Now: func() time.Time { return c.now().Add(-clockLeeway) },
	})
	idt, err := v.Verify(gooidc.ClientContext(ctx, c.http), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	var claims Claims
	if err := idt.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	// con varias audiencias azp debe ser el client_id
	if len(idt.Audience) > 1 && claims.Azp != c.cfg.ClientID {
		return nil, fmt.Errorf("%w: azp mismatch", ErrInvalidToken)
	}
	if claims.Azp != "" && claims.Azp != c.cfg.ClientID {
		return nil, fmt.Errorf("%w: azp mismatch", ErrInvalidToken)
	}
	if expectedNonce != "" && idt.Nonce != expectedNonce {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNonceMismatch)
	}
	return &claims, nil
}
