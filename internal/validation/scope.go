package validation

import (
	"fmt"
	"regexp"
)

// Reglas de nombre de scope que acepta oidc_provider:
// - minúsculas, empieza y termina en [a-z0-9]
// - en el medio se permite [a-z0-9:_.-]
// - largo 1..64, sin espacios ni ';'
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si name es un scope válido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ValidateScopes revisa la lista pedida al proveedor: todos válidos, sin
// repetidos y con "openid" presente (sin él no hay id_token).
func ValidateScopes(scopes []string) error {
	seen := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if !ValidScopeName(s) {
			return fmt.Errorf("invalid scope %q", s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("duplicate scope %q", s)
		}
		seen[s] = struct{}{}
	}
	if _, ok := seen["openid"]; !ok {
		return fmt.Errorf("scopes must include openid")
	}
	return nil
}
