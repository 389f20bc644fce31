package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidScopeName(t *testing.T) {
	valid := []string{"a", "openid", "profile", "email", "offline_access", "read:users", "a_b-c.d:scope2", strings.Repeat("a", 64)}
	for _, v := range valid {
		assert.True(t, ValidScopeName(v), v)
	}

	invalid := []string{"", ":lead", "trail:", "bad space", "UPPER", "semicolon;hack", strings.Repeat("a", 65)}
	for _, v := range invalid {
		assert.False(t, ValidScopeName(v), v)
	}
}

func TestValidateScopes(t *testing.T) {
	tests := []struct {
		name    string
		scopes  []string
		wantErr string
	}{
		{"default", []string{"openid", "profile", "email"}, ""},
		{"only openid", []string{"openid"}, ""},
		{"missing openid", []string{"profile", "email"}, "must include openid"},
		{"empty", nil, "must include openid"},
		{"duplicate", []string{"openid", "email", "email"}, "duplicate scope"},
		{"invalid", []string{"openid", "Email"}, "invalid scope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScopes(tt.scopes)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
