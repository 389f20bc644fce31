package util

import (
	"net/url"
	"strings"
)

// MaskEmail deja la inicial del usuario y el dominio: "ada@example.com" -> "a…@example.com".
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	user, dom, ok := strings.Cut(s, "@")
	if !ok || user == "" {
		return "***"
	}
	return user[:1] + "…@" + dom
}

// MaskURL oculta la password del userinfo (redis://:pw@host, http://u:pw@host).
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
