package util

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims and lower-cases an address. Returns "" if it does not parse.
func NormalizeEmail(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}

	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return ""
	}

	return s
}
