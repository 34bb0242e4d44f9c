// Package phone normalises recipient phone numbers and converts them to and
// from WhatsApp JIDs.
package phone

import (
	"errors"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var (
	// ErrInvalidPhone is returned when a number is not in international format.
	ErrInvalidPhone = errors.New("invalid phone number format")

	e164Pattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	nonDigits   = regexp.MustCompile(`\D`)
)

// Valid reports whether raw matches the accepted international format.
func Valid(raw string) bool {
	return e164Pattern.MatchString(strings.TrimSpace(raw))
}

// Normalize strips a JID server suffix and every non-digit character.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.ContainsRune(raw, '@') {
		if jid, err := types.ParseJID(raw); err == nil {
			raw = jid.User
		} else {
			raw = raw[:strings.IndexRune(raw, '@')]
		}
	}
	return nonDigits.ReplaceAllString(raw, "")
}

// Validate normalises raw after checking it is in international format.
func Validate(raw string) (string, error) {
	if !Valid(raw) {
		return "", ErrInvalidPhone
	}
	return Normalize(raw), nil
}

// JID returns the user JID for a phone number.
func JID(raw string) types.JID {
	return types.NewJID(Normalize(raw), types.DefaultUserServer)
}

// FromJID extracts the phone number from a user JID such as
// "5511999999999@s.whatsapp.net". Plain numbers are normalised as-is.
func FromJID(raw string) (string, error) {
	n := Normalize(raw)
	if n == "" || !Valid(n) {
		return "", ErrInvalidPhone
	}
	return n, nil
}
