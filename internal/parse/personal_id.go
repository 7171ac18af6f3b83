package parse

import (
	"errors"
	"fmt"
	"strings"
)

const (
	personalIDLength = 7
	personalIDPrefix = '8'
)

var (
	ErrPersonalIDNotNumeric = errors.New("personal id must be numeric")
	ErrPersonalIDLength     = fmt.Errorf("personal id must be %d digits long", personalIDLength)
	ErrPersonalIDPrefix     = fmt.Errorf("personal id must start with '%c'", personalIDPrefix)
)

// PersonalID validates a raw personal identifier and returns its canonical form.
// Surrounding whitespace is ignored; the identifier must then be all digits,
// exactly seven characters long and start with '8'.
func PersonalID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return "", fmt.Errorf("%q: %w", raw, ErrPersonalIDNotNumeric)
	}
	if len(s) != personalIDLength {
		return "", fmt.Errorf("%q: %w", raw, ErrPersonalIDLength)
	}
	if s[0] != personalIDPrefix {
		return "", fmt.Errorf("%q: %w", raw, ErrPersonalIDPrefix)
	}
	return s, nil
}

// IsPersonalID reports whether raw passes PersonalID.
func IsPersonalID(raw string) bool {
	_, err := PersonalID(raw)
	return err == nil
}
