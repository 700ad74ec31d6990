package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPhoneDigits = 6
	maxPhoneDigits = 15
)

// Validator checks login input before anything is sent to the token endpoint.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogin returns the normalized phone number, or an error naming the
// first field that is unusable.
func (v *Validator) ValidateLogin(identifier, secret string) (string, error) {
	phone, err := v.NormalizePhoneNumber(identifier)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", MissingSecretErr
	}
	return phone, nil
}

// NormalizePhoneNumber strips separators from a phone number, keeping a
// leading '+'.
func (v *Validator) NormalizePhoneNumber(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", MissingIdentifierErr
	}

	var b strings.Builder
	digits := 0
	for i, r := range identifier {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", fmt.Errorf("%w: unexpected character %q", InvalidPhoneNumberErr, r)
		}
	}

	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", fmt.Errorf("%w: expected %d to %d digits, got %d", InvalidPhoneNumberErr, minPhoneDigits, maxPhoneDigits, digits)
	}
	return b.String(), nil
}
