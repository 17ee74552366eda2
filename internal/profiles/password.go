package profiles

import (
	"unicode"

	"github.com/sitework/sitework/internal/apperr"
)

const MinPasswordLength = 8

// ValidatePassword enforces the password policy: at least MinPasswordLength
// characters with an upper-case letter, a lower-case letter and a digit.
func ValidatePassword(pw string) error {
	return checkPassword("newPassword", pw)
}

func checkPassword(field, pw string) error {
	if len([]rune(pw)) < MinPasswordLength {
		return apperr.Field(field, "must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return apperr.Field(field, "must contain upper-case, lower-case and numeric characters")
	}
	return nil
}

// ValidatePasswordChange rejects reusing the current password, then applies
// the password policy to next.
func ValidatePasswordChange(current, next string) error {
	if next == current {
		return apperr.Field("newPassword", "must differ from the current password")
	}
	return ValidatePassword(next)
}
