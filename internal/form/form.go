// Package form holds the input checks the client runs before any sign-in or
// registration call leaves the device.
package form

import "strings"

// MinPasswordLen is exclusive: passwords must be longer than this.
const MinPasswordLen = 5

// Login is the sign-in form.
type Login struct {
	Email    string
	Password string
}

// Valid reports whether the sign-in form may be submitted.
func (f Login) Valid() bool {
	return validEmail(f.Email) && validPassword(f.Password)
}

// Registration is the sign-up form.
type Registration struct {
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
}

// Valid reports whether the sign-up form may be submitted.
func (f Registration) Valid() bool {
	return validEmail(f.Email) &&
		validPassword(f.Password) &&
		f.ConfirmPassword == f.Password &&
		strings.TrimSpace(f.FullName) != ""
}

// PasswordsMatch is the confirm-field indicator; it is only meaningful once both fields are filled.
func (f Registration) PasswordsMatch() (match, shown bool) {
	if f.Password == "" || f.ConfirmPassword == "" {
		return false, false
	}
	return f.Password == f.ConfirmPassword, true
}

// ValidEmail is the shared email rule: non-empty and containing "@".
func ValidEmail(email string) bool { return validEmail(email) }

func validEmail(email string) bool {
	return email != "" && strings.Contains(email, "@")
}

func validPassword(pw string) bool {
	return pw != "" && len([]rune(pw)) > MinPasswordLen
}

// ValidPassword is the shared password rule.
func ValidPassword(pw string) bool { return validPassword(pw) }
