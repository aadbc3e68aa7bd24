// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/profilekeeper/internal/errs"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	TokenID     string    // jti, used for revocation
	ExpiresAt   time.Time // access token expiry
}

// Principal is the authenticated caller behind a verified access token.
type Principal struct {
	UserID    uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK, the subject id handed to clients
	Email     string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// Profile is a user's durable record, keyed by the subject id.
type Profile struct {
	ID         string
	FullName   string
	Email      string
	PictureURL *string // nil until a picture is linked
}

// Validate checks the profile invariants.
func (p Profile) Validate() error {
	switch {
	case p.ID == "":
		return errInvalid("empty id")
	case strings.TrimSpace(p.FullName) == "":
		return errInvalid("empty full name")
	case !strings.Contains(p.Email, "@"):
		return errInvalid("email must contain @")
	}
	return nil
}

// Picture returns the linked picture URL or "".
func (p Profile) Picture() string {
	if p.PictureURL == nil {
		return ""
	}
	return *p.PictureURL
}

// Initials abbreviates the full name: first letters of the first and last name parts.
func (p Profile) Initials() string {
	parts := strings.Fields(p.FullName)
	if len(parts) == 0 {
		return ""
	}
	out := firstUpper(parts[0])
	if len(parts) > 1 {
		out += firstUpper(parts[len(parts)-1])
	}
	return out
}

func firstUpper(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r))
}

func errInvalid(msg string) error { return fmt.Errorf("%w: %s", errs.ErrInvalidInput, msg) }
