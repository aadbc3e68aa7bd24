// Package identity declares the identity provider contract the session layer depends on.
package identity

import "context"

// Provider verifies credentials and owns the credential lifecycle.
// Expected rejections (bad credentials, email taken) are reported as errors
// matching errs.ErrUnauthorized or errs.ErrAlreadyExists; anything else is a
// transport failure.
type Provider interface {
	// CurrentSession returns the subject of a still-valid stored session.
	CurrentSession(ctx context.Context) (subjectID string, ok bool, err error)
	// SignIn verifies credentials and stores the issued session.
	SignIn(ctx context.Context, email, password string) (subjectID string, err error)
	// Register creates an identity and signs it in.
	Register(ctx context.Context, email, password string) (subjectID string, err error)
	// SignOut drops stored credentials. Remote revocation is best effort.
	SignOut(ctx context.Context)
	// DeleteCurrentAccount removes the signed-in identity remotely.
	DeleteCurrentAccount(ctx context.Context) error
	// SendPasswordReset asks the provider to mail a reset link.
	SendPasswordReset(ctx context.Context, email string) error
}
