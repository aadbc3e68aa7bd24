// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPermissionDenied indicates an authenticated caller touching another subject's data.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRateLimited indicates temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken, asset key reused).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates a request rejected by local validation before any remote call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotSignedIn indicates an operation that needs a signed-in session.
	ErrNotSignedIn = errors.New("not signed in")
)

// Session and asset lifecycle outcomes. Each typed error in this package
// matches exactly one of these through errors.Is.
var (
	// ErrAuthenticationFailed is an expected credential rejection by the identity provider.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAccountCreationPartial means the identity exists but its profile could not be stored.
	ErrAccountCreationPartial = errors.New("account created without profile")

	// ErrInvalidAsset means the picture is empty or not an image.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrUploadFailed means the asset store did not accept the picture.
	ErrUploadFailed = errors.New("upload failed")

	// ErrLinkFailed means the picture was stored but the profile was not updated.
	ErrLinkFailed = errors.New("link failed")

	// ErrAccountOrphaned means the local session is gone but remote deletion failed.
	ErrAccountOrphaned = errors.New("account deletion not confirmed")

	// ErrAuth wraps opaque identity provider transport failures.
	ErrAuth = errors.New("identity provider error")

	// ErrStore wraps opaque profile/asset store transport failures.
	ErrStore = errors.New("store error")
)
