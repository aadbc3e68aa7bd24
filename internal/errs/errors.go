package errs

import (
	"errors"
	"fmt"
)

// AuthFailure reports a credential rejection together with the provider's reason.
type AuthFailure struct {
	Reason string
	Err    error
}

func (e *AuthFailure) Error() string {
	if e.Reason == "" {
		return ErrAuthenticationFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAuthenticationFailed, e.Reason)
}

func (e *AuthFailure) Is(target error) bool { return target == ErrAuthenticationFailed }
func (e *AuthFailure) Unwrap() error        { return e.Err }

// PartialAccountError is returned when registration succeeded but the profile
// document was not written. Retrying profile creation for SubjectID is safe.
type PartialAccountError struct {
	SubjectID string
	Err       error
}

func (e *PartialAccountError) Error() string {
	return fmt.Sprintf("%s (subject %s): %v", ErrAccountCreationPartial, e.SubjectID, e.Err)
}

func (e *PartialAccountError) Is(target error) bool { return target == ErrAccountCreationPartial }
func (e *PartialAccountError) Unwrap() error        { return e.Err }

// UploadError reports a failed asset upload. Nothing was linked.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s (key %s): %v", ErrUploadFailed, e.Key, e.Err)
}

func (e *UploadError) Is(target error) bool { return target == ErrUploadFailed }
func (e *UploadError) Unwrap() error        { return e.Err }

// LinkError reports a stored asset whose URL could not be written to the profile.
// Only the link step needs retrying, with URL.
type LinkError struct {
	URL string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s (url %s): %v", ErrLinkFailed, e.URL, e.Err)
}

func (e *LinkError) Is(target error) bool { return target == ErrLinkFailed }
func (e *LinkError) Unwrap() error        { return e.Err }

// OrphanedAccountError is a non-fatal warning from account deletion: the local
// session was cleared but the provider did not confirm removal.
type OrphanedAccountError struct {
	SubjectID string
	Err       error
}

func (e *OrphanedAccountError) Error() string {
	return fmt.Sprintf("%s (subject %s): %v", ErrAccountOrphaned, e.SubjectID, e.Err)
}

func (e *OrphanedAccountError) Is(target error) bool { return target == ErrAccountOrphaned }
func (e *OrphanedAccountError) Unwrap() error        { return e.Err }

// Reason returns the rejection reason carried by an AuthFailure in err's chain.
func Reason(err error) string {
	var af *AuthFailure
	if errors.As(err, &af) {
		return af.Reason
	}
	return ""
}
