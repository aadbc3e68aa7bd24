package model

// Status is the authentication state of a Session.
type Status int

const (
	StatusSignedOut Status = iota
	StatusSignedIn
	StatusTransitioning
)

func (s Status) String() string {
	switch s {
	case StatusSignedIn:
		return "signedIn"
	case StatusTransitioning:
		return "transitioning"
	default:
		return "signedOut"
	}
}

// Session is the current authentication state.
// SubjectID is non-empty if and only if Status == StatusSignedIn; use the
// constructors below to keep it that way.
type Session struct {
	SubjectID string
	Status    Status
}

// SignedOut returns the empty session.
func SignedOut() Session { return Session{Status: StatusSignedOut} }

// SignedIn returns a session for subjectID.
func SignedIn(subjectID string) Session {
	if subjectID == "" {
		return SignedOut()
	}
	return Session{SubjectID: subjectID, Status: StatusSignedIn}
}

// Transitioning returns the session observed while sign-in or registration is in flight.
func Transitioning() Session { return Session{Status: StatusTransitioning} }

// IsSignedIn reports whether a subject is signed in.
func (s Session) IsSignedIn() bool { return s.Status == StatusSignedIn && s.SubjectID != "" }
