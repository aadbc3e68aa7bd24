// Package session owns who is signed in.
//
// Manager is the only component allowed to call identity provider mutations.
// Every Session mutation runs under one mutex, so a sign-in or registration in
// flight is never interleaved with sign-out or account deletion. Readers see
// a snapshot, including the transitioning state while a mutation is pending.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/form"
	"github.com/and161185/profilekeeper/internal/identity"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/profile"
)

// Uploader runs picture upload tasks.
type Uploader interface {
	Upload(ctx context.Context, profileID string, image []byte) (*model.AssetUploadTask, error)
	Link(ctx context.Context, task *model.AssetUploadTask) error
}

// pendingProfile remembers the registration data of a profile that still has to be written.
type pendingProfile struct {
	fullName string
	email    string
}

// Manager holds the Session and the cached Profile of the signed-in subject.
type Manager struct {
	idp      identity.Provider
	profiles profile.Service
	uploads  Uploader
	log      *zap.Logger

	opMu sync.Mutex // serializes Session mutations

	mu         sync.RWMutex // guards the fields below
	session    model.Session
	profile    *model.Profile
	pending    *pendingProfile
	profileErr error
}

// NewManager constructs a signed-out manager. Call Restore at startup.
func NewManager(idp identity.Provider, profiles profile.Service, uploads Uploader, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		idp:      idp,
		profiles: profiles,
		uploads:  uploads,
		log:      log,
		session:  model.SignedOut(),
	}
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Profile returns a copy of the cached profile, nil when none.
func (m *Manager) Profile() *model.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil
	}
	cp := *m.profile
	return &cp
}

// LastProfileError is the error of the most recent background profile fetch.
func (m *Manager) LastProfileError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profileErr
}

// Restore picks up a stored session. A missing or unreadable session leaves
// the manager signed out; Restore itself never fails.
func (m *Manager) Restore(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sub, ok, err := m.idp.CurrentSession(ctx)
	if err != nil {
		m.log.Warn("restore session: provider error, staying signed out", zap.Error(err))
	}
	if err != nil || !ok {
		m.reset()
		return
	}
	m.set(model.SignedIn(sub), nil)
	m.log.Info("session restored", zap.String("subject", sub))
	if _, err := m.fetchLocked(ctx, sub); err != nil {
		m.log.Warn("restore session: profile fetch failed", zap.String("subject", sub), zap.Error(err))
	}
}

// SignIn verifies credentials and loads the subject's profile. A rejection is
// returned as *errs.AuthFailure and leaves the session signed out. When the
// credentials are accepted but the profile cannot be read, the session stays
// signed in and the returned error wraps the fetch failure.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*model.Profile, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: empty email/password", errs.ErrInvalidInput)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.dropStoredLocked(ctx)
	m.set(model.Transitioning(), nil)
	sub, err := m.idp.SignIn(ctx, email, password)
	if err != nil {
		m.reset()
		return nil, classifyAuth("sign in", err)
	}
	m.set(model.SignedIn(sub), nil)
	m.log.Info("signed in", zap.String("subject", sub))

	p, err := m.fetchLocked(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("signed in, profile unavailable: %w", err)
	}
	return p, nil
}

// CreateAccount registers an identity and writes its profile. If the identity
// was created but the profile was not, the session is signed in and a
// *errs.PartialAccountError is returned; RetryProfileCreation finishes the job.
func (m *Manager) CreateAccount(ctx context.Context, email, password, fullName string) (*model.Profile, error) {
	reg := form.Registration{Email: email, FullName: fullName, Password: password, ConfirmPassword: password}
	if !reg.Valid() {
		return nil, fmt.Errorf("%w: registration form", errs.ErrInvalidInput)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.dropStoredLocked(ctx)
	m.set(model.Transitioning(), nil)
	sub, err := m.idp.Register(ctx, email, password)
	if err != nil {
		m.reset()
		return nil, classifyAuth("register", err)
	}
	m.set(model.SignedIn(sub), nil)
	m.log.Info("account registered", zap.String("subject", sub))

	m.mu.Lock()
	m.pending = &pendingProfile{fullName: fullName, email: email}
	m.mu.Unlock()
	return m.createProfileLocked(ctx, sub)
}

// RetryProfileCreation re-runs only the profile step of an interrupted
// registration started by this Manager. After a restart use CompleteProfile.
func (m *Manager) RetryProfileCreation(ctx context.Context) (*model.Profile, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	sess, pending, cached := m.session, m.pending, m.profile
	m.mu.RUnlock()
	if !sess.IsSignedIn() {
		return nil, errs.ErrNotSignedIn
	}
	if pending == nil {
		if cached != nil {
			cp := *cached
			return &cp, nil
		}
		return nil, fmt.Errorf("%w: no pending profile for %s", errs.ErrNotFound, sess.SubjectID)
	}
	return m.createProfileLocked(ctx, sess.SubjectID)
}

// CompleteProfile writes the profile of the signed-in subject from the given
// registration data. It is the retry path when the data of the original
// CreateAccount call is gone; an existing profile is returned unchanged.
func (m *Manager) CompleteProfile(ctx context.Context, fullName, email string) (*model.Profile, error) {
	if strings.TrimSpace(fullName) == "" || !form.ValidEmail(email) {
		return nil, fmt.Errorf("%w: full name and email required", errs.ErrInvalidInput)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sess := m.Session()
	if !sess.IsSignedIn() {
		return nil, errs.ErrNotSignedIn
	}
	m.mu.Lock()
	m.pending = &pendingProfile{fullName: fullName, email: email}
	m.mu.Unlock()
	return m.createProfileLocked(ctx, sess.SubjectID)
}

// SignOut clears the session and the cached profile, then drops the provider
// credentials. It never fails.
func (m *Manager) SignOut(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sub := m.Session().SubjectID
	m.reset()
	m.idp.SignOut(ctx)
	m.log.Info("signed out", zap.String("subject", sub))
}

// DeleteAccount signs out locally, then asks the provider to delete the
// identity. Local state is cleared whatever the outcome; a remote failure is
// returned as *errs.OrphanedAccountError.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	sess := m.Session()
	if !sess.IsSignedIn() {
		return errs.ErrNotSignedIn
	}
	m.reset()

	err := m.idp.DeleteCurrentAccount(ctx)
	m.idp.SignOut(ctx)
	if err != nil {
		m.log.Warn("account deletion not confirmed", zap.String("subject", sess.SubjectID), zap.Error(err))
		return &errs.OrphanedAccountError{SubjectID: sess.SubjectID, Err: err}
	}
	m.log.Info("account deleted", zap.String("subject", sess.SubjectID))
	return nil
}

// RefreshProfile re-reads the signed-in subject's profile into the cache.
func (m *Manager) RefreshProfile(ctx context.Context) (*model.Profile, error) {
	sess := m.Session()
	if !sess.IsSignedIn() {
		return nil, errs.ErrNotSignedIn
	}
	p, err := m.profiles.FetchProfile(ctx, sess.SubjectID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.SubjectID != sess.SubjectID {
		return nil, errs.ErrNotSignedIn
	}
	m.profileErr = err
	if err != nil {
		return nil, err
	}
	m.profile = p
	cp := *p
	return &cp, nil
}

// ChangePicture uploads image for the signed-in subject and links it.
// The returned task is non-nil once an upload was attempted; on
// errs.ErrLinkFailed pass it to RelinkPicture.
func (m *Manager) ChangePicture(ctx context.Context, image []byte) (*model.AssetUploadTask, error) {
	sess := m.Session()
	if !sess.IsSignedIn() {
		return nil, errs.ErrNotSignedIn
	}
	task, err := m.uploads.Upload(ctx, sess.SubjectID, image)
	if err == nil && task != nil {
		m.applyPicture(task)
	}
	return task, err
}

// RelinkPicture retries the link step of an uploaded task. The task must
// target the signed-in subject.
func (m *Manager) RelinkPicture(ctx context.Context, task *model.AssetUploadTask) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", errs.ErrInvalidInput)
	}
	sess := m.Session()
	if !sess.IsSignedIn() {
		return errs.ErrNotSignedIn
	}
	if task.TargetProfileID != sess.SubjectID {
		return fmt.Errorf("%w: task targets another profile", errs.ErrPermissionDenied)
	}
	if err := m.uploads.Link(ctx, task); err != nil {
		return err
	}
	m.applyPicture(task)
	return nil
}

// SendPasswordReset asks the provider to mail a password reset link.
func (m *Manager) SendPasswordReset(ctx context.Context, email string) error {
	if !form.ValidEmail(email) {
		return fmt.Errorf("%w: email", errs.ErrInvalidInput)
	}
	if err := m.idp.SendPasswordReset(ctx, email); err != nil {
		return classifyAuth("password reset", err)
	}
	return nil
}

func (m *Manager) createProfileLocked(ctx context.Context, sub string) (*model.Profile, error) {
	m.mu.RLock()
	pending := m.pending
	m.mu.RUnlock()

	p, err := m.profiles.CreateProfile(ctx, sub, pending.fullName, pending.email)
	if err != nil {
		m.log.Warn("profile creation failed", zap.String("subject", sub), zap.Error(err))
		return nil, &errs.PartialAccountError{SubjectID: sub, Err: err}
	}
	m.mu.Lock()
	m.pending = nil
	m.profile = p
	m.profileErr = nil
	m.mu.Unlock()
	cp := *p
	return &cp, nil
}

func (m *Manager) fetchLocked(ctx context.Context, sub string) (*model.Profile, error) {
	p, err := m.profiles.FetchProfile(ctx, sub)
	m.mu.Lock()
	m.profileErr = err
	if err == nil {
		m.profile = p
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (m *Manager) applyPicture(task *model.AssetUploadTask) {
	if task.State != model.TaskLinked {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile != nil && m.profile.ID == task.TargetProfileID {
		url := task.URL
		m.profile.PictureURL = &url
	}
}

// dropStoredLocked signs the provider out of any earlier session, so a failed
// attempt cannot leave old credentials behind for the next Restore.
func (m *Manager) dropStoredLocked(ctx context.Context) {
	if !m.Session().IsSignedIn() {
		if _, ok, err := m.idp.CurrentSession(ctx); err != nil || !ok {
			return
		}
	}
	m.idp.SignOut(ctx)
}

func (m *Manager) set(s model.Session, p *model.Profile) {
	m.mu.Lock()
	m.session = s
	m.profile = p
	m.mu.Unlock()
}

func (m *Manager) reset() {
	m.mu.Lock()
	m.session = model.SignedOut()
	m.profile = nil
	m.pending = nil
	m.profileErr = nil
	m.mu.Unlock()
}

// classifyAuth separates expected provider rejections from transport failures.
func classifyAuth(op string, err error) error {
	var reason string
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		reason = "bad credentials"
	case errors.Is(err, errs.ErrAlreadyExists):
		reason = "email already registered"
	case errors.Is(err, errs.ErrRateLimited):
		reason = "too many attempts, try again later"
	case errors.Is(err, errs.ErrInvalidInput):
		reason = "rejected by identity provider"
	default:
		return fmt.Errorf("%s: %w: %w", op, errs.ErrAuth, err)
	}
	return fmt.Errorf("%s: %w", op, &errs.AuthFailure{Reason: reason, Err: err})
}
