package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/profilekeeper/internal/crypto"
	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/limiter"
	"github.com/and161185/profilekeeper/internal/mailer"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
	"github.com/and161185/profilekeeper/internal/revoke"
)

var cheap = pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32})

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User

	createErr error
	getErr    error
	deleteErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: map[string]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash, salt []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.PwdHash, u.SaltAuth = hash, salt
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for k, u := range f.byEmail {
		if u.ID == id {
			delete(f.byEmail, k)
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Login = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type fakeMail struct {
	sent []mailer.Message
	err  error
}

var _ mailer.Sender = (*fakeMail)(nil)

func (m *fakeMail) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type authEnv struct {
	users *fakeUsers
	lim   *fakeLimiter
	mail  *fakeMail
	s     *AuthServiceImpl
}

func newAuthEnv() *authEnv {
	e := &authEnv{users: newFakeUsers(), lim: &fakeLimiter{allowOK: true}, mail: &fakeMail{}}
	cfg := AuthConfig{SignKey: []byte("secret"), AccessTTL: time.Minute, ResetTTL: time.Minute}
	e.s = NewAuthService(e.users, cheap, cfg, e.lim, revoke.NewMemory(time.Minute), e.mail, nil)
	return e
}

func TestAuth_Register_Basics(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()

	if _, _, err := e.s.Register(ctx, "", ""); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, _, err := e.s.Register(ctx, "ada@x.io", "short"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want validation error on short password, got %v", err)
	}

	tok, id, err := e.s.Register(ctx, " Ada@X.io", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id == uuid.Nil || tok.AccessToken == "" || tok.TokenID == "" {
		t.Fatalf("bad result: %v %+v", id, tok)
	}
	if _, ok := e.users.byEmail["ada@x.io"]; !ok {
		t.Fatal("email must be stored normalized")
	}

	p, err := e.s.Authenticate(ctx, tok.AccessToken)
	if err != nil || p.UserID != id {
		t.Fatalf("registered token must authenticate: %+v %v", p, err)
	}

	if _, _, err := e.s.Register(ctx, "ada@x.io", "secret2"); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	e.users.createErr = errors.New("boom")
	if _, _, err := e.s.Register(ctx, "bob@x.io", "secret1"); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_LoginWithIP_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()
	_, id, err := e.s.Register(ctx, "ada@x.io", "correct1")
	if err != nil {
		t.Fatal(err)
	}

	e.lim.allowErr = errors.New("lim-err")
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "correct1", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	e.lim.allowErr = nil

	e.lim.allowOK = false
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "correct1", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	e.lim.allowOK = true

	if _, _, err := e.s.LoginWithIP(ctx, "nope@x.io", "whatever", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on missing user, got %v", err)
	}

	e.users.getErr = errors.New("db down")
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "correct1", ""); err == nil || errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want transport error, got %v", err)
	}
	e.users.getErr = nil

	e.lim.failBlocked = true
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "wrong!!", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}
	e.lim.failBlocked = false
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "wrong!!", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized on wrong password, got %v", err)
	}

	tok, u, err := e.s.LoginWithIP(ctx, "ADA@x.io", "correct1", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP success: %v", err)
	}
	if tok.AccessToken == "" || !tok.ExpiresAt.After(time.Now()) || u.ID != id {
		t.Fatalf("bad login result: %+v %+v", tok, u)
	}
	if e.lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
}

func TestAuth_Authenticate_Rejects(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()

	sign := func(claims jwt.Claims, m jwt.SigningMethod, key []byte) string {
		s, err := jwt.NewWithClaims(m, claims).SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	now := time.Now()
	base := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   uuid.Must(uuid.NewV4()).String(),
			Audience:  jwt.ClaimStrings{audAccess},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}
	}

	expired := base()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Hour))
	wrongAud := base()
	wrongAud.Audience = jwt.ClaimStrings{audReset}
	badSub := base()
	badSub.Subject = "not-a-uuid"
	noJTI := base()
	noJTI.ID = ""

	cases := map[string]string{
		"garbage":   "this-is-not-a-jwt",
		"expired":   sign(expired, jwt.SigningMethodHS256, []byte("secret")),
		"audience":  sign(wrongAud, jwt.SigningMethodHS256, []byte("secret")),
		"subject":   sign(badSub, jwt.SigningMethodHS256, []byte("secret")),
		"jti":       sign(noJTI, jwt.SigningMethodHS256, []byte("secret")),
		"wrong key": sign(base(), jwt.SigningMethodHS256, []byte("other")),
		"wrong alg": sign(base(), jwt.SigningMethodHS384, []byte("secret")),
	}
	for name, tok := range cases {
		if _, err := e.s.Authenticate(ctx, tok); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("%s: want ErrUnauthorized, got %v", name, err)
		}
	}
	if _, err := e.s.Authenticate(ctx, sign(base(), jwt.SigningMethodHS256, []byte("secret"))); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
}

func TestAuth_SignOutRevokes(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()
	tok, _, err := e.s.Register(ctx, "ada@x.io", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	p, err := e.s.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.s.SignOut(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := e.s.Authenticate(ctx, tok.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("revoked token accepted: %v", err)
	}

	// other sessions of the same user stay valid
	tok2, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "secret1", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.s.Authenticate(ctx, tok2.AccessToken); err != nil {
		t.Fatalf("second token: %v", err)
	}
}

func TestAuth_DeleteAccount(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()
	tok, _, err := e.s.Register(ctx, "ada@x.io", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	p, _ := e.s.Authenticate(ctx, tok.AccessToken)

	if err := e.s.DeleteAccount(ctx, p); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if len(e.users.byEmail) != 0 {
		t.Fatal("user must be gone")
	}
	if _, err := e.s.Authenticate(ctx, tok.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("token of deleted user accepted: %v", err)
	}
	if err := e.s.DeleteAccount(ctx, p); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAuth_PasswordResetFlow(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()
	if _, _, err := e.s.Register(ctx, "ada@x.io", "secret1"); err != nil {
		t.Fatal(err)
	}

	if err := e.s.RequestPasswordReset(ctx, "nobody@x.io"); err != nil {
		t.Fatalf("unknown email must look like success: %v", err)
	}
	if len(e.mail.sent) != 0 {
		t.Fatal("no mail for unknown email")
	}

	if err := e.s.RequestPasswordReset(ctx, "ada@x.io"); err != nil {
		t.Fatal(err)
	}
	if len(e.mail.sent) != 1 {
		t.Fatalf("want 1 mail, got %d", len(e.mail.sent))
	}

	token := extractToken(t, e.mail.sent[0].Body)

	if _, err := e.s.Authenticate(ctx, token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatal("reset token must not work as access token")
	}
	if err := e.s.ResetPassword(ctx, token, "short"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want invalid input, got %v", err)
	}
	if err := e.s.ResetPassword(ctx, token, "newsecret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "newsecret", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := e.s.LoginWithIP(ctx, "ada@x.io", "secret1", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("old password must stop working: %v", err)
	}
	if err := e.s.ResetPassword(ctx, token, "another1"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("reset token must be single use, got %v", err)
	}
}

func TestAuth_PasswordReset_MailFailure(t *testing.T) {
	t.Parallel()
	e := newAuthEnv()
	ctx := context.Background()
	if _, _, err := e.s.Register(ctx, "ada@x.io", "secret1"); err != nil {
		t.Fatal(err)
	}
	e.mail.err = errors.New("relay down")
	if err := e.s.RequestPasswordReset(ctx, "ada@x.io"); err == nil {
		t.Fatal("want mail error")
	}
}

// extractToken pulls the token out of the reset message body.
func extractToken(t *testing.T, body string) string {
	t.Helper()
	_, rest, ok := strings.Cut(body, "--token ")
	if !ok {
		t.Fatalf("no token in %q", body)
	}
	tok, _, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(tok)
}
