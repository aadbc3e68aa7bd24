// Package service contains the server-side identity and document services.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/profilekeeper/internal/crypto"
	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/form"
	"github.com/and161185/profilekeeper/internal/limiter"
	"github.com/and161185/profilekeeper/internal/mailer"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/repository"
	"github.com/and161185/profilekeeper/internal/revoke"
)

// Token audiences keep access and reset tokens from being used for each other.
const (
	audAccess = "pk-access"
	audReset  = "pk-password-reset"
)

const leeway = 30 * time.Second

// AuthService defines the identity operations.
type AuthService interface {
	// Register creates a user and signs it in.
	Register(ctx context.Context, email, password string) (model.Tokens, uuid.UUID, error)
	// LoginWithIP applies rate limiting and authenticates the user.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// Authenticate verifies an access token and returns its principal.
	Authenticate(ctx context.Context, token string) (model.Principal, error)
	// SignOut revokes the principal's token.
	SignOut(ctx context.Context, p model.Principal) error
	// DeleteAccount removes the principal's user and profile and revokes the token.
	DeleteAccount(ctx context.Context, p model.Principal) error
	// RequestPasswordReset mails a reset token if the email is registered.
	RequestPasswordReset(ctx context.Context, email string) error
	// ResetPassword sets a new password using a reset token.
	ResetPassword(ctx context.Context, token, password string) error
}

// AuthConfig holds token lifetimes and the signing key.
type AuthConfig struct {
	SignKey   []byte
	AccessTTL time.Duration
	ResetTTL  time.Duration
}

// AuthServiceImpl issues and checks tokens for accounts in a UserRepository.
type AuthServiceImpl struct {
	users   repository.UserRepository
	hasher  *pkgcrypto.Hasher
	cfg     AuthConfig
	lim     limiter.Login
	revoked revoke.Store
	mail    mailer.Sender
	log     *zap.Logger
	now     func() time.Time
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, hasher *pkgcrypto.Hasher, cfg AuthConfig,
	lim limiter.Login, revoked revoke.Store, mail mailer.Sender, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	return &AuthServiceImpl{
		users: users, hasher: hasher, cfg: cfg,
		lim: lim, revoked: revoked, mail: mail, log: log, now: time.Now,
	}
}

func normEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, email, password string) (model.Tokens, uuid.UUID, error) {
	email = normEmail(email)
	if !form.ValidEmail(email) || !form.ValidPassword(password) {
		return model.Tokens{}, uuid.Nil, fmt.Errorf("%w: email/password", errs.ErrInvalidInput)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	hash, salt, err := s.hasher.New([]byte(password))
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	u := &model.User{ID: uid, Email: email, PwdHash: hash, SaltAuth: salt}
	if err := s.users.Create(ctx, u); err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	tok, err := s.issueAccessToken(uid)
	if err != nil {
		return model.Tokens{}, uuid.Nil, err
	}
	s.log.Info("user registered", zap.String("user_id", uid.String()))
	return tok, uid, nil
}

// LoginWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email = normEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !s.hasher.Verify([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, *u, nil
}

// Authenticate verifies HS256, audience, expiry and revocation.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (model.Principal, error) {
	var claims jwt.RegisteredClaims
	if err := s.parse(token, audAccess, &claims); err != nil {
		return model.Principal{}, err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return model.Principal{}, fmt.Errorf("%w: malformed claims", errs.ErrUnauthorized)
	}
	revoked, err := s.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return model.Principal{}, fmt.Errorf("%w: token revoked", errs.ErrUnauthorized)
	}
	return model.Principal{UserID: id, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SignOut revokes the token until its natural expiry.
func (s *AuthServiceImpl) SignOut(ctx context.Context, p model.Principal) error {
	return s.revoked.Revoke(ctx, p.TokenID, p.ExpiresAt.Sub(s.now())+leeway)
}

// DeleteAccount removes the user and its profile document.
func (s *AuthServiceImpl) DeleteAccount(ctx context.Context, p model.Principal) error {
	if err := s.users.Delete(ctx, p.UserID); err != nil {
		return err
	}
	if err := s.SignOut(ctx, p); err != nil {
		s.log.Warn("revoke after delete failed", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
	s.log.Info("user deleted", zap.String("user_id", p.UserID.String()))
	return nil
}

type resetClaims struct {
	jwt.RegisteredClaims
	// PwdFP ties the token to the password it resets.
	PwdFP string `json:"pwf"`
}

// RequestPasswordReset never reveals whether email is registered.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	email = normEmail(email)
	if !form.ValidEmail(email) {
		return fmt.Errorf("%w: email", errs.ErrInvalidInput)
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		s.log.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	claims := resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			Audience:  jwt.ClaimStrings{audReset},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ResetTTL)),
		},
		PwdFP: pkgcrypto.Fingerprint(u.PwdHash),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SignKey)
	if err != nil {
		return err
	}
	if err := s.mail.Send(ctx, mailer.ResetMessage(u.Email, signed)); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword replaces the password. A token works once: the new hash no
// longer matches its fingerprint.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, password string) error {
	if !form.ValidPassword(password) {
		return fmt.Errorf("%w: password", errs.ErrInvalidInput)
	}
	var claims resetClaims
	if err := s.parse(token, audReset, &claims); err != nil {
		return err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("%w: unknown subject", errs.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if claims.PwdFP != pkgcrypto.Fingerprint(u.PwdHash) {
		return fmt.Errorf("%w: reset token already used", errs.ErrUnauthorized)
	}
	hash, salt, err := s.hasher.New([]byte(password))
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, id, hash, salt); err != nil {
		return err
	}
	s.log.Info("password reset", zap.String("user_id", id.String()))
	return nil
}

// issueAccessToken creates a signed HS256 JWT with a fresh jti.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (model.Tokens, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.now()
	exp := now.Add(s.cfg.AccessTTL)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   userID.String(),
		Audience:  jwt.ClaimStrings{audAccess},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SignKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, TokenID: jti.String(), ExpiresAt: exp}, nil
}

func (s *AuthServiceImpl) parse(token, aud string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.cfg.SignKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(aud),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	return nil
}
