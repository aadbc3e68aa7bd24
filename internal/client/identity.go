package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/and161185/profilekeeper/internal/convert"
	"github.com/and161185/profilekeeper/internal/identity"
	"github.com/and161185/profilekeeper/internal/rpc"
)

// Identity is the pk-server identity provider.
type Identity struct {
	rpc    *rpc.Client
	tokens *TokenStore
	log    *zap.Logger
	now    func() time.Time
}

var _ identity.Provider = (*Identity)(nil)

// NewIdentity uses cc for calls and tokens for the persisted session.
func NewIdentity(cc grpc.ClientConnInterface, tokens *TokenStore, log *zap.Logger) *Identity {
	if log == nil {
		log = zap.NewNop()
	}
	return &Identity{rpc: rpc.NewClient(cc), tokens: tokens, log: log, now: time.Now}
}

// CurrentSession reports the subject of the stored token while it is unexpired.
// The signature is checked by the server on use, not here.
func (i *Identity) CurrentSession(_ context.Context) (string, bool, error) {
	c, err := i.tokens.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if c.AccessToken == "" {
		return "", false, nil
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, &claims); err != nil {
		i.log.Debug("stored token unreadable", zap.Error(err))
		return "", false, nil
	}
	exp := c.ExpiresAt
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if !i.now().Before(exp) || claims.Subject == "" {
		return "", false, nil
	}
	return claims.Subject, true, nil
}

// SignIn exchanges credentials for a session and stores it.
func (i *Identity) SignIn(ctx context.Context, email, password string) (string, error) {
	return i.open(ctx, rpc.MethodSignIn, email, password)
}

// Register creates the identity and stores its first session.
func (i *Identity) Register(ctx context.Context, email, password string) (string, error) {
	return i.open(ctx, rpc.MethodRegister, email, password)
}

func (i *Identity) open(ctx context.Context, method, email, password string) (string, error) {
	out, err := i.rpc.Call(ctx, method, convert.Strings(map[string]string{
		convert.KeyEmail:    email,
		convert.KeyPassword: password,
	}))
	if err != nil {
		return "", fromStatus(method, err)
	}
	userID, tok, err := convert.FromProtoSession(out)
	if err != nil {
		return "", err
	}
	if err := i.tokens.Save(Credentials{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt, UserID: userID}); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return userID, nil
}

// SignOut revokes the token remotely when possible and always forgets it locally.
func (i *Identity) SignOut(ctx context.Context) {
	if i.tokens.token() != "" {
		if _, err := i.rpc.Call(ctx, rpc.MethodSignOut, nil); err != nil {
			i.log.Warn("remote sign out failed", zap.Error(err))
		}
	}
	if err := i.tokens.Clear(); err != nil {
		i.log.Warn("clear stored session", zap.Error(err))
	}
}

// DeleteCurrentAccount removes the signed-in identity and its profile on the server.
func (i *Identity) DeleteCurrentAccount(ctx context.Context) error {
	if _, err := i.rpc.Call(ctx, rpc.MethodDeleteAccount, nil); err != nil {
		return fromStatus(rpc.MethodDeleteAccount, err)
	}
	return nil
}

// SendPasswordReset asks the server to mail a reset token.
func (i *Identity) SendPasswordReset(ctx context.Context, email string) error {
	if _, err := i.rpc.Call(ctx, rpc.MethodSendPasswordReset, convert.Strings(map[string]string{convert.KeyEmail: email})); err != nil {
		return fromStatus(rpc.MethodSendPasswordReset, err)
	}
	return nil
}

// ResetPassword sets a new password using a mailed reset token.
func (i *Identity) ResetPassword(ctx context.Context, token, password string) error {
	if _, err := i.rpc.Call(ctx, rpc.MethodResetPassword, convert.Strings(map[string]string{
		convert.KeyToken:    token,
		convert.KeyPassword: password,
	})); err != nil {
		return fromStatus(rpc.MethodResetPassword, err)
	}
	return nil
}
