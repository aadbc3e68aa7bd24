// Package grpcserver exposes the ProfileKeeper gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/profilekeeper/internal/convert"
	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/metrics"
	"github.com/and161185/profilekeeper/internal/model"
	"github.com/and161185/profilekeeper/internal/rpc"
	"github.com/and161185/profilekeeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	auth service.AuthService
	docs service.DocumentService
	rec  metrics.Recorder
	log  *zap.Logger
}

var _ rpc.Server = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, docs service.DocumentService, rec metrics.Recorder, log *zap.Logger) *Server {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, docs: docs, rec: rec, log: log}
}

// --- Identity ---

// Register creates an account and returns its first session.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, pwd := convert.GetString(req, convert.KeyEmail), convert.GetString(req, convert.KeyPassword)
	if email == "" || pwd == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	tok, id, err := s.auth.Register(ctx, email, pwd)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	return convert.ToProtoSession(id.String(), tok), nil
}

// SignIn authenticates a user and returns a session.
func (s *Server) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, pwd := convert.GetString(req, convert.KeyEmail), convert.GetString(req, convert.KeyPassword)
	tok, u, err := s.auth.LoginWithIP(ctx, email, pwd, remoteIP(ctx))
	switch {
	case err == nil:
		s.rec.RecordSignIn(metrics.SignInOK)
	case errors.Is(err, errs.ErrUnauthorized):
		s.rec.RecordSignIn(metrics.SignInRejected)
		return nil, status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrRateLimited):
		s.rec.RecordSignIn(metrics.SignInRateLimited)
		return nil, status.Error(codes.ResourceExhausted, "too many attempts")
	default:
		s.rec.RecordSignIn(metrics.SignInError)
		return nil, s.toStatus("sign in", err)
	}
	return convert.ToProtoSession(u.ID.String(), tok), nil
}

// SignOut revokes the caller's token.
func (s *Server) SignOut(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.SignOut(ctx, p); err != nil {
		return nil, s.toStatus("sign out", err)
	}
	return convert.Empty(), nil
}

// DeleteAccount removes the caller's identity and profile.
func (s *Server) DeleteAccount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.DeleteAccount(ctx, p); err != nil {
		return nil, s.toStatus("delete account", err)
	}
	return convert.Empty(), nil
}

// SendPasswordReset mails a reset token. Unknown emails succeed silently.
func (s *Server) SendPasswordReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.auth.RequestPasswordReset(ctx, convert.GetString(req, convert.KeyEmail)); err != nil {
		return nil, s.toStatus("password reset", err)
	}
	return convert.Empty(), nil
}

// ResetPassword sets a new password from a reset token.
func (s *Server) ResetPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tok, pwd := convert.GetString(req, convert.KeyToken), convert.GetString(req, convert.KeyPassword)
	if tok == "" {
		return nil, status.Error(codes.InvalidArgument, "empty token")
	}
	if err := s.auth.ResetPassword(ctx, tok, pwd); err != nil {
		return nil, s.toStatus("reset password", err)
	}
	return convert.Empty(), nil
}

// --- Documents ---

// GetProfile returns the caller's profile document.
func (s *Server) GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	doc, found, err := s.docs.GetProfile(ctx, p, convert.GetString(req, convert.KeyID))
	if err != nil {
		return nil, s.toStatus("get profile", err)
	}
	out, err := convert.ToProtoGetProfileResponse(doc, found)
	if err != nil {
		return nil, s.toStatus("get profile", err)
	}
	return out, nil
}

// SetProfile replaces the caller's profile document.
func (s *Server) SetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	doc := convert.FromProtoDocument(req.GetFields()[convert.KeyDocument].GetStructValue())
	if err := s.docs.SetProfile(ctx, p, convert.GetString(req, convert.KeyID), doc); err != nil {
		return nil, s.toStatus("set profile", err)
	}
	return convert.Empty(), nil
}

// UpdateProfile merges fields into the caller's profile document.
func (s *Server) UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	fields := convert.FromProtoDocument(req.GetFields()[convert.KeyFields].GetStructValue())
	if err := s.docs.UpdateProfile(ctx, p, convert.GetString(req, convert.KeyID), fields); err != nil {
		return nil, s.toStatus("update profile", err)
	}
	return convert.Empty(), nil
}

// PutAsset stores a blob and returns its URL.
func (s *Server) PutAsset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	key, data, err := convert.FromProtoAsset(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad asset: %v", err)
	}
	url, err := s.docs.PutAsset(ctx, p, key, data)
	if err != nil {
		return nil, s.toStatus("put asset", err)
	}
	s.rec.RecordAssetBytes(len(data))
	return convert.Strings(map[string]string{convert.KeyURL: url}), nil
}

func principal(ctx context.Context) (model.Principal, error) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return model.Principal{}, status.Error(codes.Unauthenticated, "no auth")
	}
	return p, nil
}

// toStatus maps service errors to gRPC codes. Unexpected errors are logged
// and reported without detail.
func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Errorf(codes.Unauthenticated, "%s: unauthenticated", op)
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Errorf(codes.AlreadyExists, "%s: already exists", op)
	case errors.Is(err, errs.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: not found", op)
	case errors.Is(err, errs.ErrPermissionDenied):
		return status.Errorf(codes.PermissionDenied, "%s: permission denied", op)
	case errors.Is(err, errs.ErrRateLimited):
		return status.Errorf(codes.ResourceExhausted, "%s: rate limited", op)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, op)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, op)
	}
	s.log.Error("request failed", zap.String("op", op), zap.Error(err))
	return status.Errorf(codes.Internal, "%s: internal", op)
}
