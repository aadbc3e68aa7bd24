// Package rpc describes the ProfileKeeper gRPC service. Every method takes and
// returns a google.protobuf.Struct whose fields are named in package convert.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "profilekeeper.v1.ProfileKeeper"

// Method names.
const (
	MethodRegister          = "Register"
	MethodSignIn            = "SignIn"
	MethodSignOut           = "SignOut"
	MethodDeleteAccount     = "DeleteAccount"
	MethodSendPasswordReset = "SendPasswordReset"
	MethodResetPassword     = "ResetPassword"
	MethodGetProfile        = "GetProfile"
	MethodSetProfile        = "SetProfile"
	MethodUpdateProfile     = "UpdateProfile"
	MethodPutAsset          = "PutAsset"
)

// FullMethod returns the wire path of method.
func FullMethod(method string) string { return "/" + ServiceName + "/" + method }

// public methods are callable without a bearer token.
var public = map[string]bool{
	FullMethod(MethodRegister):          true,
	FullMethod(MethodSignIn):            true,
	FullMethod(MethodSendPasswordReset): true,
	FullMethod(MethodResetPassword):     true,
}

// Public reports whether fullMethod may be called anonymously.
func Public(fullMethod string) bool { return public[fullMethod] }

// Server is the handler set behind ServiceDesc.
type Server interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendPasswordReset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutAsset(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(Server, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc is registered on a grpc.Server by RegisterServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, Server.Register),
		unary(MethodSignIn, Server.SignIn),
		unary(MethodSignOut, Server.SignOut),
		unary(MethodDeleteAccount, Server.DeleteAccount),
		unary(MethodSendPasswordReset, Server.SendPasswordReset),
		unary(MethodResetPassword, Server.ResetPassword),
		unary(MethodGetProfile, Server.GetProfile),
		unary(MethodSetProfile, Server.SetProfile),
		unary(MethodUpdateProfile, Server.UpdateProfile),
		unary(MethodPutAsset, Server.PutAsset),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "profilekeeper/v1/profilekeeper.proto",
}

// RegisterServer attaches srv to r.
func RegisterServer(r grpc.ServiceRegistrar, srv Server) {
	r.RegisterService(&ServiceDesc, srv)
}

// Client invokes ProfileKeeper methods over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with in and returns the reply message.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
