// Package client talks to pk-server: it implements the identity provider,
// profile store and asset store contracts over gRPC.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Options selects the server and how to trust it.
type Options struct {
	Addr   string
	CACert string
	// Insecure skips certificate verification (dev).
	Insecure bool
	// Plaintext disables TLS entirely, for servers started with --dev and no cert.
	Plaintext bool
}

// bearerCreds attaches the stored access token, read on every call so a
// sign-in on the same connection takes effect immediately.
type bearerCreds struct {
	tokens *TokenStore
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	tok := b.tokens.token()
	if tok == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + tok}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

// LoadTLS builds transport credentials from a CA file, the system pool, or no verification.
func LoadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

// Dial opens a connection that authenticates with the credentials in tokens.
func Dial(o Options, tokens *TokenStore, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if o.Plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = LoadTLS(o.CACert, o.Insecure); err != nil {
			return nil, err
		}
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(bearerCreds{tokens: tokens, secure: !o.Plaintext}),
	}, extra...)
	return grpc.NewClient(o.Addr, opts...)
}
