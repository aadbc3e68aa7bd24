// Command pk is a CLI client for the profilekeeper service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/and161185/profilekeeper/internal/asset"
	"github.com/and161185/profilekeeper/internal/client"
	"github.com/and161185/profilekeeper/internal/errs"
	"github.com/and161185/profilekeeper/internal/profile"
	"github.com/and161185/profilekeeper/internal/session"
	"github.com/and161185/profilekeeper/internal/telemetry"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app carries what every command needs. dial is swapped in tests.
type app struct {
	dir     string
	cfg     cliConfig
	tokens  *client.TokenStore
	log     *zap.Logger
	out     io.Writer
	errOut  io.Writer
	timeout time.Duration
	dial    func(client.Options, *client.TokenStore) (*grpc.ClientConn, error)
}

// conn is an open connection with the session layer built on top of it.
type conn struct {
	cc  *grpc.ClientConn
	idp *client.Identity
	mgr *session.Manager
}

func (c *conn) Close() { _ = c.cc.Close() }

func (a *app) connect() (*conn, error) {
	cc, err := a.dial(client.Options{
		Addr:      a.cfg.Addr,
		CACert:    a.cfg.CACert,
		Insecure:  a.cfg.Insecure,
		Plaintext: a.cfg.Plaintext,
	}, a.tokens)
	if err != nil {
		return nil, err
	}
	idp := client.NewIdentity(cc, a.tokens, a.log)
	profiles := profile.NewService(client.NewProfiles(cc), a.log)
	uploads := asset.NewCoordinator(client.NewAssets(cc), profiles, a.log)
	return &conn{cc: cc, idp: idp, mgr: session.NewManager(idp, profiles, uploads, a.log)}, nil
}

// restored connects and restores the stored session, failing when there is none.
func (a *app) restored(ctx context.Context) (*conn, error) {
	c, err := a.connect()
	if err != nil {
		return nil, err
	}
	c.mgr.Restore(ctx)
	if !c.mgr.Session().IsSignedIn() {
		c.Close()
		return nil, fmt.Errorf("%w: run `pk login` first", errs.ErrNotSignedIn)
	}
	return c, nil
}

func (a *app) printf(format string, args ...any) { _, _ = fmt.Fprintf(a.out, format, args...) }

func (a *app) warnf(format string, args ...any) { _, _ = fmt.Fprintf(a.errOut, "warning: "+format+"\n", args...) }

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func newApp() *app {
	return &app{
		dir:     client.DefaultDir(),
		log:     zap.NewNop(),
		out:     os.Stdout,
		errOut:  os.Stderr,
		timeout: 30 * time.Second,
		dial: func(o client.Options, t *client.TokenStore) (*grpc.ClientConn, error) {
			return client.Dial(o, t, telemetry.DialOption())
		},
	}
}

// newRootCmd wires global flags over config.yaml and registers the subcommands.
func newRootCmd(a *app) *cobra.Command {
	var (
		flags   cliConfig
		verbose bool
	)
	root := &cobra.Command{
		Use:           "pk",
		Short:         "profilekeeper client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath(a.dir))
			if err != nil {
				return err
			}
			pf := cmd.Flags()
			if pf.Changed("addr") {
				cfg.Addr = flags.Addr
			}
			if pf.Changed("cacert") {
				cfg.CACert = flags.CACert
			}
			if pf.Changed("insecure") {
				cfg.Insecure = flags.Insecure
			}
			if pf.Changed("plaintext") {
				cfg.Plaintext = flags.Plaintext
			}
			a.cfg = cfg
			a.tokens = client.NewTokenStore(a.dir)
			if verbose {
				if l, err := zap.NewDevelopment(); err == nil {
					a.log = l
				}
			}
			return nil
		},
	}
	def := defaultConfig()
	root.PersistentFlags().StringVar(&flags.Addr, "addr", def.Addr, "server address (config: addr)")
	root.PersistentFlags().StringVar(&flags.CACert, "cacert", "", "CA cert (PEM) (config: cacert)")
	root.PersistentFlags().BoolVar(&flags.Insecure, "insecure", false, "skip cert verify, dev only (config: insecure)")
	root.PersistentFlags().BoolVar(&flags.Plaintext, "plaintext", false, "no TLS, for a --dev server (config: plaintext)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		versionCmd(a),
		configCmd(a),
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		createProfileCmd(a),
		setPictureCmd(a),
		deleteAccountCmd(a),
		forgotPasswordCmd(a),
		resetPasswordCmd(a),
	)
	return root
}

// main runs the command tree and reports failures the way gRPC reports them.
func main() {
	a := newApp()
	if err := newRootCmd(a).Execute(); err != nil {
		fail(err)
	}
	_ = a.log.Sync()
}

func fail(err error) {
	var st interface{ GRPCStatus() *status.Status }
	if errors.As(err, &st) {
		s := st.GRPCStatus()
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
