// Command pk-server starts the profilekeeper gRPC server and its HTTP side listener.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/profilekeeper/internal/config"
	pkgcrypto "github.com/and161185/profilekeeper/internal/crypto"
	"github.com/and161185/profilekeeper/internal/limiter"
	"github.com/and161185/profilekeeper/internal/mailer"
	"github.com/and161185/profilekeeper/internal/metrics"
	"github.com/and161185/profilekeeper/internal/migrate"
	"github.com/and161185/profilekeeper/internal/repository"
	"github.com/and161185/profilekeeper/internal/repository/blob"
	"github.com/and161185/profilekeeper/internal/repository/memory"
	"github.com/and161185/profilekeeper/internal/repository/postgres"
	"github.com/and161185/profilekeeper/internal/revoke"
	"github.com/and161185/profilekeeper/internal/rpc"
	grpcserver "github.com/and161185/profilekeeper/internal/server/grpc"
	httpserver "github.com/and161185/profilekeeper/internal/server/http"
	"github.com/and161185/profilekeeper/internal/service"
	"github.com/and161185/profilekeeper/internal/telemetry"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, prepares storage and serves gRPC and HTTP until signalled.
func main() {
	cfg, err := config.Load(".env", os.Args[1:])
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("httpAddr", cfg.HTTPAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "pk-server", cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("telemetry setup", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	checks := map[string]httpserver.Pinger{}

	// Repositories
	var (
		users    repository.UserRepository
		profiles repository.ProfileStore
		lim      limiter.Login = limiter.Nop{}
	)
	if cfg.DSN != "" {
		if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			logger.Fatal("postgres", zap.Error(err))
		}
		defer db.Close()
		users = postgres.NewUserRepo(db)
		profiles = postgres.NewProfileRepo(db)
		lim = limiter.NewPGWithQuerier(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)
		checks["postgres"] = db.Ping
	} else {
		logger.Warn("no DSN configured, accounts and profiles live in memory")
		mp := memory.NewProfiles()
		users = memory.NewUsers(mp)
		profiles = mp
	}

	assets, err := blob.NewFS(cfg.AssetDir, cfg.AssetBaseURL)
	if err != nil {
		logger.Fatal("asset store", zap.Error(err))
	}

	var revoked revoke.Store
	if cfg.RedisAddr != "" {
		rs := revoke.NewRedis(cfg.RedisAddr, cfg.RedisDB)
		defer func() { _ = rs.Close() }()
		revoked = rs
		checks["redis"] = rs.Ping
	} else {
		revoked = revoke.NewMemory(time.Minute)
	}

	var mail mailer.Sender = mailer.NewLog(logger)
	if cfg.SMTPHost != "" {
		smtp := mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass)
		smtp.Insecure = cfg.SMTPInsecure
		mail = smtp
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	// Services
	authSvc := service.NewAuthService(users, pkgcrypto.NewHasher(pkgcrypto.DefaultParams), service.AuthConfig{
		SignKey:   []byte(cfg.JWTKey),
		AccessTTL: cfg.AccessTTL,
		ResetTTL:  cfg.ResetTTL,
	}, lim, revoked, mail, logger)
	uploads := limiter.NewSubject(cfg.UploadsPerMinute, cfg.UploadBurst, 10*time.Minute)
	docSvc := service.NewDocumentService(profiles, assets, uploads, cfg.MaxAssetBytes, logger)

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		telemetry.ServerOption(),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.MetricsUnary(rec),
			grpcserver.AuthUnary(authSvc),
		),
	}
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("serving plaintext gRPC (dev)")
	}
	s := grpc.NewServer(opts...)
	rpc.RegisterServer(s, grpcserver.New(authSvc, docSvc, rec, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	if cfg.Dev {
		reflection.Register(s)
	}

	hsrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpserver.NewRouter(httpserver.Config{
			Assets:  assets,
			Metrics: metrics.Handler(reg),
			Checks:  checks,
			Log:     logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (gRPC)", zap.String("addr", cfg.Addr))
		errCh <- s.Serve(lis)
	}()
	go func() {
		logger.Info("listening (HTTP)", zap.String("addr", cfg.HTTPAddr))
		if err := hsrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hsrv.Shutdown(sctx)

		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-sctx.Done():
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}
