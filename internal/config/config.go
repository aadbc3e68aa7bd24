// Package config loads pk-server settings from the environment, an optional
// .env file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server is the pk-server configuration.
type Server struct {
	Addr     string `env:"PK_ADDR" envDefault:":8443"`
	HTTPAddr string `env:"PK_HTTP_ADDR" envDefault:":8080"`
	// DSN selects PostgreSQL storage; empty keeps everything in memory.
	DSN     string `env:"PK_DSN"`
	TLSCert string `env:"PK_TLS_CERT"`
	TLSKey  string `env:"PK_TLS_KEY"`
	Dev     bool   `env:"PK_DEV"`

	JWTKey    string        `env:"PK_JWT_KEY"`
	AccessTTL time.Duration `env:"PK_ACCESS_TTL" envDefault:"15m"`
	ResetTTL  time.Duration `env:"PK_RESET_TTL" envDefault:"30m"`

	LoginWindow   time.Duration `env:"PK_LOGIN_WINDOW" envDefault:"15m"`
	LoginMaxFails int           `env:"PK_LOGIN_MAX_FAILS" envDefault:"5"`
	LoginBlockFor time.Duration `env:"PK_LOGIN_BLOCK_FOR" envDefault:"15m"`

	AssetDir         string `env:"PK_ASSET_DIR" envDefault:"./data/assets"`
	AssetBaseURL     string `env:"PK_ASSET_BASE_URL" envDefault:"http://localhost:8080/assets"`
	MaxAssetBytes    int    `env:"PK_MAX_ASSET_BYTES" envDefault:"5242880"`
	UploadsPerMinute int    `env:"PK_UPLOADS_PER_MINUTE" envDefault:"10"`
	UploadBurst      int    `env:"PK_UPLOAD_BURST" envDefault:"3"`

	// RedisAddr shares token revocations between replicas; empty keeps them in memory.
	RedisAddr string `env:"PK_REDIS_ADDR"`
	RedisDB   int    `env:"PK_REDIS_DB" envDefault:"0"`

	// SMTPHost enables password reset mail; empty logs the messages instead.
	SMTPHost     string `env:"PK_SMTP_HOST"`
	SMTPPort     int    `env:"PK_SMTP_PORT" envDefault:"587"`
	SMTPFrom     string `env:"PK_SMTP_FROM" envDefault:"no-reply@localhost"`
	SMTPUser     string `env:"PK_SMTP_USER"`
	SMTPPass     string `env:"PK_SMTP_PASS"`
	SMTPInsecure bool   `env:"PK_SMTP_INSECURE"`

	OTelEndpoint string `env:"PK_OTEL_ENDPOINT"`
}

// Load reads envFile (missing is fine), the environment, then args.
func Load(envFile string, args []string) (Server, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Server{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}

	fset := flag.NewFlagSet("pk-server", flag.ContinueOnError)
	fset.StringVar(&cfg.Addr, "addr", cfg.Addr, "gRPC listen address")
	fset.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address for assets, metrics and health")
	fset.StringVar(&cfg.DSN, "dsn", cfg.DSN, "PostgreSQL DSN (empty: in-memory storage)")
	fset.StringVar(&cfg.JWTKey, "jwt-key", cfg.JWTKey, "HS256 signing key (required)")
	fset.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token TTL")
	fset.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "TLS certificate (PEM)")
	fset.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "TLS private key (PEM)")
	fset.StringVar(&cfg.AssetDir, "asset-dir", cfg.AssetDir, "directory for stored assets")
	fset.StringVar(&cfg.AssetBaseURL, "asset-base-url", cfg.AssetBaseURL, "public URL prefix of stored assets")
	fset.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for token revocation (empty: in-memory)")
	fset.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging, reflection and plaintext gRPC")
	if err := fset.Parse(args); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that have no usable default.
func (c Server) Validate() error {
	switch {
	case c.JWTKey == "":
		return errors.New("missing jwt signing key (PK_JWT_KEY or --jwt-key)")
	case len(c.JWTKey) < 16:
		return errors.New("jwt signing key must be at least 16 bytes")
	case (c.TLSCert == "") != (c.TLSKey == ""):
		return errors.New("tls cert and key must be set together")
	case c.TLSCert == "" && !c.Dev:
		return errors.New("tls cert/key required outside --dev")
	case c.AccessTTL <= 0 || c.ResetTTL <= 0:
		return errors.New("token TTLs must be positive")
	}
	return nil
}
