// Package httpserver serves stored assets, health and metrics over HTTP.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/profilekeeper/internal/errs"
)

// AssetOpener opens a stored asset by key.
type AssetOpener interface {
	Open(key string) (io.ReadSeekCloser, error)
}

// Pinger is a dependency checked by /healthz.
type Pinger func(ctx context.Context) error

// Config holds the router dependencies. Nil handlers disable their routes.
type Config struct {
	Assets  AssetOpener
	Metrics http.Handler
	Checks  map[string]Pinger
	Log     *zap.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(cfg.Checks, log))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.Assets != nil {
		r.Get("/assets/*", assets(cfg.Assets, log))
	}
	return r
}

func healthz(checks map[string]Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				log.Warn("health check failed", zap.String("check", name), zap.Error(err))
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	}
}

func assets(store AssetOpener, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		f, err := store.Open(key)
		switch {
		case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrInvalidInput):
			http.NotFound(w, r)
			return
		case err != nil:
			log.Error("open asset", zap.String("key", key), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		// keys are write-once
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		name := key
		if i := strings.LastIndex(key, "/"); i >= 0 {
			name = key[i+1:]
		}
		http.ServeContent(w, r, name, time.Time{}, f)
	}
}
