package main

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"ofsync/internal/interfaces/scheduler"
	"ofsync/internal/shared/config"
	"ofsync/internal/shared/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
}

// StartServers creates and starts the main server and optional redirect server.
// Returns the main server and redirect server (nil if not enabled).
func StartServers(scfg ServerConfig, log *zap.Logger) (*http.Server, *http.Server) {
	srv := &http.Server{
		Addr:        scfg.Addr,
		Handler:     scfg.Handler,
		ReadTimeout: 15 * time.Second,
		// POST /api/openfinance/sync runs synchronously.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var redirectSrv *http.Server

	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = createRedirectServer(scfg.AllowedHosts)
		go func() {
			log.Info("HTTP redirect server starting", zap.String("addr", redirectSrv.Addr))
			if err := redirectSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP redirect server error", zap.Error(err))
			}
		}()
	}

	go func() {
		if scfg.TLSEnabled {
			log.Info("HTTPS server starting", zap.String("addr", scfg.Addr))
			if err := srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath); err != nil && err != http.ErrServerClosed {
				log.Fatal("HTTPS server error", zap.Error(err))
			}
		} else {
			log.Info("HTTP server starting", zap.String("addr", scfg.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("HTTP server error", zap.Error(err))
			}
		}
	}()

	return srv, redirectSrv
}

// GracefulShutdown stops accepting requests, then drains background sync
// work: scheduler first, then the notification listener, then the pool.
func GracefulShutdown(srv, redirectSrv *http.Server, sched *scheduler.Scheduler, deps *Dependencies, timeout time.Duration, log *zap.Logger) {
	log.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if redirectSrv != nil {
		if err := redirectSrv.Shutdown(ctx); err != nil {
			log.Error("error shutting down HTTP redirect server", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error shutting down main server", zap.Error(err))
	}

	if sched != nil {
		sched.Shutdown(timeout)
	}
	if deps.Listener != nil {
		deps.Listener.Stop()
	}
	if deps.Pool != nil {
		deps.Pool.ShutdownWithTimeout(timeout)
	}

	log.Info("server stopped")
}

// redirectToHTTPS answers plain HTTP with a permanent redirect to the same
// path over HTTPS. Hosts outside the allow list get 400 so a forged Host
// header cannot turn the redirect into an open redirect.
func redirectToHTTPS(allowedHosts []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}
		if !middleware.IsHostAllowed(host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
			if strings.Contains(h, ":") {
				host = "[" + h + "]"
			}
		}

		target := url.URL{Scheme: "https", Host: host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
		http.Redirect(w, r, target.String(), http.StatusMovedPermanently)
	})
}

func createRedirectServer(allowedHosts []string) *http.Server {
	return &http.Server{
		Addr:              ":80",
		Handler:           redirectToHTTPS(allowedHosts),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

// NewServerConfigFromConfig maps the loaded config onto ServerConfig.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	scfg := ServerConfig{
		Handler:      handler,
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		AllowedHosts: cfg.Server.AllowedHosts,
	}
	if cfg.TLS.Enabled {
		scfg.TLSEnabled = true
		scfg.CertPath, scfg.KeyPath = cfg.TLS.CertPath, cfg.TLS.KeyPath
		scfg.RedirectHTTP = cfg.TLS.RedirectHTTP
	}
	return scfg
}
