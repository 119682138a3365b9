package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callwaiting/ttsbridge/internal/api"
	"github.com/callwaiting/ttsbridge/internal/audiostore"
	"github.com/callwaiting/ttsbridge/internal/config"
	"github.com/callwaiting/ttsbridge/internal/metrics"
	"github.com/callwaiting/ttsbridge/internal/synth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stdout)))

	slog.Info("starting ttsbridge",
		"version", api.Version,
		"http_port", cfg.HTTPPort,
		"audio_dir", cfg.AudioDir,
		"tts_url", cfg.TTSURL,
		"audio_max_age", cfg.AudioMaxAge.String(),
		"signature_check", cfg.TwilioAuthToken != "",
	)
	if cfg.TTSToken == "" {
		slog.Warn("no tts token configured, synthesis requests will be sent without credentials")
	}

	store, err := audiostore.New(cfg.AudioDir, ".mp3")
	if err != nil {
		slog.Error("failed to open audio store", "error", err)
		os.Exit(1)
	}

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	if cfg.SweepInterval > 0 {
		audiostore.StartCleanupTicker(appCtx, store, cfg.AudioMaxAge, cfg.SweepInterval)
	}

	handler := api.NewServer(cfg, store, synth.NewClient(cfg.TTSURL, cfg.TTSToken))
	defer handler.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector(store, handler.Stats(), startTime),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler.Router().Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// WriteTimeout leaves room for the 60s synthesis call on the webhook.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var challengeSrv *http.Server
	g, _ := errgroup.WithContext(appCtx)

	switch {
	case cfg.ACMEDomain != "":
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.ACMEDomain),
			Cache:      autocert.DirCache(cfg.ACMECacheDir),
			Email:      cfg.ACMEEmail,
		}
		srv.TLSConfig = &tls.Config{
			GetCertificate: m.GetCertificate,
			NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
			MinVersion:     tls.VersionTLS12,
		}

		// HTTP-01 challenges arrive on port 80; everything else is
		// redirected to HTTPS by the manager's fallback.
		challengeSrv = &http.Server{
			Addr:              ":80",
			Handler:           m.HTTPHandler(nil),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("acme challenge listener started", "addr", challengeSrv.Addr)
			return serve(challengeSrv.ListenAndServe())
		})
		g.Go(func() error {
			slog.Info("https server listening", "addr", srv.Addr, "domain", cfg.ACMEDomain, "cache_dir", cfg.ACMECacheDir)
			return serve(srv.ListenAndServeTLS("", ""))
		})

	case cfg.TLSCert != "":
		g.Go(func() error {
			slog.Info("https server listening", "addr", srv.Addr)
			return serve(srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey))
		})

	default:
		g.Go(func() error {
			slog.Info("http server listening", "addr", srv.Addr)
			return serve(srv.ListenAndServe())
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Wait()
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("http server error", "error", err)
		}
	}

	// Graceful shutdown with timeout. In-flight synthesis may be abandoned.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down servers")
	appCancel()

	exitCode := 0
	if challengeSrv != nil {
		if err := challengeSrv.Shutdown(ctx); err != nil {
			slog.Error("acme challenge server shutdown error", "error", err)
			exitCode = 1
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		exitCode = 1
	}

	slog.Info("ttsbridge stopped")
	if exitCode != 0 {
		handler.Close()
		os.Exit(exitCode)
	}
}

// serve maps the normal-shutdown error to nil.
func serve(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
