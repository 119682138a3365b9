package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all runtime configuration for the ttsbridge server.
// Precedence: CLI flags > env vars > defaults. It is built once by Load and
// treated as read-only afterwards.
type Config struct {
	HTTPPort        int
	AudioDir        string        // directory holding generated audio files
	TTSURL          string        // synthesis backend endpoint
	TTSToken        string        // bearer credential for the synthesis backend
	PublicURL       string        // externally reachable base URL (e.g., "https://tts.example.com")
	AudioMaxAge     time.Duration // audio files older than this are swept
	SweepInterval   time.Duration // background sweep period; 0 sweeps only on audio fetch
	TwilioAuthToken string        // enables X-Twilio-Signature validation when set
	TLSCert         string
	TLSKey          string
	ACMEDomain      string // domain for automatic Let's Encrypt certificate
	ACMEEmail       string // contact email for Let's Encrypt account notifications
	ACMECacheDir    string // certificate cache; defaults to "acme" beside the audio dir
	LogLevel        string
	LogFormat       string // log output format: "text" or "json"
}

// defaults
const (
	defaultHTTPPort    = 8787
	defaultAudioDir    = "/tmp/callwaiting_audio"
	defaultTTSURL      = "http://localhost:8888/synthesize"
	defaultAudioMaxAge = time.Hour
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
)

// envPrefix is the prefix for all ttsbridge environment variables.
const envPrefix = "TTSBRIDGE_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("ttsbridge", flag.ContinueOnError)

	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.AudioDir, "audio-dir", defaultAudioDir, "directory for generated audio files")
	fs.StringVar(&cfg.TTSURL, "tts-url", defaultTTSURL, "URL of the speech synthesis backend")
	fs.StringVar(&cfg.TTSToken, "tts-token", "", "bearer token sent to the speech synthesis backend")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "public base URL used in audio links (derived from the request if empty)")
	fs.DurationVar(&cfg.AudioMaxAge, "audio-max-age", defaultAudioMaxAge, "age after which audio files are deleted")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", 0, "background sweep interval (0 sweeps only when audio is fetched)")
	fs.StringVar(&cfg.TwilioAuthToken, "twilio-auth-token", "", "Twilio auth token for webhook signature validation (disabled if empty)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to TLS certificate file")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to TLS private key file")
	fs.StringVar(&cfg.ACMEDomain, "acme-domain", "", "domain for automatic Let's Encrypt TLS certificate (e.g., tts.example.com)")
	fs.StringVar(&cfg.ACMEEmail, "acme-email", "", "contact email for Let's Encrypt account notifications")
	fs.StringVar(&cfg.ACMECacheDir, "acme-cache-dir", "", "directory for cached Let's Encrypt certificates (default: acme/ next to audio-dir)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	if err := applyEnvOverrides(fs); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. Each env var is parsed through the
// flag's own Set method, so env values get the same validation as flags.
func applyEnvOverrides(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var firstErr error
	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] || firstErr != nil {
			return
		}
		envVar := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			return
		}
		if err := f.Value.Set(val); err != nil {
			firstErr = fmt.Errorf("%s: %w", envVar, err)
		}
	})
	return firstErr
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.AudioDir == "" {
		return fmt.Errorf("audio-dir must not be empty")
	}

	u, err := url.Parse(c.TTSURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("tts-url must be an absolute http(s) URL, got %q", c.TTSURL)
	}

	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("public-url must be an absolute http(s) URL, got %q", c.PublicURL)
		}
		c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	}

	if c.AudioMaxAge <= 0 {
		return fmt.Errorf("audio-max-age must be positive, got %s", c.AudioMaxAge)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep-interval must not be negative, got %s", c.SweepInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	// TLS cert and key must both be set or both be empty.
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must both be provided or both be omitted")
	}

	// ACME domain and manual TLS cert/key are mutually exclusive.
	if c.ACMEDomain != "" && c.TLSCert != "" {
		return fmt.Errorf("acme-domain and tls-cert/tls-key are mutually exclusive")
	}
	if c.ACMEDomain != "" && c.ACMECacheDir == "" {
		c.ACMECacheDir = filepath.Join(filepath.Dir(filepath.Clean(c.AudioDir)), "acme")
	}

	return nil
}

// TLSEnabled returns true if either manual TLS certificates or automatic
// ACME (Let's Encrypt) certificates are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" || c.ACMEDomain != ""
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
