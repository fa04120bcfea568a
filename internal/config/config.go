package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	UITerminal = "tui"
	UIRepl     = "repl"
	UIWeb      = "web"
)

const (
	DefaultServerURL = "http://localhost:8000"
	DefaultTimeout   = 60 * time.Second
	DefaultLogDir    = "logs"
	DefaultWebAddr   = "127.0.0.1:8080"
)

// Config holds application configuration
type Config struct {
	ServerURL string        // Base URL of the document QA service (serves /upload and /ask)
	Timeout   time.Duration // Per-request timeout, 0 disables
	UI        string
	LogDir    string
	WebAddr   string // Listen address for the browser UI
	Debug     bool

	// Startup selection
	File  string // Document to select before the first prompt
	Watch bool   // Re-upload File whenever it changes on disk
}

// Load reads configuration from the environment, falling back to defaults.
// Only parse errors are reported; call Validate once flags have been applied.
func Load() (Config, error) {
	cfg := Config{
		ServerURL: envOr("DOCCHAT_SERVER_URL", DefaultServerURL),
		Timeout:   DefaultTimeout,
		UI:        envOr("DOCCHAT_UI", UITerminal),
		LogDir:    envOr("DOCCHAT_LOG_DIR", DefaultLogDir),
		WebAddr:   envOr("DOCCHAT_WEB_ADDR", DefaultWebAddr),
	}

	if raw := strings.TrimSpace(os.Getenv("DOCCHAT_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DOCCHAT_TIMEOUT %q: %w", raw, err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Validate checks values that may have been overridden by flags.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid DOCCHAT_SERVER_URL %q: want http(s)://host[:port]", c.ServerURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid DOCCHAT_TIMEOUT %s: must not be negative", c.Timeout)
	}
	switch c.UI {
	case UITerminal, UIRepl, UIWeb:
	default:
		return fmt.Errorf("invalid DOCCHAT_UI %q: want %s|%s|%s", c.UI, UITerminal, UIRepl, UIWeb)
	}
	if c.Watch && c.File == "" {
		return fmt.Errorf("-watch requires -file")
	}
	// The browser UI selects documents per tab.
	if c.UI == UIWeb && (c.File != "" || c.Watch) {
		return fmt.Errorf("-file and -watch are not supported with -ui %s", UIWeb)
	}
	return nil
}

// Endpoint joins the server base URL with an endpoint path.
func (c Config) Endpoint(path string) string {
	return strings.TrimRight(c.ServerURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
