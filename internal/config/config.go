package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/webping/internal/domain"
	"github.com/hamed0406/webping/internal/scheduler"
)

type Config struct {
	Addr   string // API bind address, e.g. "127.0.0.1:3000" or ":3000" (Docker)
	LogDir string // logs directory
	Debug  bool

	ProbeTimeout       time.Duration
	DefaultInterval    int    // seconds, for sites that omit one
	OverlapPolicy      string // overlap | skip | delay
	PingAllConcurrency int    // 0 = unbounded
	Autostart          bool   // arm timers at boot
	SitesFile          string // optional YAML seed; empty uses the built-in sites

	SlackWebhookURL string
	AlertOnRecovery bool
	AlertCooldown   time.Duration

	AllowedOrigins []string // CORS and websocket origins; empty allows any
	RateLimitRPM   int      // per client IP; 0 disables
	RateLimitBurst int
}

// FromEnv reads configuration from the environment, after loading a .env file
// from the working directory when one exists. Variables already set win.
func FromEnv() Config {
	_ = godotenv.Load()

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:3000"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	return Config{
		Addr:   addr,
		LogDir: logDir,
		Debug:  envBool("LOG_DEBUG", false),

		ProbeTimeout:       time.Duration(envInt("PROBE_TIMEOUT_MS", 5000)) * time.Millisecond,
		DefaultInterval:    envInt("DEFAULT_INTERVAL_SEC", domain.DefaultInterval),
		OverlapPolicy:      os.Getenv("OVERLAP_POLICY"),
		PingAllConcurrency: envInt("PING_ALL_CONCURRENCY", 0),
		Autostart:          envBool("AUTOSTART", true),
		SitesFile:          os.Getenv("SITES_FILE"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		AlertOnRecovery: envBool("ALERT_ON_RECOVERY", true),
		AlertCooldown:   time.Duration(envInt("ALERT_COOLDOWN_SEC", 300)) * time.Second,

		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		RateLimitRPM:   envInt("RATE_LIMIT_RPM", 600),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 60),
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	if strings.TrimSpace(c.Addr) == "" {
		errs = multierr.Append(errs, fmt.Errorf("API_ADDR must not be empty"))
	}
	if c.ProbeTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("PROBE_TIMEOUT_MS must be positive"))
	}
	if c.DefaultInterval < 1 {
		errs = multierr.Append(errs, fmt.Errorf("DEFAULT_INTERVAL_SEC must be at least 1"))
	} else if int64(c.DefaultInterval) > domain.MaxInterval {
		errs = multierr.Append(errs, fmt.Errorf("DEFAULT_INTERVAL_SEC must be at most %d", domain.MaxInterval))
	}
	if _, err := scheduler.ParseOverlapPolicy(c.OverlapPolicy); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("OVERLAP_POLICY: %w", err))
	}
	if c.PingAllConcurrency < 0 {
		errs = multierr.Append(errs, fmt.Errorf("PING_ALL_CONCURRENCY must not be negative"))
	}
	if c.RateLimitRPM < 0 || c.RateLimitBurst < 0 {
		errs = multierr.Append(errs, fmt.Errorf("RATE_LIMIT_RPM and RATE_LIMIT_BURST must not be negative"))
	}
	if c.AlertCooldown < 0 {
		errs = multierr.Append(errs, fmt.Errorf("ALERT_COOLDOWN_SEC must not be negative"))
	}
	if c.SlackWebhookURL != "" {
		if u, err := url.Parse(c.SlackWebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = multierr.Append(errs, fmt.Errorf("SLACK_WEBHOOK_URL must be an https URL"))
		}
	}
	if c.SitesFile != "" {
		if _, err := os.Stat(c.SitesFile); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("SITES_FILE: %w", err))
		}
	}
	return errs
}

// AddFlags binds the command-line overrides for the most common settings.
// Flag defaults are the values already read from the environment.
func (c *Config) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Addr, "addr", c.Addr, "Address the API listens on.")
	cmd.Flags().StringVar(&c.LogDir, "log-dir", c.LogDir, "Directory for rotated log files.")
	cmd.Flags().StringVar(&c.SitesFile, "sites-file", c.SitesFile, "YAML file with the sites to monitor at boot.")
	cmd.Flags().StringVar(&c.OverlapPolicy, "overlap-policy", c.OverlapPolicy, "What to do when a probe is still running at the next tick: overlap, skip or delay.")
	cmd.Flags().BoolVar(&c.Autostart, "autostart", c.Autostart, "Start periodic pings at boot.")
	cmd.Flags().BoolVar(&c.Debug, "debug", c.Debug, "Enable debug logging.")
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
