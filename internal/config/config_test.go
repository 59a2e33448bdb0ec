package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/hamed0406/webping/internal/domain"
)

func TestFromEnv_ParsesAndDefaults(t *testing.T) {
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("PROBE_TIMEOUT_MS", "1234")
	t.Setenv("DEFAULT_INTERVAL_SEC", "15")
	t.Setenv("OVERLAP_POLICY", "skip")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://ui.test ,")
	t.Setenv("RATE_LIMIT_RPM", "111")
	t.Setenv("RATE_LIMIT_BURST", "22")
	t.Setenv("AUTOSTART", "false")
	t.Setenv("ALERT_COOLDOWN_SEC", "10")

	cfg := FromEnv()

	if cfg.Addr != ":9090" || cfg.LogDir != "./_testlogs" {
		t.Fatalf("addr/logdir wrong: %+v", cfg)
	}
	if cfg.ProbeTimeout != 1234*time.Millisecond || cfg.DefaultInterval != 15 {
		t.Fatalf("probe settings wrong: %+v", cfg)
	}
	if cfg.OverlapPolicy != "skip" || cfg.Autostart {
		t.Fatalf("scheduler settings wrong: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://ui.test" {
		t.Fatalf("origins wrong: %q", cfg.AllowedOrigins)
	}
	if cfg.RateLimitRPM != 111 || cfg.RateLimitBurst != 22 || cfg.AlertCooldown != 10*time.Second {
		t.Fatalf("limits wrong: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"API_ADDR", "LOG_DIR", "PROBE_TIMEOUT_MS", "DEFAULT_INTERVAL_SEC", "AUTOSTART", "OVERLAP_POLICY"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Addr != "127.0.0.1:3000" || cfg.LogDir != "logs" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if cfg.ProbeTimeout != 5*time.Second || cfg.DefaultInterval != 60 || !cfg.Autostart {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{
		Addr:            "",
		ProbeTimeout:    0,
		DefaultInterval: 0,
		OverlapPolicy:   "queue",
		SlackWebhookURL: "http://insecure",
		SitesFile:       filepath.Join(t.TempDir(), "missing.yaml"),
	}
	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 6 {
		t.Fatalf("want 6 errors, got %d: %v", got, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing sites file should wrap ErrNotExist: %v", err)
	}
}

func TestValidate_DefaultIntervalUpperBound(t *testing.T) {
	cfg := Config{
		Addr:            "127.0.0.1:3000",
		ProbeTimeout:    time.Second,
		DefaultInterval: int(domain.MaxInterval) + 1,
		OverlapPolicy:   "overlap",
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DEFAULT_INTERVAL_SEC must be at most") {
		t.Fatalf("oversized default interval should fail, got %v", err)
	}
}

func TestReadSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	body := `sites:
  - url: https://www.google.com
    name: Google
    interval: 60
  - url: https://example.com
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	in, err := ReadSites(path)
	if err != nil {
		t.Fatalf("ReadSites: %v", err)
	}
	if len(in) != 2 || in[0].Name != "Google" || in[1].Interval != 0 {
		t.Fatalf("unexpected sites: %+v", in)
	}

	sites, err := SeedSites(in, 45)
	if err != nil {
		t.Fatalf("SeedSites: %v", err)
	}
	if sites[0].ID != 1 || sites[1].ID != 2 {
		t.Fatalf("ids not sequential: %+v", sites)
	}
	if sites[1].Name != "https://example.com" || sites[1].Interval != 45 {
		t.Fatalf("defaults not applied: %+v", sites[1])
	}
}

func TestReadSites_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	_ = os.WriteFile(path, []byte("sites:\n  - url: https://a.test\n    intervall: 5\n"), 0o644)
	if _, err := ReadSites(path); err == nil {
		t.Fatalf("typo in field name should fail")
	}
}

func TestSeedSites_InvalidURL(t *testing.T) {
	_, err := SeedSites([]domain.SiteInput{{URL: "nope"}}, 60)
	if !errors.Is(err, domain.ErrValidation) || !strings.Contains(err.Error(), "site 1") {
		t.Fatalf("want validation error naming the site, got %v", err)
	}
}

func TestDefaultSites_AreValid(t *testing.T) {
	sites, err := SeedSites(DefaultSites(), 60)
	if err != nil || len(sites) != 3 {
		t.Fatalf("built-in sites invalid: %v", err)
	}
}

func TestAddFlags_OverrideEnv(t *testing.T) {
	t.Setenv("API_ADDR", ":1111")
	cfg := FromEnv()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cfg.AddFlags(cmd)
	cmd.SetArgs([]string{"--addr", ":2222", "--debug", "--autostart=false"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":2222" || !cfg.Debug || cfg.Autostart {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}
