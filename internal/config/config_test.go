package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
arbox:
  email: user@example.com
  password: secret
  whitelabel: acme
  locations_box_id: 3
  boxes_id: 9
  membership_user_id: 17
booking:
  class_time: "08:00"
  days_from_now: 1
  auto_book: true
logging:
  level: debug
  console: true
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseYAMLAppliesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Arbox.Email != "user@example.com" || cfg.Booking.ClassTime != "08:00" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Booking.Cron != DefaultCron {
		t.Fatalf("cron default = %q", cfg.Booking.Cron)
	}
	if cfg.Scheduler.Timezone != DefaultTimezone {
		t.Fatalf("timezone default = %q", cfg.Scheduler.Timezone)
	}
	if cfg.Arbox.RatePerSec != 2 {
		t.Fatalf("rate default = %d", cfg.Arbox.RatePerSec)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML+"\nbogus_section:\n  x: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown top-level key must be rejected")
	}
}

func TestLoadCommitsConfig(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func(t *testing.T) *Config {
		m := NewManager(writeConfig(t, "config.yaml", validYAML))
		cfg, err := m.Parse()
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"missing email", func(c *Config) { c.Arbox.Email = " " }, "arbox.email"},
		{"missing password", func(c *Config) { c.Arbox.Password = "" }, "arbox.password"},
		{"missing whitelabel", func(c *Config) { c.Arbox.Whitelabel = "" }, "arbox.whitelabel"},
		{"missing box", func(c *Config) { c.Arbox.BoxesID = 0 }, "arbox.boxes_id"},
		{"bad timeout", func(c *Config) { c.Arbox.RequestTimeout = "soon" }, "request_timeout"},
		{"bad class time", func(c *Config) { c.Booking.ClassTime = "8am" }, "class_time"},
		{"hour out of range", func(c *Config) { c.Booking.ClassTime = "24:00" }, "class_time"},
		{"negative offset", func(c *Config) { c.Booking.DaysFromNow = -1 }, "days_from_now"},
		{
			"auto-book needs membership",
			func(c *Config) { c.Arbox.MembershipUserID = 0 },
			"membership_user_id",
		},
		{
			"telegram section needs token",
			func(c *Config) { c.Telegram = &TelegramConfig{ChatID: 5} },
			"telegram.token",
		},
		{
			"telegram section needs chat",
			func(c *Config) { c.Telegram = &TelegramConfig{Token: "t"} },
			"telegram.chat_id",
		},
		{
			"bad busy timeout",
			func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite", BusyTimeout: "later"} },
			"busy_timeout",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must fail")
	}
	if d, err := ParseDurationOrDefault("x", "", 15*time.Second); err != nil || d != 15*time.Second {
		t.Fatalf("default: %v %v", d, err)
	}
}
