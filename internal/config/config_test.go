package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "bizops"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLModeAndWebhookToken(t *testing.T) {
	c := validConfig("production")
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE and WHATSAPP_WEBHOOK_TOKEN")
	}

	c = validConfig("production")
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	c.DB.SSLMode = "require"
	c.WhatsApp.WebhookToken = "tok"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.WhatsApp.BaseURL != "http://localhost:3000" || c.WhatsApp.Session != "default" || c.WhatsApp.DefaultCountryCode != "91" {
		t.Fatalf("unexpected whatsapp defaults: %+v", c.WhatsApp)
	}
	if c.Jobs.SupportAutoCloseDays != 7 {
		t.Fatalf("expected auto close default 7, got %d", c.Jobs.SupportAutoCloseDays)
	}
	if c.Jobs.SweepLockTTL != 5*time.Minute {
		t.Fatalf("expected sweep lock ttl 5m, got %v", c.Jobs.SweepLockTTL)
	}
	if c.SMTPEnabled() {
		t.Fatalf("smtp should be disabled without host")
	}
}

func TestValidate_SMTPRequiresSender(t *testing.T) {
	c := validConfig("dev")
	c.SMTP.Host = "smtp.example.com"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing SMTP_SENDER")
	}
	c.SMTP.Sender = "noreply@example.com"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.SMTP.Port != 465 {
		t.Fatalf("expected default smtp port 465, got %d", c.SMTP.Port)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestLoadDotenv_DoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("BIZOPS_TEST_A=from_file\nBIZOPS_TEST_B=from_file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BIZOPS_TEST_A", "from_env")

	if err := LoadDotenv(p, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("BIZOPS_TEST_B") })

	if got := os.Getenv("BIZOPS_TEST_A"); got != "from_env" {
		t.Fatalf("expected env to win, got %q", got)
	}
	if got := os.Getenv("BIZOPS_TEST_B"); got != "from_file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
