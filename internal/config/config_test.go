package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("PAYMENTS_DISABLED", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.Server.Addr)
	}
	if cfg.Intake.DedupWindow != time.Hour || cfg.MaxUploadBytes() != 10<<20 {
		t.Fatalf("unexpected intake defaults: %+v", cfg.Intake)
	}
	if cfg.Stripe.Currency != "mxn" {
		t.Fatalf("expected mxn, got %s", cfg.Stripe.Currency)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9000"
  shutdown_timeout: 3s
stripe:
  secret_key: sk_file
  webhook_secret: whsec_file
  prices:
    estandar: 60000
storage:
  bucket: cv-bucket
intake:
  dedup_window: 30m
email:
  host: smtp.example.com
  to: ["ops@example.com"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "7000")
	t.Setenv("STRIPE_SECRET_KEY", "sk_env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEDUP_WINDOW_MINUTES", "15")
	t.Setenv("NOTIFY_TO", "a@example.com,b@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Fatalf("expected env port to win, got %s", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected shutdown timeout from file, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Stripe.SecretKey != "sk_env" || cfg.Stripe.WebhookSecret != "whsec_file" {
		t.Fatalf("unexpected stripe config: %+v", cfg.Stripe)
	}
	if cfg.Stripe.Prices["estandar"] != 60000 {
		t.Fatalf("expected price from file, got %v", cfg.Stripe.Prices)
	}
	if cfg.Storage.Bucket != "cv-bucket" {
		t.Fatalf("expected bucket from file, got %s", cfg.Storage.Bucket)
	}
	if cfg.Intake.DedupWindow != 15*time.Minute {
		t.Fatalf("expected dedup window from env, got %v", cfg.Intake.DedupWindow)
	}
	if got := strings.Join(cfg.Server.AllowedOrigins, ";"); got != "https://a.example;https://b.example" {
		t.Fatalf("unexpected origins: %s", got)
	}
	if len(cfg.Email.To) != 2 || cfg.Email.Port != 587 {
		t.Fatalf("unexpected email config: %+v", cfg.Email)
	}
}

func TestLoadRequiresStripeSecrets(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("PAYMENTS_DISABLED", "")

	_, err := Load("")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "STRIPE_WEBHOOK_SECRET") {
		t.Fatalf("expected webhook secret error, got %v", err)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("PAYMENTS_DISABLED", "true")
	t.Setenv("MAX_UPLOAD_MB", "ten")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid MAX_UPLOAD_MB")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Setenv("PAYMENTS_DISABLED", "true")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadKeepsSubUnitDurationsFromFile(t *testing.T) {
	t.Setenv("PAYMENTS_DISABLED", "true")
	t.Setenv("CV_URL_TTL_HOURS", "")
	t.Setenv("DEDUP_WINDOW_MINUTES", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "intake:\n  dedup_window: 30s\nstorage:\n  url_ttl: 30m\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Intake.DedupWindow != 30*time.Second {
		t.Fatalf("expected dedup window 30s, got %v", cfg.Intake.DedupWindow)
	}
	if cfg.Storage.URLTTL != 30*time.Minute {
		t.Fatalf("expected url ttl 30m, got %v", cfg.Storage.URLTTL)
	}
}

func TestLoadRejectsSignedURLTTLOverSevenDays(t *testing.T) {
	t.Setenv("PAYMENTS_DISABLED", "true")
	t.Setenv("CV_URL_TTL_HOURS", "169")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "cv url ttl") {
		t.Fatalf("expected ttl validation error, got %v", err)
	}

	t.Setenv("CV_URL_TTL_HOURS", "168")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Storage.URLTTL != MaxSignedURLTTL {
		t.Fatalf("expected 168h, got %v", cfg.Storage.URLTTL)
	}
}

func TestLoadCredentialsJSONFromEnv(t *testing.T) {
	t.Setenv("PAYMENTS_DISABLED", "true")
	t.Setenv("GOOGLE_CREDENTIALS_JSON", `{"type":"service_account"}`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Storage.CredentialsJSON != `{"type":"service_account"}` {
		t.Fatalf("unexpected credentials json %q", cfg.Storage.CredentialsJSON)
	}
}
