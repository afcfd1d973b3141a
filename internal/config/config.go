package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sax-estudios/internal/notifier"
)

// Config 应用配置，启动时加载一次，之后只读。
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Database  DatabaseConfig           `yaml:"database"`
	Stripe    StripeConfig             `yaml:"stripe"`
	Storage   StorageConfig            `yaml:"storage"`
	Intake    IntakeConfig             `yaml:"intake"`
	Analytics notifier.AnalyticsConfig `yaml:"analytics"`
	Email     notifier.EmailConfig     `yaml:"email"`
	Resend    ResendConfig             `yaml:"resend"`
	Admin     AdminConfig              `yaml:"admin"`
	Log       LogConfig                `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StripeConfig struct {
	SecretKey     string           `yaml:"secret_key"`
	WebhookSecret string           `yaml:"webhook_secret"`
	SuccessURL    string           `yaml:"success_url"`
	CancelURL     string           `yaml:"cancel_url"`
	Currency      string           `yaml:"currency"`
	Prices        map[string]int64 `yaml:"prices"`
	// Disabled 仅用于本地开发，跳过密钥校验。
	Disabled bool `yaml:"disabled"`
}

type StorageConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	// CredentialsJSON 优先于 CredentialsFile，便于容器部署直接注入服务账号密钥。
	CredentialsJSON string        `yaml:"credentials_json"`
	URLTTL          time.Duration `yaml:"url_ttl"`
	Dir             string        `yaml:"dir"`
	PublicURL       string        `yaml:"public_url"`
}

type IntakeConfig struct {
	DedupWindow time.Duration `yaml:"dedup_window"`
	MaxUploadMB int64         `yaml:"max_upload_mb"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MaxSignedURLTTL 是 V4 签名地址允许的最长有效期。
const MaxSignedURLTTL = 7 * 24 * time.Hour

// Default 返回默认配置。
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"https://saxmexico.com", "https://www.saxmexico.com"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "data/estudios.db"},
		Stripe:   StripeConfig{Currency: "mxn"},
		Storage: StorageConfig{
			URLTTL:    MaxSignedURLTTL,
			Dir:       "data/uploads",
			PublicURL: "/uploads",
		},
		Intake: IntakeConfig{DedupWindow: time.Hour, MaxUploadMB: 10},
		Email:  notifier.EmailConfig{Port: 587},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load 按默认值、YAML 文件、环境变量的顺序加载配置，文件不存在时忽略。
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查必需的配置项。
func (c Config) Validate() error {
	var errs []error
	if !c.Stripe.Disabled {
		if c.Stripe.SecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
		}
		if c.Stripe.WebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
		}
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Storage.URLTTL > MaxSignedURLTTL {
		errs = append(errs, fmt.Errorf("cv url ttl %s exceeds %s", c.Storage.URLTTL, MaxSignedURLTTL))
	}
	if c.Intake.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes 返回上传大小上限（字节）。
func (c Config) MaxUploadBytes() int64 {
	return c.Intake.MaxUploadMB << 20
}

func applyEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.AllowedOrigins = envCSV("CORS_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Database.Path = envOrDefault("DATABASE_PATH", cfg.Database.Path)

	cfg.Stripe.SecretKey = envOrDefault("STRIPE_SECRET_KEY", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = envOrDefault("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)
	cfg.Stripe.SuccessURL = envOrDefault("CHECKOUT_SUCCESS_URL", cfg.Stripe.SuccessURL)
	cfg.Stripe.CancelURL = envOrDefault("CHECKOUT_CANCEL_URL", cfg.Stripe.CancelURL)
	cfg.Stripe.Currency = envOrDefault("CHECKOUT_CURRENCY", cfg.Stripe.Currency)

	cfg.Storage.Bucket = envOrDefault("STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.CredentialsFile = envOrDefault("GOOGLE_APPLICATION_CREDENTIALS", cfg.Storage.CredentialsFile)
	cfg.Storage.CredentialsJSON = envOrDefault("GOOGLE_CREDENTIALS_JSON", cfg.Storage.CredentialsJSON)
	cfg.Storage.Dir = envOrDefault("STORAGE_DIR", cfg.Storage.Dir)
	cfg.Storage.PublicURL = envOrDefault("STORAGE_PUBLIC_URL", cfg.Storage.PublicURL)

	cfg.Analytics.MeasurementID = envOrDefault("GA_MEASUREMENT_ID", cfg.Analytics.MeasurementID)
	cfg.Analytics.APISecret = envOrDefault("GA_API_SECRET", cfg.Analytics.APISecret)

	cfg.Email.Host = envOrDefault("SMTP_HOST", cfg.Email.Host)
	cfg.Email.Username = envOrDefault("SMTP_USERNAME", cfg.Email.Username)
	cfg.Email.Password = envOrDefault("SMTP_PASSWORD", cfg.Email.Password)
	cfg.Email.From = envOrDefault("NOTIFY_FROM", cfg.Email.From)
	cfg.Email.To = envCSV("NOTIFY_TO", cfg.Email.To)
	cfg.Resend.APIKey = envOrDefault("RESEND_API_KEY", cfg.Resend.APIKey)
	cfg.Admin.JWTSecret = envOrDefault("ADMIN_JWT_SECRET", cfg.Admin.JWTSecret)

	cfg.Log.Level = envOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("LOG_FORMAT", cfg.Log.Format)

	var err error
	if cfg.Email.Port, err = envInt("SMTP_PORT", cfg.Email.Port); err != nil {
		return err
	}
	if cfg.Stripe.Disabled, err = envBool("PAYMENTS_DISABLED", cfg.Stripe.Disabled); err != nil {
		return err
	}
	if cfg.Storage.URLTTL, err = envDuration("CV_URL_TTL_HOURS", time.Hour, cfg.Storage.URLTTL); err != nil {
		return err
	}
	if cfg.Intake.DedupWindow, err = envDuration("DEDUP_WINDOW_MINUTES", time.Minute, cfg.Intake.DedupWindow); err != nil {
		return err
	}
	maxMB, err := envInt("MAX_UPLOAD_MB", int(cfg.Intake.MaxUploadMB))
	if err != nil {
		return err
	}
	cfg.Intake.MaxUploadMB = int64(maxMB)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// envDuration 将整数环境变量按 unit 换算为时长，未设置时原样返回 fallback。
func envDuration(key string, unit, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(n) * unit, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
