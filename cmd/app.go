package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sax-estudios/internal/admin"
	"sax-estudios/internal/api"
	"sax-estudios/internal/blob"
	"sax-estudios/internal/checkout"
	"sax-estudios/internal/config"
	"sax-estudios/internal/intake"
	"sax-estudios/internal/notifier"
	"sax-estudios/internal/payment"
	"sax-estudios/internal/storage"
)

// app 持有进程内的全部组件。
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *storage.Store
	blobs   blob.Store
	notif   *notifier.Async
	admin   *admin.Service
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	blobs, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	a.blobs = blobs
	if c, ok := blobs.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.notif = notifier.NewAsync(buildNotifier(cfg, logger), 15*time.Second, logger)
	a.admin = admin.NewService(store, blobs, logger)
	return a, nil
}

// Handler 组装 HTTP 路由。
func (a *app) Handler() http.Handler {
	cfg := a.cfg
	provider := checkout.NewStripeProvider(checkout.StripeConfig{
		SecretKey:  cfg.Stripe.SecretKey,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	}, nil)

	svc := api.Services{
		Intake:   intake.NewService(a.store, a.blobs, intake.Config{DedupWindow: cfg.Intake.DedupWindow}, a.logger),
		Checkout: checkout.NewService(a.store, provider, checkout.Config{Prices: cfg.Stripe.Prices, Currency: cfg.Stripe.Currency}, a.logger),
		Verifier: payment.NewStripeVerifier(cfg.Stripe.WebhookSecret),
		Payments: payment.NewService(a.store, a.notif, a.logger),
		Health:   a.store,
	}
	if cfg.Admin.JWTSecret != "" {
		svc.Admin = a.admin
	}
	return api.NewHandler(svc, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AdminSecret:    cfg.Admin.JWTSecret,
		Logger:         a.logger,
	})
}

// Close 按创建的逆序释放资源。
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource failed", "error", err)
		}
	}
	a.closers = nil
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	if cfg.Bucket != "" {
		return blob.NewGCSStore(ctx, blob.GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsJSON: cfg.CredentialsJSON,
			CredentialsFile: cfg.CredentialsFile,
			URLTTL:          cfg.URLTTL,
		})
	}
	return blob.NewLocalStore(cfg.Dir, cfg.PublicURL)
}

// buildNotifier 根据配置组合支付通知下游，日志通知始终启用。
func buildNotifier(cfg config.Config, logger *slog.Logger) notifier.Notifier {
	fan := notifier.Fanout{notifier.NewLogNotifier(logger)}

	if cfg.Analytics.Enabled() {
		fan = append(fan, notifier.NewAnalyticsNotifier(cfg.Analytics, &http.Client{Timeout: 10 * time.Second}))
	} else {
		logger.Info("analytics notifier disabled: missing measurement id/api secret")
	}

	switch {
	case cfg.Resend.APIKey != "" && cfg.Email.From != "" && len(cfg.Email.To) > 0:
		fan = append(fan, notifier.NewEmailNotifier(cfg.Email, notifier.NewResendSender(cfg.Resend.APIKey)))
	case cfg.Email.SMTPEnabled():
		fan = append(fan, notifier.NewEmailNotifier(cfg.Email, nil))
	default:
		logger.Info("email notifier disabled: missing resend key or smtp host/port/from/to")
	}
	return fan
}
