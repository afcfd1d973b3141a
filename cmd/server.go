package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sax-estudios/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "sax-estudios",
		Short:         "Backend de solicitudes de estudios socioeconómicos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("CONFIG_FILE", "config.yaml"), "ruta del archivo YAML de configuración")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(removeCmd(&configPath))
	root.AddCommand(tokenCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Inicia el servidor HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg.Log, os.Stderr)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           app.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info("listening", "addr", cfg.Server.Addr, "version", version, "payments_disabled", cfg.Stripe.Disabled)
			return runServer(ctx, srv, app.notif, cfg.Server.ShutdownTimeout)
		},
	}
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type drainer interface {
	Wait(ctx context.Context) error
}

// runServer 运行 HTTP 服务，ctx 取消后优雅关闭并等待后台通知完成。
func runServer(ctx context.Context, srv httpServer, drain drainer, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if drain != nil {
			if err := drain.Wait(shutdownCtx); err != nil {
				return fmt.Errorf("drain notifications: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
