package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"sax-estudios/internal/admin"
	"sax-estudios/internal/checkout"
	"sax-estudios/internal/intake"
	"sax-estudios/internal/payment"
)

// IntakeService 接收研究申请。
type IntakeService interface {
	Submit(ctx context.Context, req intake.Request) (intake.Result, error)
}

// CheckoutService 发起支付会话。
type CheckoutService interface {
	Start(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

// PaymentService 处理已验签的支付事件。
type PaymentService interface {
	Handle(ctx context.Context, ev payment.Event) (payment.Outcome, error)
}

// AdminService 提供访客与申请的管理操作。
type AdminService interface {
	Get(ctx context.Context, clientID string) (admin.Overview, error)
	RemoveSubmission(ctx context.Context, clientID, submissionID string) (admin.Removal, error)
	RemoveClient(ctx context.Context, clientID string) (admin.Removal, error)
}

// Pinger 用于健康检查。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services 汇总各路由依赖的服务，Admin 与 Health 可为 nil。
type Services struct {
	Intake   IntakeService
	Checkout CheckoutService
	Verifier payment.Verifier
	Payments PaymentService
	Admin    AdminService
	Health   Pinger
}

// Options 控制 HTTP 层行为。
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	AdminSecret    string
	Logger         *slog.Logger
}

const (
	defaultMaxUpload = 10 << 20
	maxWebhookBody   = 64 << 10
)

type handler struct {
	svc       Services
	maxUpload int64
	secret    string
	logger    *slog.Logger
}

// NewHandler 构造 HTTP 路由。
func NewHandler(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{
		svc:       svc,
		maxUpload: opts.MaxUploadBytes,
		secret:    opts.AdminSecret,
		logger:    logger.With("module", "http"),
	}
	if h.maxUpload <= 0 {
		h.maxUpload = defaultMaxUpload
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Post("/webhook", h.webhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/estudios", h.submit)
		r.Post("/checkout", h.checkout)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.adminMiddleware)
			r.Get("/clientes/{clientId}", h.getClient)
			r.Delete("/clientes/{clientId}", h.removeClient)
			r.Delete("/clientes/{clientId}/estudios/{docId}", h.removeSubmission)
		})
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.svc.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.svc.Health.Ping(ctx); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
