package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"sax-estudios/internal/model"
	"sax-estudios/internal/storage"
)

// 默认研究类型与价格（单位：分）。
const DefaultTier = "estandar"

// DefaultPrices 与前端展示的价格表一致。
var DefaultPrices = map[string]int64{
	"estandar": 50000,
	"urgente":  80000,
}

var (
	// ErrMissingFields 表示缺少 docId 或 tipo。
	ErrMissingFields = errors.New("docId y tipo son requeridos")
	// ErrAlreadyPaid 表示申请已经支付，不再发起新的会话。
	ErrAlreadyPaid = errors.New("submission already paid")
)

// SessionRequest 描述需要向支付服务商创建的会话。
type SessionRequest struct {
	SubmissionID string
	ClientID     string
	Tier         string
	Amount       int64
	Currency     string
	CAC          string
}

// Session 表示支付服务商返回的托管支付会话。
type Session struct {
	ID  string
	URL string
}

// Provider 抽象支付服务商。
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// Store 定义发起支付所需的存储接口。
type Store interface {
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	MarkCheckoutStarted(ctx context.Context, id string, stamp storage.CheckoutStamp) error
}

// Config 控制价格表与币种。
type Config struct {
	Prices   map[string]int64
	Currency string
}

// Request 表示 /api/checkout 请求。
type Request struct {
	DocID    string   `json:"docId"`
	Tipo     string   `json:"tipo"`
	ClientID string   `json:"clientId"`
	CAC      *float64 `json:"cac"`
}

// Result 返回支付跳转地址。
type Result struct {
	CheckoutURL string
	SessionID   string
	Amount      int64
	Tier        string
}

// Service 负责根据申请创建支付会话。
type Service struct {
	store    Store
	provider Provider
	prices   map[string]int64
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService 创建 Service。
func NewService(store Store, provider Provider, cfg Config, logger *slog.Logger) *Service {
	prices := cfg.Prices
	if len(prices) == 0 {
		prices = DefaultPrices
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "mxn"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		provider: provider,
		prices:   prices,
		currency: currency,
		logger:   logger.With("module", "checkout"),
		now:      time.Now,
	}
}

// Price 返回研究类型对应的价格，未知类型回退到默认档位。
func (s *Service) Price(tipo string) (string, int64) {
	tier := strings.ToLower(strings.TrimSpace(tipo))
	if amount, ok := s.prices[tier]; ok {
		return tier, amount
	}
	if amount, ok := s.prices[DefaultTier]; ok {
		return DefaultTier, amount
	}
	return DefaultTier, DefaultPrices[DefaultTier]
}

// Start 为申请创建支付会话，并在申请上记录所选类型与会话 ID。
func (s *Service) Start(ctx context.Context, req Request) (Result, error) {
	docID := strings.TrimSpace(req.DocID)
	if docID == "" || strings.TrimSpace(req.Tipo) == "" {
		return Result{}, ErrMissingFields
	}

	sub, err := s.store.GetSubmission(ctx, docID)
	if err != nil {
		return Result{}, fmt.Errorf("load submission: %w", err)
	}
	if sub.Paid() {
		return Result{}, ErrAlreadyPaid
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		clientID = sub.ClientID
	} else if clientID != sub.ClientID {
		s.logger.WarnContext(ctx, "checkout client mismatch", "doc_id", docID, "client_id", clientID, "owner", sub.ClientID)
	}

	var cac float64
	if req.CAC != nil {
		cac = *req.CAC
	}

	tier, amount := s.Price(req.Tipo)
	session, err := s.provider.CreateSession(ctx, SessionRequest{
		SubmissionID: sub.ID,
		ClientID:     clientID,
		Tier:         tier,
		Amount:       amount,
		Currency:     s.currency,
		CAC:          strconv.FormatFloat(cac, 'f', -1, 64),
	})
	if err != nil {
		return Result{}, fmt.Errorf("create checkout session: %w", err)
	}

	stamp := storage.CheckoutStamp{Type: tier, SessionID: session.ID, CAC: cac, At: s.now()}
	if err := s.store.MarkCheckoutStarted(ctx, sub.ID, stamp); err != nil {
		s.logger.WarnContext(ctx, "stamp checkout failed", "doc_id", sub.ID, "error", err)
	}

	s.logger.InfoContext(ctx, "checkout session created", "doc_id", sub.ID, "session_id", session.ID, "tier", tier, "amount", amount)
	return Result{CheckoutURL: session.URL, SessionID: session.ID, Amount: amount, Tier: tier}, nil
}
