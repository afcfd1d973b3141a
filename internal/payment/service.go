package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sax-estudios/internal/model"
	"sax-estudios/internal/storage"

	"gorm.io/datatypes"
)

// 事件类型与支付状态。
const (
	EventCheckoutCompleted = "checkout.session.completed"
	PaymentStatusPaid      = "paid"
)

var (
	// ErrInvalidSignature 表示回调签名校验失败。
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMissingSubmission 表示事件元数据中缺少 docId，无法对账。
	ErrMissingSubmission = errors.New("missing docId in event metadata")
)

// Event 是从支付回调中提取出的对账信息。
type Event struct {
	ID              string
	Type            string
	SessionID       string
	SubmissionID    string
	ClientID        string
	Amount          int64
	Currency        string
	PaymentStatus   string
	PaymentIntentID string
	CustomerEmail   string
	Created         time.Time
}

// Verifier 校验回调签名并解析事件。
type Verifier interface {
	Verify(payload []byte, signature string) (Event, error)
}

// Store 定义对账所需的存储接口。
type Store interface {
	MarkPaid(ctx context.Context, update storage.PaymentUpdate) (storage.PaymentResult, error)
}

// Notifier 接收成功支付的通知，失败只记录日志。
type Notifier interface {
	Notify(ctx context.Context, p model.Purchase) error
}

// Outcome 表示一次回调的处理结果。
type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeIgnored           Outcome = "ignored"
	OutcomeUnknownSubmission Outcome = "unknown_submission"
)

// Service 负责处理支付完成回调。
type Service struct {
	store  Store
	notif  Notifier
	logger *slog.Logger
	now    func() time.Time
}

// NewService 创建 Service，notif 可为 nil。
func NewService(store Store, notif Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notif: notif, logger: logger.With("module", "payment"), now: time.Now}
}

// Handle 处理一条已验签的事件。
// 申请状态与访客计数在存储层同一事务内更新，重复投递不会重复计数。
func (s *Service) Handle(ctx context.Context, ev Event) (Outcome, error) {
	if ev.Type != EventCheckoutCompleted {
		s.logger.DebugContext(ctx, "event ignored", "event_id", ev.ID, "type", ev.Type)
		return OutcomeIgnored, nil
	}
	if ev.SubmissionID == "" {
		return "", ErrMissingSubmission
	}
	if ev.PaymentStatus != "" && ev.PaymentStatus != PaymentStatusPaid {
		s.logger.InfoContext(ctx, "checkout completed without payment", "event_id", ev.ID, "doc_id", ev.SubmissionID, "payment_status", ev.PaymentStatus)
		return OutcomeIgnored, nil
	}

	paidAt := ev.Created
	if paidAt.IsZero() {
		paidAt = s.now()
	}
	res, err := s.store.MarkPaid(ctx, storage.PaymentUpdate{
		SubmissionID: ev.SubmissionID,
		SessionID:    ev.SessionID,
		Amount:       ev.Amount,
		Currency:     ev.Currency,
		PaidAt:       paidAt,
		Details:      details(ev),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "payment for unknown submission", "event_id", ev.ID, "doc_id", ev.SubmissionID)
			return OutcomeUnknownSubmission, nil
		}
		return "", fmt.Errorf("mark paid: %w", err)
	}
	if !res.Transitioned {
		s.logger.InfoContext(ctx, "duplicate payment event", "event_id", ev.ID, "doc_id", ev.SubmissionID)
		return OutcomeDuplicate, nil
	}

	sub := res.Submission
	if ev.ClientID != "" && ev.ClientID != sub.ClientID {
		s.logger.WarnContext(ctx, "event client mismatch", "doc_id", sub.ID, "client_id", ev.ClientID, "owner", sub.ClientID)
	}
	if !res.ClientUpdated {
		s.logger.WarnContext(ctx, "client aggregate missing", "doc_id", sub.ID, "client_id", sub.ClientID)
	}
	s.logger.InfoContext(ctx, "payment applied", "event_id", ev.ID, "doc_id", sub.ID, "client_id", sub.ClientID, "amount", ev.Amount)

	s.notify(ctx, model.Purchase{
		TransactionID: transactionID(ev),
		SubmissionID:  sub.ID,
		ClientID:      sub.ClientID,
		Amount:        ev.Amount,
		Currency:      ev.Currency,
		StudyType:     sub.CheckoutType,
		Candidate:     sub.Candidate,
		Position:      sub.Position,
		PaidAt:        paidAt,
	})
	return OutcomeApplied, nil
}

func (s *Service) notify(ctx context.Context, p model.Purchase) {
	if s.notif == nil {
		return
	}
	if err := s.notif.Notify(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "purchase notification failed", "doc_id", p.SubmissionID, "error", err)
	}
}

func transactionID(ev Event) string {
	if ev.PaymentIntentID != "" {
		return ev.PaymentIntentID
	}
	return ev.SessionID
}

func details(ev Event) datatypes.JSONMap {
	m := datatypes.JSONMap{"event_id": ev.ID}
	if ev.PaymentIntentID != "" {
		m["payment_intent"] = ev.PaymentIntentID
	}
	if ev.CustomerEmail != "" {
		m["customer_email"] = ev.CustomerEmail
	}
	return m
}
