package notifier

import (
	"context"
	"log/slog"

	"sax-estudios/internal/model"
)

// LogNotifier 仅记录支付信息，适合开发阶段使用。
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier 创建日志通知器，未提供 logger 时使用默认 logger。
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify 记录一条 purchase 日志。
func (n LogNotifier) Notify(ctx context.Context, p model.Purchase) error {
	n.logger.InfoContext(ctx, "purchase",
		"transaction_id", p.TransactionID,
		"doc_id", p.SubmissionID,
		"client_id", p.ClientID,
		"amount", p.Amount,
		"currency", p.Currency,
	)
	return nil
}
