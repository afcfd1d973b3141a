package notifier

import (
	"context"
	"fmt"

	"github.com/resendlabs/resend-go"
)

// ResendSender 通过 Resend API 发送邮件，实现 EmailSender。
type ResendSender struct {
	client *resend.Client
}

// NewResendSender 创建 ResendSender。
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

func (s *ResendSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if _, err := s.client.Emails.Send(req); err != nil {
		return fmt.Errorf("send email via resend: %w", err)
	}
	return nil
}
