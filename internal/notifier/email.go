package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"sax-estudios/internal/model"
)

// EmailConfig 邮件配置。
type EmailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"password"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
	Subject  string   `yaml:"subject" json:"subject"`
}

// SMTPEnabled 判断 SMTP 配置是否完整。
func (c EmailConfig) SMTPEnabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != "" && len(c.To) > 0
}

// EmailMessage 表示一封邮件。
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// EmailSender 抽象发送接口，便于测试替换。
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPClient 封装 SMTP 发送。
type SMTPClient struct {
	addr string
	auth smtp.Auth
}

func NewSMTPClient(cfg EmailConfig) *SMTPClient {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPClient{addr: addr, auth: auth}
}

func (c *SMTPClient) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := buildEmailData(msg)
	return smtp.SendMail(c.addr, c.auth, msg.From, msg.To, []byte(data))
}

// EmailNotifier 在申请支付成功后通知运营人员。
type EmailNotifier struct {
	cfg    EmailConfig
	sender EmailSender
}

// NewEmailNotifier 创建 EmailNotifier，未提供 sender 时使用 SMTP。
func NewEmailNotifier(cfg EmailConfig, sender EmailSender) *EmailNotifier {
	if sender == nil {
		sender = NewSMTPClient(cfg)
	}
	if cfg.Subject == "" {
		cfg.Subject = "Nuevo estudio pagado"
	}
	return &EmailNotifier{cfg: cfg, sender: sender}
}

// Notify 发送支付通知邮件，未配置收件人时跳过。
func (n EmailNotifier) Notify(ctx context.Context, p model.Purchase) error {
	if len(n.cfg.To) == 0 {
		return nil
	}
	msg := EmailMessage{
		From:    n.cfg.From,
		To:      n.cfg.To,
		Subject: fmt.Sprintf("%s: %s", n.cfg.Subject, p.Candidate),
		Body:    buildBody(p),
	}
	return n.sender.Send(ctx, msg)
}

func buildBody(p model.Purchase) string {
	var b strings.Builder
	b.WriteString("Se registró un pago:\n")
	b.WriteString(fmt.Sprintf("- Candidato: %s\n", p.Candidate))
	b.WriteString(fmt.Sprintf("- Puesto: %s\n", p.Position))
	b.WriteString(fmt.Sprintf("- Tipo: %s\n", p.StudyType))
	b.WriteString(fmt.Sprintf("- Monto: %s %s\n", formatAmount(p.Amount), strings.ToUpper(p.Currency)))
	b.WriteString(fmt.Sprintf("- Solicitud: %s\n", p.SubmissionID))
	b.WriteString(fmt.Sprintf("- Cliente: %s\n", p.ClientID))
	b.WriteString(fmt.Sprintf("- Transacción: %s\n", p.TransactionID))
	return b.String()
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func buildEmailData(msg EmailMessage) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ",")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return b.String()
}
