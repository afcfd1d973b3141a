package notifier

import (
	"context"
	"strings"
	"testing"

	"sax-estudios/internal/model"
)

func TestEmailNotifierSendsPurchase(t *testing.T) {
	t.Parallel()

	sender := &stubSender{}
	n := NewEmailNotifier(EmailConfig{From: "from@example.com", To: []string{"ops@example.com"}}, sender)

	p := model.Purchase{SubmissionID: "doc1", ClientID: "v1", Candidate: "Ana", Position: "Dev", Amount: 50000, Currency: "mxn"}
	if err := n.Notify(context.Background(), p); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected 1 send call, got %d", sender.calls)
	}
	if !strings.Contains(sender.lastBody, "Ana") || !strings.Contains(sender.lastBody, "500.00 MXN") {
		t.Fatalf("expected body to contain candidate and amount, got %s", sender.lastBody)
	}
	if !strings.Contains(sender.lastSubject, "Nuevo estudio pagado") {
		t.Fatalf("expected default subject, got %s", sender.lastSubject)
	}
}

func TestEmailNotifierSkipsWithoutRecipients(t *testing.T) {
	t.Parallel()

	sender := &stubSender{}
	n := NewEmailNotifier(EmailConfig{From: "from@example.com"}, sender)

	if err := n.Notify(context.Background(), model.Purchase{}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no send calls, got %d", sender.calls)
	}
}

func TestBuildEmailData(t *testing.T) {
	t.Parallel()

	data := buildEmailData(EmailMessage{From: "a@x.mx", To: []string{"b@x.mx", "c@x.mx"}, Subject: "Hola", Body: "cuerpo"})
	if !strings.Contains(data, "To: b@x.mx,c@x.mx\r\n") || !strings.HasSuffix(data, "\r\n\r\ncuerpo") {
		t.Fatalf("unexpected email data %q", data)
	}
}

// --- stubs ---

type stubSender struct {
	calls       int
	lastBody    string
	lastSubject string
	err         error
}

func (s *stubSender) Send(ctx context.Context, msg EmailMessage) error {
	s.calls++
	s.lastBody = msg.Body
	s.lastSubject = msg.Subject
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}
