package payment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sax-estudios/internal/model"
	"sax-estudios/internal/storage"
)

func newStoreWithSubmission(t *testing.T, clientID, docID string) *storage.Store {
	t.Helper()
	st, err := storage.NewStore(filepath.Join(t.TempDir(), "payment.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	if _, _, err := st.EnsureClient(ctx, model.Client{ID: clientID, RegisteredAt: time.Now()}); err != nil {
		t.Fatalf("EnsureClient error: %v", err)
	}
	if err := st.CreateSubmission(ctx, &model.Submission{ID: docID, ClientID: clientID, Candidate: "Ana", Position: "Dev", SubmittedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSubmission error: %v", err)
	}
	return st
}

func completedEvent(docID, clientID string, amount int64) Event {
	return Event{
		ID:            "evt_1",
		Type:          EventCheckoutCompleted,
		SessionID:     "cs_1",
		SubmissionID:  docID,
		ClientID:      clientID,
		Amount:        amount,
		Currency:      "mxn",
		PaymentStatus: PaymentStatusPaid,
		Created:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleMarksSubmissionPaid(t *testing.T) {
	t.Parallel()

	st := newStoreWithSubmission(t, "v1", "doc1")
	notif := &stubNotifier{}
	svc := NewService(st, notif, nil)
	ctx := context.Background()

	out, err := svc.Handle(ctx, completedEvent("doc1", "v1", 500))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if out != OutcomeApplied {
		t.Fatalf("expected applied, got %s", out)
	}

	sub, err := st.GetSubmission(ctx, "doc1")
	if err != nil {
		t.Fatalf("GetSubmission error: %v", err)
	}
	if sub.Status != model.StatusPaid {
		t.Fatalf("expected paid status, got %s", sub.Status)
	}
	c, err := st.GetClient(ctx, "v1")
	if err != nil {
		t.Fatalf("GetClient error: %v", err)
	}
	if c.TotalRevenue != 500 || c.PaidSubmissions != 1 || c.UnpaidSubmissions != 0 {
		t.Fatalf("unexpected aggregate: %+v", c)
	}
	if notif.calls != 1 || notif.last.Amount != 500 || notif.last.ClientID != "v1" || notif.last.TransactionID != "cs_1" {
		t.Fatalf("unexpected purchase notification: %d %+v", notif.calls, notif.last)
	}
}

func TestHandleRedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	st := newStoreWithSubmission(t, "v1", "doc1")
	notif := &stubNotifier{}
	svc := NewService(st, notif, nil)
	ctx := context.Background()

	ev := completedEvent("doc1", "v1", 500)
	if _, err := svc.Handle(ctx, ev); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	out, err := svc.Handle(ctx, ev)
	if err != nil {
		t.Fatalf("Handle redelivery error: %v", err)
	}
	if out != OutcomeDuplicate {
		t.Fatalf("expected duplicate outcome, got %s", out)
	}

	c, err := st.GetClient(ctx, "v1")
	if err != nil {
		t.Fatalf("GetClient error: %v", err)
	}
	if c.TotalRevenue != 500 || c.PaidSubmissions != 1 {
		t.Fatalf("expected single increment, got %+v", c)
	}
	if notif.calls != 1 {
		t.Fatalf("expected one notification, got %d", notif.calls)
	}
}

func TestHandleNotifierFailureDoesNotFail(t *testing.T) {
	t.Parallel()

	st := newStoreWithSubmission(t, "v1", "doc1")
	svc := NewService(st, &stubNotifier{err: errors.New("analytics down")}, nil)

	out, err := svc.Handle(context.Background(), completedEvent("doc1", "v1", 500))
	if err != nil {
		t.Fatalf("expected notifier error swallowed, got %v", err)
	}
	if out != OutcomeApplied {
		t.Fatalf("expected applied, got %s", out)
	}
}

func TestHandleMissingSubmissionID(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	svc := NewService(st, nil, nil)

	_, err := svc.Handle(context.Background(), completedEvent("", "v1", 500))
	if !errors.Is(err, ErrMissingSubmission) {
		t.Fatalf("expected ErrMissingSubmission, got %v", err)
	}
	if st.calls != 0 {
		t.Fatalf("expected no store calls")
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	st := &stubStore{}
	svc := NewService(st, nil, nil)

	out, err := svc.Handle(context.Background(), Event{ID: "evt_2", Type: "payment_intent.created"})
	if err != nil || out != OutcomeIgnored {
		t.Fatalf("expected ignored, got %s %v", out, err)
	}

	unpaid := completedEvent("doc1", "v1", 500)
	unpaid.PaymentStatus = "unpaid"
	out, err = svc.Handle(context.Background(), unpaid)
	if err != nil || out != OutcomeIgnored {
		t.Fatalf("expected ignored for unpaid session, got %s %v", out, err)
	}
	if st.calls != 0 {
		t.Fatalf("expected no store calls")
	}
}

func TestHandleUnknownSubmission(t *testing.T) {
	t.Parallel()

	svc := NewService(&stubStore{err: storage.ErrNotFound}, nil, nil)
	out, err := svc.Handle(context.Background(), completedEvent("ghost", "v1", 500))
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if out != OutcomeUnknownSubmission {
		t.Fatalf("expected unknown submission outcome, got %s", out)
	}
}

func TestHandleStoreFailure(t *testing.T) {
	t.Parallel()

	notif := &stubNotifier{}
	svc := NewService(&stubStore{err: errors.New("db locked")}, notif, nil)
	if _, err := svc.Handle(context.Background(), completedEvent("doc1", "v1", 500)); err == nil {
		t.Fatalf("expected store error to surface")
	}
	if notif.calls != 0 {
		t.Fatalf("expected no notification on failure")
	}
}

// --- stubs ---

type stubStore struct {
	calls int
	err   error
}

func (s *stubStore) MarkPaid(ctx context.Context, update storage.PaymentUpdate) (storage.PaymentResult, error) {
	s.calls++
	if s.err != nil {
		return storage.PaymentResult{}, s.err
	}
	return storage.PaymentResult{Transitioned: true, ClientUpdated: true, Submission: model.Submission{ID: update.SubmissionID}}, nil
}

type stubNotifier struct {
	calls int
	last  model.Purchase
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, p model.Purchase) error {
	s.calls++
	s.last = p
	return s.err
}
