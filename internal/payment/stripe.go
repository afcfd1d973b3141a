package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeVerifier 使用 webhook secret 校验 Stripe 回调。
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier 创建 StripeVerifier。
func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

func (v *StripeVerifier) Verify(payload []byte, signature string) (Event, error) {
	if v.secret == "" {
		return Event{}, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0),
	}
	if ev.Type != stripe.EventTypeCheckoutSessionCompleted || ev.Data == nil {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = sess.ID
	out.SubmissionID = strings.TrimSpace(sess.Metadata["docId"])
	if out.SubmissionID == "" {
		out.SubmissionID = strings.TrimSpace(sess.ClientReferenceID)
	}
	out.ClientID = strings.TrimSpace(sess.Metadata["clientId"])
	out.Amount = sess.AmountTotal
	out.Currency = string(sess.Currency)
	out.PaymentStatus = string(sess.PaymentStatus)
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	return out, nil
}
