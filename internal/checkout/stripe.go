package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeConfig 描述 Stripe Checkout 跳转地址。
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

// StripeProvider 使用 Stripe Checkout 创建托管支付会话。
type StripeProvider struct {
	api *client.API
	cfg StripeConfig
}

// NewStripeProvider 创建 StripeProvider，每个实例持有独立的 API 客户端。
func NewStripeProvider(cfg StripeConfig, backends *stripe.Backends) *StripeProvider {
	if cfg.SuccessURL == "" {
		cfg.SuccessURL = "https://clientes.saxmexico.com/?pagado=true"
	}
	if cfg.CancelURL == "" {
		cfg.CancelURL = "https://clientes.saxmexico.com/?cancelado=true"
	}
	return &StripeProvider{api: client.New(cfg.SecretKey, backends), cfg: cfg}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.cfg.SuccessURL),
		CancelURL:          stripe.String(p.cfg.CancelURL),
		ClientReferenceID:  stripe.String(req.SubmissionID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Estudio: " + req.Tier),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("docId", req.SubmissionID)
	params.AddMetadata("clientId", req.ClientID)
	params.AddMetadata("cac", req.CAC)
	params.AddMetadata("tipo", req.Tier)

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}
