package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/refund"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/resilience"
)

// CodePaymentFailed is returned when the processor declines an authorization.
const CodePaymentFailed = "payment-failed"

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	List(ctx context.Context, paymentIntentID string) ([]*stripe.Refund, error)
}

type refundClient struct {
	c *refund.Client
}

func (r refundClient) List(ctx context.Context, paymentIntentID string) ([]*stripe.Refund, error) {
	params := &stripe.RefundListParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	it := r.c.List(params)
	var out []*stripe.Refund
	for it.Next() {
		out = append(out, it.Refund())
	}
	return out, it.Err()
}

// StripeConfig configures StripeProcessor.
type StripeConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Breaker  *resilience.Breaker
	Logger   zerolog.Logger
	Now      func() time.Time
	NewID    func() string
}

// StripeProcessor authorizes card payments with manual-capture payment intents.
type StripeProcessor struct {
	intents stripeIntentAPI
	refunds stripeRefundAPI
	breaker *resilience.Breaker
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

var _ plugin.PaymentMethod = (*StripeProcessor)(nil)

// NewStripeProcessor builds a processor backed by the Stripe API.
func NewStripeProcessor(cfg StripeConfig) (*StripeProcessor, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("stripe: api key is required")
	}
	sc := client.New(key, cfg.Backends)
	return newStripeProcessor(cfg, sc.PaymentIntents, refundClient{c: sc.Refunds}), nil
}

func newStripeProcessor(cfg StripeConfig, intents stripeIntentAPI, refunds stripeRefundAPI) *StripeProcessor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &StripeProcessor{
		intents: intents,
		refunds: refunds,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
		now:     func() time.Time { return now().UTC() },
		newID:   newID,
	}
}

// Name implements plugin.PaymentMethod.
func (p *StripeProcessor) Name() string { return MethodStripeCard }

// Authorize opens a manual-capture payment intent for the amount in minor units.
func (p *StripeProcessor) Authorize(ctx context.Context, req plugin.PaymentRequest) (commerce.Payment, error) {
	if !req.Amount.Amount.IsPositive() {
		return commerce.Payment{}, common.InvalidParam("payment amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount.MinorUnits()),
		Currency:           stripe.String(strings.ToLower(req.Amount.CurrencyCode)),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Shipping:           shippingDetails(req.ShippingAddress),
		Metadata: map[string]string{
			"shopId":    req.ShopID,
			"cartId":    req.CartID,
			"accountId": req.AccountID,
		},
	}
	params.Context = ctx
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	var intent *stripe.PaymentIntent
	err := p.breaker.Execute(ctx, func(context.Context) error {
		var err error
		intent, err = p.intents.New(params)
		return err
	}, isStripeOutage)
	if err != nil {
		return commerce.Payment{}, mapStripeError("authorize", err)
	}
	p.logger.Info().Str("payment_intent", intent.ID).Str("cart_id", req.CartID).Msg("stripe payment authorized")

	return commerce.Payment{
		ID:                p.newID(),
		Name:              MethodStripeCard,
		DisplayName:       "Credit card",
		Method:            "credit",
		Mode:              "authorize",
		Processor:         "Stripe",
		PaymentPluginName: "payments-stripe",
		ShopID:            req.ShopID,
		Amount:            req.Amount,
		Status:            commerce.PaymentStatusCreated,
		RiskLevel:         "normal",
		TransactionID:     intent.ID,
		Address:           req.BillingAddress,
		Data: commerce.PaymentData{
			Kind: commerce.PaymentDataStripeCard,
			StripeCard: &commerce.StripeCardPaymentData{
				PaymentIntentID: intent.ID,
				ClientSecret:    intent.ClientSecret,
			},
		},
		CreatedAt: p.now(),
	}, nil
}

// ListRefunds returns the refunds Stripe recorded for the payment's intent.
func (p *StripeProcessor) ListRefunds(ctx context.Context, payment commerce.Payment) ([]commerce.Refund, error) {
	if payment.Data.StripeCard == nil || payment.Data.StripeCard.PaymentIntentID == "" {
		return nil, fmt.Errorf("stripe: payment %s has no payment intent", payment.ID)
	}
	var refunds []*stripe.Refund
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		refunds, err = p.refunds.List(ctx, payment.Data.StripeCard.PaymentIntentID)
		return err
	}, isStripeOutage)
	if err != nil {
		return nil, mapStripeError("list refunds", err)
	}
	out := make([]commerce.Refund, 0, len(refunds))
	for _, r := range refunds {
		code := string(r.Currency)
		if code == "" {
			code = payment.Amount.CurrencyCode
		}
		out = append(out, commerce.Refund{
			ID:        r.ID,
			PaymentID: payment.ID,
			Type:      "refund",
			Amount:    money.FromMinor(r.Amount, code),
			Status:    string(r.Status),
			Reason:    string(r.Reason),
			CreatedAt: time.Unix(r.Created, 0).UTC(),
		})
	}
	return out, nil
}

func shippingDetails(addr *commerce.Address) *stripe.ShippingDetailsParams {
	if addr == nil {
		return nil
	}
	details := &stripe.ShippingDetailsParams{
		Name: stripe.String(addr.FullName),
		Address: &stripe.AddressParams{
			City:       stripe.String(addr.City),
			Country:    stripe.String(addr.Country),
			Line1:      stripe.String(addr.Address1),
			PostalCode: stripe.String(addr.Postal),
		},
	}
	if addr.Address2 != "" {
		details.Address.Line2 = stripe.String(addr.Address2)
	}
	if addr.Region != "" {
		details.Address.State = stripe.String(addr.Region)
	}
	if addr.Phone != "" {
		details.Phone = stripe.String(addr.Phone)
	}
	return details
}

// isStripeOutage reports whether err should count against the breaker.
// Declines and invalid requests are answered by a healthy API.
func isStripeOutage(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode >= http.StatusInternalServerError || se.HTTPStatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

func mapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
		appErr := common.NewAppError(CodePaymentFailed, se.Msg, http.StatusPaymentRequired, err)
		appErr.Details = map[string]string{"declineCode": string(se.DeclineCode)}
		return appErr
	}
	return fmt.Errorf("stripe: %s: %w", op, err)
}
