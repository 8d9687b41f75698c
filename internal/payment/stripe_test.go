package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/plugin"
)

type stubIntents struct {
	params *stripe.PaymentIntentParams
	err    error
}

func (s *stubIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

type stubRefunds struct {
	refunds []*stripe.Refund
	gotID   string
}

func (s *stubRefunds) List(_ context.Context, paymentIntentID string) ([]*stripe.Refund, error) {
	s.gotID = paymentIntentID
	return s.refunds, nil
}

func fixedClock() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

func TestStripeAuthorizeCreatesManualCaptureIntent(t *testing.T) {
	intents := &stubIntents{}
	p := newStripeProcessor(StripeConfig{Now: fixedClock, NewID: func() string { return "pay-1" }}, intents, &stubRefunds{})

	billing := &commerce.Address{FullName: "Ada", Address1: "1 Main", City: "Berlin", Postal: "10115", Country: "DE"}
	payment, err := p.Authorize(context.Background(), plugin.PaymentRequest{
		Amount:          money.MustParse("12.34", "EUR"),
		BillingAddress:  billing,
		ShippingAddress: billing,
		Email:           "ada@example.com",
		ShopID:          "shop-1",
		CartID:          "cart-1",
		IdempotencyKey:  "idem-1",
	})
	require.NoError(t, err)

	require.EqualValues(t, 1234, *intents.params.Amount)
	require.Equal(t, "eur", *intents.params.Currency)
	require.Equal(t, string(stripe.PaymentIntentCaptureMethodManual), *intents.params.CaptureMethod)
	require.Equal(t, "Berlin", *intents.params.Shipping.Address.City)
	require.Equal(t, "idem-1", *intents.params.IdempotencyKey)

	require.Equal(t, "pay-1", payment.ID)
	require.Equal(t, MethodStripeCard, payment.Name)
	require.Equal(t, "authorize", payment.Mode)
	require.Equal(t, commerce.PaymentStatusCreated, payment.Status)
	require.Equal(t, commerce.PaymentDataStripeCard, payment.Data.Kind)
	require.Equal(t, "pi_123", payment.Data.StripeCard.PaymentIntentID)
	require.Equal(t, "pi_123", payment.TransactionID)
	require.Equal(t, fixedClock(), payment.CreatedAt)
}

func TestStripeAuthorizeMapsCardDecline(t *testing.T) {
	intents := &stubIntents{err: &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined.", HTTPStatusCode: http.StatusPaymentRequired, DeclineCode: "insufficient_funds"}}
	p := newStripeProcessor(StripeConfig{}, intents, &stubRefunds{})

	_, err := p.Authorize(context.Background(), plugin.PaymentRequest{Amount: money.MustParse("5", "USD")})
	require.True(t, common.HasCode(err, CodePaymentFailed))

	_, err = p.Authorize(context.Background(), plugin.PaymentRequest{Amount: money.Zero("USD")})
	require.True(t, common.HasCode(err, common.CodeInvalidParam))
}

func TestStripeOutageClassification(t *testing.T) {
	require.True(t, isStripeOutage(&stripe.Error{HTTPStatusCode: http.StatusBadGateway}))
	require.True(t, isStripeOutage(errors.New("dial tcp: timeout")))
	require.False(t, isStripeOutage(&stripe.Error{HTTPStatusCode: http.StatusPaymentRequired}))
	require.False(t, isStripeOutage(context.Canceled))
}

func TestStripeListRefunds(t *testing.T) {
	refunds := &stubRefunds{refunds: []*stripe.Refund{
		{ID: "re_1", Amount: 250, Currency: "eur", Status: stripe.RefundStatusSucceeded, Created: 1700000000},
	}}
	p := newStripeProcessor(StripeConfig{}, &stubIntents{}, refunds)

	out, err := p.ListRefunds(context.Background(), commerce.Payment{
		ID:     "pay-1",
		Amount: money.MustParse("10", "EUR"),
		Data:   commerce.PaymentData{Kind: commerce.PaymentDataStripeCard, StripeCard: &commerce.StripeCardPaymentData{PaymentIntentID: "pi_9"}},
	})
	require.NoError(t, err)
	require.Equal(t, "pi_9", refunds.gotID)
	require.Len(t, out, 1)
	require.Equal(t, "pay-1", out[0].PaymentID)
	require.True(t, out[0].Amount.Equal(money.MustParse("2.50", "EUR")))
	require.Equal(t, "succeeded", out[0].Status)

	_, err = p.ListRefunds(context.Background(), commerce.Payment{ID: "pay-2"})
	require.Error(t, err)
}

func TestInAdvanceAuthorize(t *testing.T) {
	m := InAdvance{Now: fixedClock, NewID: func() string { return "3f2a9c1e-0000-4000-8000-000000000000" }}

	payment, err := m.Authorize(context.Background(), plugin.PaymentRequest{Amount: money.MustParse("99", "EUR"), ShopID: "shop-1"})
	require.NoError(t, err)
	require.Equal(t, MethodInAdvance, payment.Name)
	require.Equal(t, commerce.PaymentDataInAdvance, payment.Data.Kind)
	require.Equal(t, "PAY-3F2A9C1E00", payment.Data.InAdvance.Reference)

	refunds, err := m.ListRefunds(context.Background(), payment)
	require.NoError(t, err)
	require.Empty(t, refunds)
}

func TestPluginRegistersMethods(t *testing.T) {
	var reg plugin.Registry
	reg.MustRegister(Plugin(InAdvance{}, newStripeProcessor(StripeConfig{}, &stubIntents{}, &stubRefunds{})))

	m, ok := reg.PaymentMethod(MethodStripeCard)
	require.True(t, ok)
	require.Equal(t, MethodStripeCard, m.Name())
	_, ok = reg.PaymentMethod(MethodInAdvance)
	require.True(t, ok)
}
