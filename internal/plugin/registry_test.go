package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
)

type namedPayment string

func (n namedPayment) Name() string { return string(n) }

func (namedPayment) Authorize(context.Context, PaymentRequest) (commerce.Payment, error) {
	return commerce.Payment{}, nil
}

func (namedPayment) ListRefunds(context.Context, commerce.Payment) ([]commerce.Refund, error) {
	return nil, nil
}

type ruleFunc func(context.Context, SurchargeContext) ([]commerce.Surcharge, error)

func (f ruleFunc) Surcharges(ctx context.Context, in SurchargeContext) ([]commerce.Surcharge, error) {
	return f(ctx, in)
}

func TestRegisterKeepsOrderPerCapability(t *testing.T) {
	var reg Registry
	first := ruleFunc(func(context.Context, SurchargeContext) ([]commerce.Surcharge, error) { return nil, nil })
	second := ruleFunc(func(context.Context, SurchargeContext) ([]commerce.Surcharge, error) { return nil, nil })
	reg.MustRegister(
		Plugin{Name: "a", SurchargeRules: []SurchargeRule{first}, PaymentMethods: []PaymentMethod{namedPayment("stripe_card")}},
		Plugin{Name: "b", SurchargeRules: []SurchargeRule{second}},
	)

	require.Equal(t, []string{"a", "b"}, reg.Names())
	require.Equal(t, 2, reg.Count(CapabilitySurcharge))
	require.Equal(t, 1, reg.Count(CapabilityPaymentMethod))
	require.Zero(t, reg.Count(CapabilityCartTransform))

	pm, ok := reg.PaymentMethod("stripe_card")
	require.True(t, ok)
	require.Equal(t, "stripe_card", pm.Name())
	_, ok = reg.PaymentMethod("missing")
	require.False(t, ok)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	var reg Registry
	require.NoError(t, reg.Register(Plugin{Name: "a", PaymentMethods: []PaymentMethod{namedPayment("x")}}))
	require.ErrorIs(t, reg.Register(Plugin{Name: "a"}), ErrDuplicate)
	require.ErrorIs(t, reg.Register(Plugin{Name: "b", PaymentMethods: []PaymentMethod{namedPayment("x")}}), ErrDuplicate)
	require.Error(t, reg.Register(Plugin{Name: " "}))
	require.Equal(t, []string{"a"}, reg.Names())
}

func TestStartupStopsAtFirstError(t *testing.T) {
	var reg Registry
	var ran []int
	boom := errors.New("boom")
	reg.MustRegister(Plugin{Name: "p", Startup: []StartupFunc{
		func(context.Context, *events.Bus) error { ran = append(ran, 1); return nil },
		func(context.Context, *events.Bus) error { ran = append(ran, 2); return boom },
		func(context.Context, *events.Bus) error { ran = append(ran, 3); return nil },
	}})
	err := reg.Startup(context.Background(), events.NewBus(nil))
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1, 2}, ran)
}
