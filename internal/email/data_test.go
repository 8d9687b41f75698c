package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/payment"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/store"
)

type stubMethod struct {
	name    string
	refunds []commerce.Refund
	err     error
}

func (m stubMethod) Name() string { return m.name }

func (m stubMethod) Authorize(context.Context, plugin.PaymentRequest) (commerce.Payment, error) {
	return commerce.Payment{}, errors.New("not used")
}

func (m stubMethod) ListRefunds(context.Context, commerce.Payment) ([]commerce.Refund, error) {
	return m.refunds, m.err
}

type customData map[string]any

func (c customData) OrderEmailData(context.Context, commerce.Order) (map[string]any, error) {
	return c, nil
}

func eur(v string) money.Money { return money.MustParse(v, "EUR") }

func fixedNow() time.Time { return time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC) }

func testShop() commerce.Shop {
	return commerce.Shop{
		ID:           "shop-1",
		Name:         "Bike Shop",
		CurrencyCode: "EUR",
		Language:     "de",
		Emails:       []commerce.Email{{Address: "hello@bikes.example"}},
		AddressBook: []commerce.Address{{
			FullName: "Bike Shop", Company: "Bike Shop GmbH", Address1: "Radweg 1",
			City: "Berlin", Postal: "10115", Country: "DE",
		}},
		StorefrontURLs: commerce.StorefrontURLs{
			StorefrontHomeURL:  "https://bikes.example",
			StorefrontOrderURL: "https://bikes.example/orders/:orderId?token=:token",
		},
		Metafields: []commerce.Metafield{
			{Key: "bankName", Value: "Bank"},
			{Key: "iban", Value: "DE00123"},
			{Key: "bic", Value: "BICXXX"},
		},
	}
}

func invoice(subtotal, shipping, taxes, discounts, total string) *commerce.Invoice {
	return &commerce.Invoice{
		CurrencyCode: "EUR",
		Subtotal:     eur(subtotal),
		Shipping:     eur(shipping),
		Taxes:        eur(taxes),
		Discounts:    eur(discounts),
		Total:        eur(total),
	}
}

func testOrder() commerce.Order {
	addr := commerce.Address{FullName: "<b>Ada</b> Lovelace", Address1: "1 Main St", Address2: "Apt 2", City: "Berlin", Postal: "10115", Country: "DE"}
	return commerce.Order{
		ID:           "order-1",
		ReferenceID:  "REF1",
		ShopID:       "shop-1",
		Email:        "ada@example.com",
		CurrencyCode: "EUR",
		Workflow:     commerce.Workflow{Status: commerce.OrderStatusNew},
		Language:     "de",
		Shipping: []commerce.FulfillmentGroup{
			{
				ID: "g1", Address: &addr, Tracking: "TRACK1",
				ShipmentMethod: &commerce.ShipmentMethod{ID: "standard", Carrier: "DHL"},
				Items: []commerce.OrderItem{
					{ID: "i1", VariantID: "V1", ShopID: "shop-1", Quantity: 2, Price: eur("10"), Subtotal: eur("20")},
				},
				Invoice: invoice("20", "4.90", "2", "0", "26.90"),
			},
			{
				ID: "g2", Address: &addr,
				Items: []commerce.OrderItem{
					{ID: "i2", VariantID: "V1", ShopID: "shop-1", Quantity: 1, Price: eur("10"), Subtotal: eur("10")},
				},
				Invoice: invoice("10", "0", "1", "1", "10"),
			},
		},
		Payments: []commerce.Payment{{
			ID: "pay-1", Name: payment.MethodInAdvance, DisplayName: "Payment in advance",
			Amount: eur("36.90"), Status: commerce.PaymentStatusCreated,
		}},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type builderFixture struct {
	builder *Builder
	store   *store.Memory
}

func newBuilder(t *testing.T, order commerce.Order, plugins ...plugin.Plugin) *builderFixture {
	t.Helper()
	mem := store.NewMemory()
	_, err := mem.SaveShop(context.Background(), testShop())
	require.NoError(t, err)
	_, err = mem.SaveOrder(context.Background(), order)
	require.NoError(t, err)
	reg := &plugin.Registry{}
	reg.MustRegister(plugins...)
	return &builderFixture{
		builder: &Builder{Shops: mem, Orders: mem, Plugins: reg, Now: fixedNow},
		store:   mem,
	}
}

func paymentsPlugin(methods ...plugin.PaymentMethod) plugin.Plugin {
	return plugin.Plugin{Name: "payments", PaymentMethods: methods}
}

func format(v string, code string) string {
	return money.Format(decimal.RequireFromString(v), code, "de")
}

func TestBuildOrderEmailDataCollapsesGroups(t *testing.T) {
	refunds := []commerce.Refund{{ID: "r1", Amount: eur("3")}, {ID: "r2", Amount: eur("2")}}
	f := newBuilder(t, testOrder(),
		paymentsPlugin(stubMethod{name: payment.MethodInAdvance, refunds: refunds}),
		plugin.Plugin{Name: "custom", OrderEmailData: []plugin.OrderEmailDataProvider{customData{"campaign": "spring"}}},
	)

	data, err := f.builder.BuildOrderEmailData(context.Background(), testOrder())
	require.NoError(t, err)

	require.Equal(t, "Bike Shop", data.ShopName)
	require.Equal(t, "hello@bikes.example", data.ContactEmail)
	require.Equal(t, "https://bikes.example", data.Homepage)
	require.Equal(t, "Bike Shop GmbH", data.LegalName)
	require.Equal(t, PhysicalAddress{Address: "Radweg 1", City: "Berlin", Postal: "10115"}, data.PhysicalAddress)
	require.Equal(t, 2024, data.CopyrightDate)
	require.Equal(t, "01.05.2024", data.OrderDate)
	require.False(t, data.Order.IsCanceledOrder)

	require.Len(t, data.CombinedItems, 1)
	require.Equal(t, 3, data.CombinedItems[0].Quantity)

	require.Equal(t, "DHL", data.Shipping.Carrier)
	require.Equal(t, "TRACK1", data.Shipping.Tracking)
	require.Equal(t, "1 Main St Apt 2", data.Shipping.Address.Address)
	require.Equal(t, "Ada Lovelace", data.Shipping.Address.FullName)

	require.Equal(t, format("30", "EUR"), data.Billing.Subtotal)
	require.Equal(t, format("4.90", "EUR"), data.Billing.Shipping)
	require.Equal(t, format("3", "EUR"), data.Billing.Taxes)
	require.Equal(t, format("1", "EUR"), data.Billing.Discounts)
	require.Equal(t, format("5", "EUR"), data.Billing.Refunds)
	require.Equal(t, format("36.90", "EUR"), data.Billing.Total)
	require.Equal(t, format("31.90", "EUR"), data.Billing.AdjustedTotal)
	require.Equal(t, format("0.625", "EUR"), data.Billing.SantanderMin)
	require.Nil(t, data.Billing.Address)

	require.Len(t, data.Billing.Payments, 1)
	p := data.Billing.Payments[0]
	require.True(t, p.IsInAdvance)
	require.True(t, p.IsCreated)
	require.False(t, p.IsCashpresso)
	require.Equal(t, format("36.90", "EUR"), p.DisplayAmount)
	require.NotNil(t, p.BankDetails)
	require.Equal(t, "DE00123", p.BankDetails.IBAN)
	require.Equal(t, "Bike Shop GmbH", p.BankDetails.Company)

	require.Equal(t, map[string]any{"campaign": "spring"}, data.CustomData)
}

func TestBuildOrderEmailDataAddsTokenForAnonymousOrders(t *testing.T) {
	f := newBuilder(t, testOrder(), paymentsPlugin(stubMethod{name: payment.MethodInAdvance}))

	data, err := f.builder.BuildOrderEmailData(context.Background(), testOrder())
	require.NoError(t, err)
	prefix := "https://bikes.example/orders/REF1?token="
	require.True(t, strings.HasPrefix(data.OrderURL, prefix), data.OrderURL)
	token := strings.TrimPrefix(data.OrderURL, prefix)
	require.NotEmpty(t, token)

	stored, err := f.store.FindOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, stored.AnonymousAccessTokens, 1)
	require.Equal(t, common.HashToken(token), stored.AnonymousAccessTokens[0].HashedToken)
}

func TestBuildOrderEmailDataAccountOrderHasEmptyToken(t *testing.T) {
	order := testOrder()
	accountID := "acc-1"
	order.AccountID = &accountID
	f := newBuilder(t, order, paymentsPlugin(stubMethod{name: payment.MethodInAdvance}))

	data, err := f.builder.BuildOrderEmailData(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, "https://bikes.example/orders/REF1?token=", data.OrderURL)

	stored, err := f.store.FindOrder(context.Background(), "order-1")
	require.NoError(t, err)
	require.Empty(t, stored.AnonymousAccessTokens)
}

func TestBuildOrderEmailDataUsesPaymentCurrency(t *testing.T) {
	order := testOrder()
	order.Payments[0].Name = payment.MethodCashpresso
	order.Payments[0].Status = commerce.PaymentStatusCompleted
	order.Payments[0].Currency = &commerce.PaymentCurrency{UserCurrency: "CHF", ExchangeRate: decimal.NewFromInt(2)}
	order.Payments[0].Data = commerce.PaymentData{
		Kind:       commerce.PaymentDataCashpresso,
		Cashpresso: &commerce.CashpressoPaymentData{PurchaseID: "cp-1", URL: "https://cashpresso.example/p/1"},
	}
	f := newBuilder(t, order, paymentsPlugin(stubMethod{name: payment.MethodCashpresso}))

	data, err := f.builder.BuildOrderEmailData(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, format("60", "CHF"), data.Billing.Subtotal)
	require.Equal(t, format("20", "CHF"), data.CombinedItems[0].DisplayPrice)

	p := data.Billing.Payments[0]
	require.True(t, p.IsCashpresso)
	require.True(t, p.IsCompleted)
	require.False(t, p.IsInAdvance)
	require.Equal(t, &BankDetails{URL: "https://cashpresso.example/p/1"}, p.BankDetails)
}

func TestBuildOrderEmailDataFallsBackToPaymentBillingAddress(t *testing.T) {
	order := testOrder()
	order.Payments[0].Address = &commerce.Address{FullName: "Payer", Address1: "2 Side St", City: "Hamburg", Postal: "20095", Country: "DE"}
	f := newBuilder(t, order, paymentsPlugin(stubMethod{name: payment.MethodInAdvance}))

	data, err := f.builder.BuildOrderEmailData(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, "2 Side St", data.Billing.Address.Address)
	require.Equal(t, "Hamburg", data.Billing.Address.City)
}

func TestBuildOrderEmailDataCanceledOrder(t *testing.T) {
	order := testOrder()
	order.Workflow.Status = commerce.OrderStatusCanceled
	f := newBuilder(t, order, paymentsPlugin(stubMethod{name: payment.MethodInAdvance}))

	data, err := f.builder.BuildOrderEmailData(context.Background(), order)
	require.NoError(t, err)
	require.True(t, data.Order.IsCanceledOrder)
}

func TestBuildOrderEmailDataFailsWhenRefundLookupFails(t *testing.T) {
	f := newBuilder(t, testOrder(), paymentsPlugin(stubMethod{name: payment.MethodInAdvance, err: errors.New("processor down")}))

	_, err := f.builder.BuildOrderEmailData(context.Background(), testOrder())
	require.ErrorContains(t, err, "processor down")
}

func TestBuildOrderEmailDataRequiresRegisteredPaymentMethod(t *testing.T) {
	f := newBuilder(t, testOrder())

	_, err := f.builder.BuildOrderEmailData(context.Background(), testOrder())
	require.ErrorContains(t, err, "not registered")
}
