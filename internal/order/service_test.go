package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/cart"
	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/fulfillment"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/payment"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/shipping"
	"github.com/noah-isme/storefront-core/internal/store"
	"github.com/noah-isme/storefront-core/internal/tax"
)

type recordedEmail struct {
	orderID string
	action  string
}

type fakeEmails struct {
	sent []recordedEmail
	err  error
}

func (f *fakeEmails) EnqueueOrderEmail(_ context.Context, order commerce.Order, action string) error {
	f.sent = append(f.sent, recordedEmail{orderID: order.ID, action: action})
	return f.err
}

type failingMethod struct{}

func (failingMethod) Name() string { return "declined" }

func (failingMethod) Authorize(context.Context, plugin.PaymentRequest) (commerce.Payment, error) {
	return commerce.Payment{}, common.NewAppError(payment.CodePaymentFailed, "card declined", http.StatusPaymentRequired, nil)
}

func (failingMethod) ListRefunds(context.Context, commerce.Payment) ([]commerce.Refund, error) {
	return nil, nil
}

type orderFixture struct {
	svc     *Service
	store   *store.Memory
	emails  *fakeEmails
	created []commerce.Order
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func fixedNow() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func eur(v string) money.Money { return money.MustParse(v, "EUR") }

func newFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{store: store.NewMemory(), emails: &fakeEmails{}}
	bus := events.NewBus(nil)
	bus.OnOrderCreated(func(_ context.Context, ev events.OrderCreated) error {
		f.created = append(f.created, ev.Order)
		return nil
	})
	methods, err := shipping.ParseMethods([]string{"standard:DHL:4.90"})
	require.NoError(t, err)
	reg := &plugin.Registry{}
	reg.MustRegister(payment.Plugin(payment.InAdvance{Now: fixedNow, NewID: sequentialIDs("pay")}, failingMethod{}))

	carts := &cart.Service{
		Carts:   f.store,
		Bus:     bus,
		Plugins: reg,
		Totals: &fulfillment.Calculator{
			Quoter:     shipping.FlatRateTable{Methods: methods},
			Tax:        tax.RateTable{DefaultBps: 1000},
			Surcharges: reg,
		},
		CurrencyCode: "EUR",
		Now:          fixedNow,
	}
	f.svc = &Service{
		Carts:   carts,
		Store:   f.store,
		Plugins: reg,
		Bus:     bus,
		Emails:  f.emails,
		Now:     fixedNow,
		NewID:   sequentialIDs("order"),
	}
	return f
}

func validAddress() commerce.Address {
	return commerce.Address{FullName: "Ada Lovelace", Address1: "1 Main St", City: "Berlin", Postal: "10115", Country: "DE"}
}

// seedCart stores a cart with two units at 10 EUR in one shipping group.
func (f *orderFixture) seedCart(t *testing.T, id string, owner func(*commerce.Cart)) commerce.Cart {
	t.Helper()
	price := eur("10")
	addr := validAddress()
	c := commerce.Cart{
		ID:           id,
		ShopID:       "shop-1",
		CurrencyCode: "EUR",
		Items: []commerce.CartItem{{
			ID: "item-a", ProductID: "P1", VariantID: "V1", ShopID: "shop-1",
			Quantity: 2, Price: price, Subtotal: price.Mul(2), IsTaxable: true,
		}},
		Shipping: []commerce.FulfillmentGroup{{
			ID: "group-1", Type: commerce.FulfillmentShipping, ShopID: "shop-1",
			ItemIDs: []string{"item-a"}, Address: &addr,
		}},
	}
	owner(&c)
	saved, err := f.store.SaveCart(context.Background(), c)
	require.NoError(t, err)
	return saved
}

func anonymous(token string) func(*commerce.Cart) {
	return func(c *commerce.Cart) {
		hashed := common.HashToken(token)
		c.AnonymousAccessToken = &hashed
	}
}

func ownedBy(accountID string) func(*commerce.Cart) {
	return func(c *commerce.Cart) { c.AccountID = &accountID }
}

func standardShipping() []cart.GroupSelection {
	return []cart.GroupSelection{{GroupID: "group-1", ShipmentMethodID: "standard"}}
}

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}

func TestPlaceOrderRequiresCartID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{Email: "a@example.com"})
	requireCode(t, err, common.CodeInvalidParam, http.StatusBadRequest)
}

func TestPlaceOrderAnonymousCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", anonymous("secret"))
	expected := decimal.RequireFromString("26.90")

	res, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CartID:             "cart-1",
		CartToken:          "secret",
		Email:              "ada@example.com",
		FulfillmentMethods: standardShipping(),
		ExpectedTotal:      &expected,
		Payment:            PaymentInput{Method: payment.MethodInAdvance},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.True(t, res.Totals.Total.Equal(eur("26.90")))

	order := res.Order
	require.Equal(t, "order-1", order.ID)
	require.NotEmpty(t, order.ReferenceID)
	require.Nil(t, order.AccountID)
	require.Equal(t, commerce.OrderStatusNew, order.Workflow.Status)
	require.Len(t, order.Payments, 1)
	require.True(t, order.Payments[0].Amount.Equal(eur("26.90")))
	require.Equal(t, commerce.PaymentDataInAdvance, order.Payments[0].Data.Kind)
	require.Len(t, order.Shipping, 1)
	require.Len(t, order.Shipping[0].Items, 1)
	require.Equal(t, "standard", order.Shipping[0].ShipmentMethod.ID)
	require.Len(t, order.AnonymousAccessTokens, 1)
	require.Equal(t, common.HashToken(res.Token), order.AnonymousAccessTokens[0].HashedToken)

	_, err = f.store.FindCart(context.Background(), store.CartSelector{ID: "cart-1"})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Len(t, f.created, 1)
	require.Equal(t, []recordedEmail{{orderID: "order-1", action: EmailActionNew}}, f.emails.sent)

	got, err := f.svc.OrderByID(context.Background(), OrderQuery{OrderID: "order-1", Token: res.Token})
	require.NoError(t, err)
	require.Equal(t, order.ReferenceID, got.ReferenceID)

	_, err = f.svc.OrderByID(context.Background(), OrderQuery{OrderID: "order-1", Token: "wrong"})
	requireCode(t, err, common.CodeNotFound, http.StatusNotFound)
}

func TestPlaceOrderAccountCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", ownedBy("acc-1"))
	ctx := common.WithAccountID(context.Background(), "acc-1")

	res, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{
		CartID:             "cart-1",
		Email:              "ada@example.com",
		FulfillmentMethods: standardShipping(),
		Payment:            PaymentInput{Method: payment.MethodInAdvance},
		Currency:           &commerce.PaymentCurrency{UserCurrency: "CHF"},
	})
	require.NoError(t, err)
	require.Empty(t, res.Token)
	require.Empty(t, res.Order.AnonymousAccessTokens)
	require.Equal(t, "acc-1", *res.Order.AccountID)
	require.Equal(t, "CHF", res.Order.Payments[0].Currency.UserCurrency)
	require.True(t, res.Order.Payments[0].Currency.ExchangeRate.Equal(decimal.NewFromInt(1)))

	_, err = f.svc.OrderByID(ctx, OrderQuery{OrderID: res.Order.ID})
	require.NoError(t, err)
	_, err = f.svc.OrderByID(common.WithAccountID(context.Background(), "acc-2"), OrderQuery{OrderID: res.Order.ID})
	requireCode(t, err, common.CodeNotFound, http.StatusNotFound)
}

func TestPlaceOrderRejectsOtherAccountsCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", ownedBy("acc-1"))

	_, err := f.svc.PlaceOrder(common.WithAccountID(context.Background(), "acc-2"), PlaceOrderInput{
		CartID:             "cart-1",
		Email:              "ada@example.com",
		FulfillmentMethods: standardShipping(),
		Payment:            PaymentInput{Method: payment.MethodInAdvance},
	})
	require.Error(t, err)
	require.Empty(t, f.created)
}

func TestPlaceOrderUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", anonymous("secret"))

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CartID:    "cart-1",
		CartToken: "secret",
		Email:     "ada@example.com",
		Payment:   PaymentInput{Method: "bitcoin"},
	})
	requireCode(t, err, common.CodeInvalidParam, http.StatusBadRequest)
}

func TestPlaceOrderTotalMismatchKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", anonymous("secret"))
	expected := decimal.RequireFromString("20")

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CartID:             "cart-1",
		CartToken:          "secret",
		Email:              "ada@example.com",
		FulfillmentMethods: standardShipping(),
		ExpectedTotal:      &expected,
		Payment:            PaymentInput{Method: payment.MethodInAdvance},
	})
	requireCode(t, err, common.CodeInvalid, http.StatusBadRequest)
	require.ErrorIs(t, err, fulfillment.ErrTotalMismatch)

	_, err = f.store.FindCart(context.Background(), store.CartSelector{ID: "cart-1"})
	require.NoError(t, err)
	require.Empty(t, f.emails.sent)
}

func TestPlaceOrderRequiresShipmentMethod(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", anonymous("secret"))

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CartID:    "cart-1",
		CartToken: "secret",
		Email:     "ada@example.com",
		Payment:   PaymentInput{Method: payment.MethodInAdvance},
	})
	requireCode(t, err, common.CodeInvalidParam, http.StatusBadRequest)
}

func TestPlaceOrderPaymentFailureSavesNothing(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t, "cart-1", anonymous("secret"))

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CartID:             "cart-1",
		CartToken:          "secret",
		Email:              "ada@example.com",
		FulfillmentMethods: standardShipping(),
		Payment:            PaymentInput{Method: "declined"},
	})
	requireCode(t, err, payment.CodePaymentFailed, http.StatusPaymentRequired)

	_, err = f.store.FindOrder(context.Background(), "order-1")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, f.created)
}

func TestPlaceOrderSurvivesEmailEnqueueFailure(t *testing.T) {
	f := newFixture(t)
	f.emails.err = errors.New("redis down")
	f.seedCart(t, "cart-1", anonymous("secret"))

	res, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CartID:             "cart-1",
		CartToken:          "secret",
		Email:              "ada@example.com",
		FulfillmentMethods: standardShipping(),
		Payment:            PaymentInput{Method: payment.MethodInAdvance},
	})
	require.NoError(t, err)
	_, err = f.store.FindOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
}
