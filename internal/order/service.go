// Package order turns carts into orders and serves them back to their owners.
package order

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/cart"
	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/fulfillment"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/store"
)

// ErrNotFound is wrapped by the not-found errors of order queries.
var ErrNotFound = errors.New("order: not found")

// Email actions.
const (
	EmailActionNew    = "new"
	EmailActionUpdate = "update"
)

// EmailEnqueuer schedules an order email for asynchronous delivery.
type EmailEnqueuer interface {
	EnqueueOrderEmail(ctx context.Context, order commerce.Order, action string) error
}

// Service places orders.
type Service struct {
	Carts   *cart.Service
	Store   CheckoutStore
	Plugins *plugin.Registry
	Bus     *events.Bus
	Emails  EmailEnqueuer
	Logger  zerolog.Logger
	Now     func() time.Time
	NewID   func() string
}

// CheckoutStore is the persistence PlaceOrder needs.
type CheckoutStore interface {
	store.Orders
	DeleteCart(ctx context.Context, sel store.CartSelector) error
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// PaymentInput selects the payment method and carries its method-specific data.
type PaymentInput struct {
	Method string         `json:"method" validate:"required"`
	Data   map[string]any `json:"data,omitempty"`
}

// PlaceOrderInput is the checkout request.
type PlaceOrderInput struct {
	CartID             string                    `json:"cartId"`
	CartToken          string                    `json:"cartToken,omitempty"`
	Email              string                    `json:"email" validate:"required,email"`
	BillingAddress     *commerce.Address         `json:"billingAddress,omitempty"`
	FulfillmentMethods []cart.GroupSelection     `json:"fulfillmentMethods,omitempty" validate:"dive"`
	ExpectedTotal      *decimal.Decimal          `json:"expectedTotal,omitempty"`
	Payment            PaymentInput              `json:"payment"`
	Currency           *commerce.PaymentCurrency `json:"currency,omitempty"`
	Language           string                    `json:"language,omitempty"`
	IdempotencyKey     string                    `json:"-"`
}

// PlaceOrderResult holds the new order. Token is the raw access token for
// anonymous orders and is returned only once.
type PlaceOrderResult struct {
	Order  commerce.Order
	Totals cart.CartTotals
	Token  string
}

// PlaceOrder prices the cart, authorizes the payment, persists the order and
// removes the cart. The confirmation email is scheduled after the commit.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (res PlaceOrderResult, err error) {
	ctx, span := otel.Tracer("order.Service").Start(ctx, "Service.PlaceOrder")
	defer span.End()
	logger := obs.LoggerFromContext(ctx, s.Logger)
	defer func() {
		obs.IncCounter(obs.OrdersPlacedTotal, in.Payment.Method, obs.ResultLabel(err))
	}()

	// 1) validate input
	if in.CartID == "" {
		return res, common.InvalidParam("cartId is required")
	}
	if err := common.ValidateStruct(in); err != nil {
		return res, err
	}
	method, ok := s.Plugins.PaymentMethod(in.Payment.Method)
	if !ok {
		return res, common.InvalidParam(fmt.Sprintf("unknown payment method %q", in.Payment.Method))
	}

	// 2) load cart
	c, err := s.Carts.GetCartByID(ctx, in.CartID, cart.GetCartOptions{CartToken: in.CartToken, ThrowIfNotFound: true})
	if err != nil {
		return res, err
	}
	if len(c.Items) == 0 {
		return res, common.InvalidParam("cart has no items")
	}
	if in.BillingAddress != nil {
		c.BillingAddress = in.BillingAddress
	}

	// 3) compute totals
	totals, err := s.Carts.RecalculateCart(ctx, c, in.FulfillmentMethods)
	if err != nil {
		return res, err
	}
	for _, group := range c.Shipping {
		if group.Type == commerce.FulfillmentShipping && (group.ShipmentMethod == nil || group.Address == nil) {
			return res, common.InvalidParam(fmt.Sprintf("fulfillment group %s needs an address and a shipment method", group.ID))
		}
	}
	if in.ExpectedTotal != nil {
		if err := fulfillment.CompareExpectedAndActualTotals(totals.Total, *in.ExpectedTotal); err != nil {
			return res, err
		}
	}

	// 4) authorize payment
	orderID := s.newID()
	accountID := ""
	if c.AccountID != nil {
		accountID = *c.AccountID
	}
	var shippingAddress *commerce.Address
	if len(c.Shipping) > 0 {
		shippingAddress = c.Shipping[0].Address
	}
	billing := c.BillingAddress
	if billing == nil {
		billing = shippingAddress
	}
	idemKey := in.IdempotencyKey
	if idemKey == "" {
		idemKey = "order-" + orderID
	}
	payment, err := method.Authorize(ctx, plugin.PaymentRequest{
		Amount:          totals.Total,
		BillingAddress:  billing,
		ShippingAddress: shippingAddress,
		Email:           in.Email,
		ShopID:          c.ShopID,
		AccountID:       accountID,
		CartID:          c.ID,
		IdempotencyKey:  idemKey,
		Data:            in.Payment.Data,
	})
	if err != nil {
		logger.Warn().Err(err).Str("cart_id", c.ID).Str("payment_method", in.Payment.Method).Msg("payment authorization failed")
		return res, err
	}
	if in.Currency != nil && in.Currency.UserCurrency != "" {
		cur := *in.Currency
		if cur.ExchangeRate.IsZero() {
			cur.ExchangeRate = decimal.NewFromInt(1)
		}
		payment.Currency = &cur
	}

	// 5) build order
	now := s.now()
	order := commerce.Order{
		ID:             orderID,
		ReferenceID:    referenceID(orderID),
		ShopID:         c.ShopID,
		CartID:         c.ID,
		AccountID:      c.AccountID,
		Email:          in.Email,
		CurrencyCode:   c.CurrencyCode,
		Shipping:       make([]commerce.FulfillmentGroup, len(c.Shipping)),
		BillingAddress: c.BillingAddress,
		Payments:       []commerce.Payment{payment},
		Workflow:       commerce.Workflow{Status: commerce.OrderStatusNew, Workflow: []string{commerce.OrderStatusNew}},
		Language:       firstNonEmpty(in.Language, c.Language, common.Language(ctx, "")),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, group := range c.Shipping {
		group.Workflow = commerce.Workflow{Status: commerce.OrderStatusNew, Workflow: []string{commerce.OrderStatusNew}}
		order.Shipping[i] = group
		order.Surcharges = append(order.Surcharges, group.Surcharges...)
	}
	if c.IsAnonymous() {
		token, err := common.RandomToken(32)
		if err != nil {
			return res, fmt.Errorf("order: access token: %w", err)
		}
		res.Token = token
		order.AnonymousAccessTokens = []commerce.AccessToken{{HashedToken: common.HashToken(token), CreatedAt: now}}
	}

	// 6) commit
	saved, err := s.Store.SaveOrder(ctx, order)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return res, common.Conflict("Order already exists", err)
		}
		return res, fmt.Errorf("order: save: %w", err)
	}
	if err := s.Store.DeleteCart(ctx, store.CartSelector{ID: c.ID}); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error().Err(err).Str("cart_id", c.ID).Str("order_id", saved.ID).Msg("delete converted cart failed")
	}

	// 7) emit event + email
	if s.Bus != nil {
		if err := s.Bus.EmitOrderCreated(ctx, events.OrderCreated{Order: saved}); err != nil {
			return res, err
		}
	}
	if s.Emails != nil {
		if err := s.Emails.EnqueueOrderEmail(ctx, saved, EmailActionNew); err != nil {
			logger.Error().Err(err).Str("order_id", saved.ID).Msg("enqueue order email failed")
		}
	}

	logger.Info().Str("order_id", saved.ID).Str("reference_id", saved.ReferenceID).
		Str("total", totals.Total.String()).Msg("order placed")
	res.Order = saved
	res.Totals = totals
	return res, nil
}

// OrderQuery identifies an order and the credential of its reader.
type OrderQuery struct {
	OrderID string
	Token   string
}

// OrderByID returns an order to its account owner or to a holder of one of
// its anonymous access tokens. Everyone else gets not-found.
func (s *Service) OrderByID(ctx context.Context, q OrderQuery) (commerce.Order, error) {
	if q.OrderID == "" {
		return commerce.Order{}, common.InvalidParam("orderId is required")
	}
	order, err := s.Store.FindOrder(ctx, q.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return commerce.Order{}, orderNotFound()
	}
	if err != nil {
		return commerce.Order{}, fmt.Errorf("order: find %s: %w", q.OrderID, err)
	}
	if !canRead(ctx, order, q.Token) {
		return commerce.Order{}, orderNotFound()
	}
	return order, nil
}

func canRead(ctx context.Context, order commerce.Order, token string) bool {
	if accountID, ok := common.AccountID(ctx); ok && order.AccountID != nil && *order.AccountID == accountID {
		return true
	}
	if token == "" {
		return false
	}
	hashed := common.HashToken(token)
	for _, t := range order.AnonymousAccessTokens {
		if subtle.ConstantTimeCompare([]byte(t.HashedToken), []byte(hashed)) == 1 {
			return true
		}
	}
	return false
}

func orderNotFound() error {
	appErr := common.NotFound("Order not found")
	appErr.Err = ErrNotFound
	return appErr
}

// referenceID derives the short shopper-facing reference from the order id.
func referenceID(orderID string) string {
	ref := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(ref) > 8 {
		ref = ref[len(ref)-8:]
	}
	return ref
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
