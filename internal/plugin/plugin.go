// Package plugin is the registry through which feature packages contribute
// behaviour to the core. Each capability has its own interface and the
// registry keeps an ordered list of implementations per capability.
package plugin

import (
	"context"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/money"
)

// Capability tags a kind of contribution.
type Capability string

const (
	CapabilitySurcharge      Capability = "surcharge"
	CapabilityCartTransform  Capability = "xformCartWithLanguage"
	CapabilityOrderEmailData Capability = "getDataForOrderEmail"
	CapabilityPaymentMethod  Capability = "paymentMethod"
	CapabilityStartup        Capability = "startup"
)

// SurchargeContext is everything a surcharge rule may inspect for one group.
type SurchargeContext struct {
	Group                       commerce.FulfillmentGroup
	BillingAddress              *commerce.Address
	CartID                      string
	OrderID                     string
	CurrencyCode                string
	DiscountTotal               money.Money
	SelectedFulfillmentMethodID string
}

// SurchargeRule evaluates zero or more surcharges for a fulfillment group.
type SurchargeRule interface {
	Surcharges(ctx context.Context, in SurchargeContext) ([]commerce.Surcharge, error)
}

// CartTransform mutates a cart before it is returned to a shopper.
type CartTransform interface {
	TransformCart(ctx context.Context, cart *commerce.Cart, language string) error
}

// OrderEmailDataProvider contributes custom template data for order emails.
type OrderEmailDataProvider interface {
	OrderEmailData(ctx context.Context, order commerce.Order) (map[string]any, error)
}

// PaymentRequest is the input of PaymentMethod.Authorize.
type PaymentRequest struct {
	Amount          money.Money
	BillingAddress  *commerce.Address
	ShippingAddress *commerce.Address
	Email           string
	ShopID          string
	AccountID       string
	CartID          string
	IdempotencyKey  string
	Data            map[string]any
}

// PaymentMethod authorizes payments and reports refunds for payments it created.
type PaymentMethod interface {
	Name() string
	Authorize(ctx context.Context, req PaymentRequest) (commerce.Payment, error)
	ListRefunds(ctx context.Context, payment commerce.Payment) ([]commerce.Refund, error)
}

// StartupFunc runs once at boot, typically to register event listeners.
type StartupFunc func(ctx context.Context, bus *events.Bus) error

// Plugin is a named bundle of contributions.
type Plugin struct {
	Name           string
	SurchargeRules []SurchargeRule
	CartTransforms []CartTransform
	OrderEmailData []OrderEmailDataProvider
	PaymentMethods []PaymentMethod
	Startup        []StartupFunc
}
