package commerce

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/money"
)

// Order workflow statuses.
const (
	OrderStatusNew      = "new"
	OrderStatusCanceled = "coreOrderWorkflow/canceled"
)

// Order is the immutable-ish record produced from a cart at checkout.
type Order struct {
	ID                    string             `json:"_id" bson:"_id"`
	ReferenceID           string             `json:"referenceId" bson:"referenceId"`
	ShopID                string             `json:"shopId" bson:"shopId"`
	CartID                string             `json:"cartId,omitempty" bson:"cartId,omitempty"`
	AccountID             *string            `json:"accountId" bson:"accountId"`
	Email                 string             `json:"email" bson:"email"`
	CurrencyCode          string             `json:"currencyCode" bson:"currencyCode"`
	Shipping              []FulfillmentGroup `json:"shipping" bson:"shipping"`
	BillingAddress        *Address           `json:"billingAddress,omitempty" bson:"billingAddress,omitempty"`
	Payments              []Payment          `json:"payments" bson:"payments"`
	Surcharges            []Surcharge        `json:"surcharges,omitempty" bson:"surcharges,omitempty"`
	Workflow              Workflow           `json:"workflow" bson:"workflow"`
	Language              string             `json:"ordererPreferredLanguage,omitempty" bson:"ordererPreferredLanguage,omitempty"`
	AnonymousAccessTokens []AccessToken      `json:"anonymousAccessTokens,omitempty" bson:"anonymousAccessTokens,omitempty"`
	CustomData            map[string]any     `json:"customData,omitempty" bson:"customData,omitempty"`
	CreatedAt             time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt" bson:"updatedAt"`
	Version               int64              `json:"version" bson:"version"`
}

// AccessToken is a hashed token granting anonymous read access to an order.
type AccessToken struct {
	HashedToken string    `json:"hashedToken" bson:"hashedToken"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// IsCanceled reports whether the order reached the canceled workflow state.
func (o Order) IsCanceled() bool {
	return o.Workflow.Status == OrderStatusCanceled
}

// Payment statuses.
const (
	PaymentStatusCreated   = "created"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCanceled  = "canceled"
)

// PaymentCurrency captures the shopper's display currency at checkout.
type PaymentCurrency struct {
	UserCurrency string          `json:"userCurrency" bson:"userCurrency"`
	ExchangeRate decimal.Decimal `json:"exchangeRate" bson:"exchangeRate"`
}

// Payment is one payment attached to an order.
type Payment struct {
	ID                string           `json:"_id" bson:"_id"`
	Name              string           `json:"name" bson:"name"`
	DisplayName       string           `json:"displayName" bson:"displayName"`
	Method            string           `json:"method" bson:"method"`
	Mode              string           `json:"mode" bson:"mode"`
	Processor         string           `json:"processor" bson:"processor"`
	PaymentPluginName string           `json:"paymentPluginName" bson:"paymentPluginName"`
	ShopID            string           `json:"shopId" bson:"shopId"`
	Amount            money.Money      `json:"amount" bson:"amount"`
	Status            string           `json:"status" bson:"status"`
	RiskLevel         string           `json:"riskLevel,omitempty" bson:"riskLevel,omitempty"`
	TransactionID     string           `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	Address           *Address         `json:"address,omitempty" bson:"address,omitempty"`
	Currency          *PaymentCurrency `json:"currency,omitempty" bson:"currency,omitempty"`
	Data              PaymentData      `json:"data" bson:"data"`
	CreatedAt         time.Time        `json:"createdAt" bson:"createdAt"`
}

// Payment data kinds.
const (
	PaymentDataStripeCard = "StripeCardPaymentData"
	PaymentDataInAdvance  = "InAdvancePaymentData"
	PaymentDataCashpresso = "CashpressoPaymentData"
	PaymentDataOpaque     = "OpaquePaymentData"
)

// PaymentData is a tagged union: Kind names which of the variant fields is set.
type PaymentData struct {
	Kind       string                 `json:"kind" bson:"kind"`
	StripeCard *StripeCardPaymentData `json:"stripeCard,omitempty" bson:"stripeCard,omitempty"`
	InAdvance  *InAdvancePaymentData  `json:"inAdvance,omitempty" bson:"inAdvance,omitempty"`
	Cashpresso *CashpressoPaymentData `json:"cashpresso,omitempty" bson:"cashpresso,omitempty"`
	Opaque     map[string]any         `json:"opaque,omitempty" bson:"opaque,omitempty"`
}

// StripeCardPaymentData holds the identifiers of a Stripe payment intent.
type StripeCardPaymentData struct {
	PaymentIntentID string `json:"paymentIntentId" bson:"paymentIntentId"`
	ClientSecret    string `json:"-" bson:"clientSecret,omitempty"`
	ChargeID        string `json:"chargeId,omitempty" bson:"chargeId,omitempty"`
}

// InAdvancePaymentData marks a bank-transfer-in-advance payment.
type InAdvancePaymentData struct {
	Reference string `json:"reference" bson:"reference"`
}

// CashpressoPaymentData describes an instalment purchase.
type CashpressoPaymentData struct {
	PurchaseID string `json:"purchaseId" bson:"purchaseId"`
	URL        string `json:"url" bson:"url"`
}

// Refund is a refund recorded against a payment by its processor.
type Refund struct {
	ID        string      `json:"_id" bson:"_id"`
	PaymentID string      `json:"paymentId" bson:"paymentId"`
	Type      string      `json:"type" bson:"type"`
	Amount    money.Money `json:"amount" bson:"amount"`
	Status    string      `json:"status" bson:"status"`
	Reason    string      `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
}
