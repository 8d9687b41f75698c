// Package email builds order email template data and schedules order emails
// on the asynq job queue.
package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/payment"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/store"
)

// Address is the template form of a postal address. Street lines are joined.
type Address struct {
	Honorific string `json:"honorific,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Region    string `json:"region,omitempty"`
	Postal    string `json:"postal"`
	Country   string `json:"country"`
}

// PhysicalAddress is the shop's postal address in the email footer.
type PhysicalAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Postal  string `json:"postal"`
}

// BankDetails tells the shopper where to transfer money, or for instalment
// payments where to finish the purchase.
type BankDetails struct {
	BankName string `json:"bankName,omitempty"`
	IBAN     string `json:"iban,omitempty"`
	BIC      string `json:"bic,omitempty"`
	Company  string `json:"company,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Region   string `json:"region,omitempty"`
	Postal   string `json:"postal,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	URL      string `json:"url,omitempty"`
}

// PaymentSummary is one payment line of the billing block.
type PaymentSummary struct {
	DisplayName           string       `json:"displayName"`
	DisplayAmount         string       `json:"displayAmount"`
	IsInAdvance           bool         `json:"isInAdvance"`
	IsInSantanderManual   bool         `json:"isInSantanderManual"`
	IsInSantanderManualDe bool         `json:"isInSantanderManualDe"`
	IsCashpresso          bool         `json:"isCashpresso"`
	IsKlarna              bool         `json:"isKlarna"`
	IsCreated             bool         `json:"isCreated"`
	IsCompleted           bool         `json:"isCompleted"`
	IsFailed              bool         `json:"isFailed"`
	IsCanceled            bool         `json:"isCanceled"`
	BankDetails           *BankDetails `json:"bankDetails"`
}

// Billing holds display amounts converted to the shopper's currency.
type Billing struct {
	Address       *Address         `json:"address"`
	Payments      []PaymentSummary `json:"payments"`
	Subtotal      string           `json:"subtotal"`
	Shipping      string           `json:"shipping"`
	Taxes         string           `json:"taxes"`
	Discounts     string           `json:"discounts"`
	Refunds       string           `json:"refunds"`
	Total         string           `json:"total"`
	AdjustedTotal string           `json:"adjustedTotal"`
	SantanderMin  string           `json:"santanderMin"`
}

// Item is an order item with display prices.
type Item struct {
	commerce.OrderItem
	DisplayPrice    string `json:"displayPrice"`
	DisplaySubtotal string `json:"displaySubtotal"`
}

// Shipping describes delivery of the first fulfillment group.
type Shipping struct {
	Address  *Address `json:"address"`
	Carrier  string   `json:"carrier,omitempty"`
	Tracking string   `json:"tracking,omitempty"`
}

// Order is the order as seen by templates.
type Order struct {
	commerce.Order
	AnonymousAccessTokens *string `json:"anonymousAccessTokens,omitempty"`
	IsCanceledOrder       bool    `json:"isCanceledOrder"`
}

// OrderEmailData is everything an order template can reference.
type OrderEmailData struct {
	Shop            commerce.Shop   `json:"shop"`
	ShopName        string          `json:"shopName"`
	ContactEmail    string          `json:"contactEmail"`
	Homepage        string          `json:"homepage,omitempty"`
	CopyrightDate   int             `json:"copyrightDate"`
	LegalName       string          `json:"legalName,omitempty"`
	PhysicalAddress PhysicalAddress `json:"physicalAddress"`
	Order           Order           `json:"order"`
	Billing         Billing         `json:"billing"`
	CombinedItems   []Item          `json:"combinedItems"`
	OrderDate       string          `json:"orderDate"`
	OrderURL        string          `json:"orderUrl,omitempty"`
	Shipping        Shipping        `json:"shipping"`
	CustomData      map[string]any  `json:"customData,omitempty"`
}

// Builder assembles OrderEmailData.
type Builder struct {
	Shops   store.Shops
	Orders  store.Orders
	Plugins *plugin.Registry
	Policy  *bluemonday.Policy
	Now     func() time.Time
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) sanitize(s string) string {
	if b.Policy == nil {
		return bluemonday.StrictPolicy().Sanitize(s)
	}
	return b.Policy.Sanitize(s)
}

// BuildOrderEmailData collapses every fulfillment group of order into one
// summary, lists refunds of every payment and converts display amounts to the
// currency the shopper paid in. Anonymous orders get a fresh access token when
// the shop's order URL asks for one.
func (b *Builder) BuildOrderEmailData(ctx context.Context, order commerce.Order) (OrderEmailData, error) {
	ctx, span := otel.Tracer("email.Builder").Start(ctx, "Builder.BuildOrderEmailData")
	defer span.End()

	if len(order.Shipping) == 0 {
		return OrderEmailData{}, common.InvalidParam("order has no fulfillment groups")
	}
	shop, err := b.Shops.FindShop(ctx, store.ShopSelector{ID: order.ShopID})
	if err != nil {
		return OrderEmailData{}, fmt.Errorf("email: find shop %s: %w", order.ShopID, err)
	}

	var amount, discounts, subtotal, taxes, shippingCost decimal.Decimal
	for _, group := range order.Shipping {
		if group.Invoice == nil {
			continue
		}
		amount = amount.Add(group.Invoice.Total.Amount)
		discounts = discounts.Add(group.Invoice.Discounts.Amount)
		subtotal = subtotal.Add(group.Invoice.Subtotal.Amount)
		taxes = taxes.Add(group.Invoice.Taxes.Amount)
		shippingCost = shippingCost.Add(group.Invoice.Shipping.Amount)
	}

	refundTotal, err := b.refundTotal(ctx, order.Payments)
	if err != nil {
		return OrderEmailData{}, err
	}

	userCurrency := shop.CurrencyCode
	rate := decimal.NewFromInt(1)
	var first *commerce.Payment
	if len(order.Payments) > 0 {
		first = &order.Payments[0]
		if cur := first.Currency; cur != nil {
			if cur.UserCurrency != "" {
				userCurrency = cur.UserCurrency
			}
			if !cur.ExchangeRate.IsZero() {
				rate = cur.ExchangeRate
			}
		}
	}
	lang := order.Language
	if lang == "" {
		lang = shop.Language
	}
	display := func(v decimal.Decimal) string {
		return money.Format(v.Mul(rate), userCurrency, lang)
	}

	data := OrderEmailData{
		Shop:          shop,
		ShopName:      shop.Name,
		ContactEmail:  shop.PrimaryEmail(),
		Homepage:      shop.StorefrontURLs.StorefrontHomeURL,
		CopyrightDate: b.now().Year(),
		Order:         Order{Order: order, IsCanceledOrder: order.IsCanceled()},
		OrderDate:     order.CreatedAt.Format("02.01.2006"),
		CombinedItems: combineItems(order.Shipping, display),
	}
	if len(shop.AddressBook) > 0 {
		head := shop.AddressBook[0]
		data.LegalName = head.Company
		data.PhysicalAddress = PhysicalAddress{Address: head.Address1, City: head.City, Postal: head.Postal}
	}

	head := order.Shipping[0]
	data.Shipping = Shipping{Address: b.emailAddress(head.Address), Tracking: head.Tracking}
	if head.ShipmentMethod != nil {
		data.Shipping.Carrier = head.ShipmentMethod.Carrier
	}

	billing := order.BillingAddress
	if billing == nil && first != nil {
		billing = first.Address
	}
	data.Billing = Billing{
		Address:       b.emailAddress(billing),
		Subtotal:      display(subtotal),
		Shipping:      display(shippingCost),
		Taxes:         display(taxes),
		Discounts:     display(discounts),
		Refunds:       display(refundTotal),
		Total:         display(subtotal.Add(shippingCost).Add(taxes).Sub(discounts)),
		AdjustedTotal: display(amount.Sub(refundTotal)),
		SantanderMin:  display(subtotal.Div(decimal.NewFromInt(48))),
		Payments:      make([]PaymentSummary, 0, len(order.Payments)),
	}
	if first != nil {
		flags, err := b.paymentFlags(ctx, order, *first)
		if err != nil {
			return OrderEmailData{}, err
		}
		for _, p := range order.Payments {
			summary := flags
			summary.DisplayName = p.DisplayName
			summary.DisplayAmount = display(p.Amount.Amount)
			data.Billing.Payments = append(data.Billing.Payments, summary)
		}
	}

	data.OrderURL, err = b.orderURL(ctx, shop, order)
	if err != nil {
		return OrderEmailData{}, err
	}

	if providers := b.Plugins.OrderEmailDataProviders(); len(providers) > 0 {
		custom, err := providers[0].OrderEmailData(ctx, order)
		if err != nil {
			return OrderEmailData{}, fmt.Errorf("email: custom order data: %w", err)
		}
		data.CustomData = custom
	}
	return data, nil
}

// refundTotal lists refunds of all payments concurrently. One failing
// lookup fails the whole build.
func (b *Builder) refundTotal(ctx context.Context, payments []commerce.Payment) (decimal.Decimal, error) {
	methods := make([]plugin.PaymentMethod, len(payments))
	for i, p := range payments {
		method, ok := b.Plugins.PaymentMethod(p.Name)
		if !ok {
			return decimal.Zero, fmt.Errorf("email: payment method %q not registered", p.Name)
		}
		methods[i] = method
	}
	totals := make([]decimal.Decimal, len(payments))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range payments {
		g.Go(func() error {
			refunds, err := methods[i].ListRefunds(gctx, p)
			if err != nil {
				return fmt.Errorf("email: list refunds of payment %s: %w", p.ID, err)
			}
			for _, r := range refunds {
				totals[i] = totals[i].Add(r.Amount.Amount)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum, nil
}

// paymentFlags derives the payment block flags from the first payment; every
// payment line of the email shares them.
func (b *Builder) paymentFlags(ctx context.Context, order commerce.Order, first commerce.Payment) (PaymentSummary, error) {
	flags := PaymentSummary{
		IsInAdvance:           first.Name == payment.MethodInAdvance,
		IsInSantanderManual:   first.Name == payment.MethodSantanderManual,
		IsInSantanderManualDe: first.Name == payment.MethodSantanderManualDE,
		IsCashpresso:          first.Name == payment.MethodCashpresso,
		IsKlarna:              first.Name == payment.MethodKlarna,
		IsCreated:             first.Status == commerce.PaymentStatusCreated,
		IsCompleted:           first.Status == commerce.PaymentStatusCompleted,
		IsFailed:              first.Status == commerce.PaymentStatusFailed,
		IsCanceled:            first.Status == commerce.PaymentStatusCanceled,
	}
	if flags.IsInAdvance || flags.IsInSantanderManual || flags.IsInSantanderManualDe {
		details, err := b.bankDetails(ctx, paymentShopID(order))
		if err != nil {
			return PaymentSummary{}, err
		}
		flags.BankDetails = details
	}
	if flags.IsCashpresso {
		details := &BankDetails{}
		if first.Data.Cashpresso != nil {
			details.URL = first.Data.Cashpresso.URL
		}
		flags.BankDetails = details
	}
	return flags, nil
}

func paymentShopID(order commerce.Order) string {
	if items := order.Shipping[0].Items; len(items) > 0 && items[0].ShopID != "" {
		return items[0].ShopID
	}
	return order.ShopID
}

func (b *Builder) bankDetails(ctx context.Context, shopID string) (*BankDetails, error) {
	shop, err := b.Shops.FindShop(ctx, store.ShopSelector{ID: shopID})
	if err != nil {
		return nil, fmt.Errorf("email: find payment shop %s: %w", shopID, err)
	}
	details := &BankDetails{
		BankName: shop.Metafield("bankName"),
		IBAN:     shop.Metafield("iban"),
		BIC:      shop.Metafield("bic"),
	}
	if len(shop.AddressBook) > 0 {
		a := shop.AddressBook[0]
		details.Company = a.Company
		details.Address1 = a.Address1
		details.Region = a.Region
		details.Postal = a.Postal
		details.City = a.City
		details.Country = a.Country
	}
	return details, nil
}

// orderURL fills the shop's order URL template. Headless shops without one
// get an empty URL.
func (b *Builder) orderURL(ctx context.Context, shop commerce.Shop, order commerce.Order) (string, error) {
	tmpl := shop.StorefrontURLs.StorefrontOrderURL
	if tmpl == "" {
		return "", nil
	}
	out := strings.ReplaceAll(tmpl, ":orderId", url.PathEscape(order.ReferenceID))
	token := ""
	if order.AccountID == nil && strings.Contains(out, ":token") {
		raw, err := common.RandomToken(32)
		if err != nil {
			return "", fmt.Errorf("email: order token: %w", err)
		}
		err = b.Orders.AddOrderAccessToken(ctx, order.ID, commerce.AccessToken{
			HashedToken: common.HashToken(raw),
			CreatedAt:   b.now().UTC(),
		})
		if err != nil {
			return "", fmt.Errorf("email: store order token: %w", err)
		}
		token = raw
	}
	return strings.ReplaceAll(out, ":token", url.PathEscape(token)), nil
}

func (b *Builder) emailAddress(a *commerce.Address) *Address {
	if a == nil {
		return nil
	}
	street := a.Address1
	if a.Address2 != "" {
		street += " " + a.Address2
	}
	return &Address{
		Honorific: b.sanitize(a.Honorific),
		FullName:  b.sanitize(a.FullName),
		FirstName: b.sanitize(a.FirstName),
		LastName:  b.sanitize(a.LastName),
		Company:   b.sanitize(a.Company),
		Phone:     b.sanitize(a.Phone),
		Address:   b.sanitize(street),
		City:      b.sanitize(a.City),
		Region:    b.sanitize(a.Region),
		Postal:    b.sanitize(a.Postal),
		Country:   b.sanitize(a.Country),
	}
}

// combineItems merges items of the same variant across groups, keeping the
// first occurrence and summing quantities.
func combineItems(groups []commerce.FulfillmentGroup, display func(decimal.Decimal) string) []Item {
	out := []Item{}
	index := map[string]int{}
	for _, group := range groups {
		for _, item := range group.Items {
			if i, ok := index[item.VariantID]; ok {
				out[i].Quantity += item.Quantity
				continue
			}
			index[item.VariantID] = len(out)
			out = append(out, Item{
				OrderItem:       item,
				DisplayPrice:    display(item.Price.Amount),
				DisplaySubtotal: display(item.Subtotal.Amount),
			})
		}
	}
	return out
}
