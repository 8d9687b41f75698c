// Package cart merges items into carts and runs the cart mutations: create,
// add items, set shipping address, reconcile and recalculate.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/fulfillment"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/store"
)

// ErrNotFound indicates the requested cart could not be located or the
// caller could not prove ownership. The two cases are not distinguished.
var ErrNotFound = errors.New("cart not found")

// Locker serialises critical sections per key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service runs cart mutations. Each mutation loads the cart, transforms it
// in memory, saves the whole document and emits afterCartUpdate.
type Service struct {
	Carts        store.Carts
	Catalog      PriceLookup
	Bus          *events.Bus
	Plugins      *plugin.Registry
	Totals       *fulfillment.Calculator
	Locker       Locker
	LockTTL      time.Duration
	CurrencyCode string
	Logger       zerolog.Logger
	Now          func() time.Time
	NewID        func() string
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

func (s *Service) merger() Merger {
	return Merger{Catalog: s.Catalog, Now: s.Now, NewID: s.NewID}
}

func notFound() error {
	appErr := common.NotFound("Cart not found")
	appErr.Err = ErrNotFound
	return appErr
}

// ownerSelector builds the selector proving ownership of cartID: the
// account id from ctx, otherwise the hashed anonymous token.
func ownerSelector(ctx context.Context, cartID, token string) (store.CartSelector, bool) {
	if accountID, ok := common.AccountID(ctx); ok {
		return store.CartSelector{ID: cartID, AccountID: accountID}, true
	}
	if token == "" {
		return store.CartSelector{}, false
	}
	return store.CartSelector{ID: cartID, AnonymousAccessToken: common.HashToken(token)}, true
}

func (s *Service) findOwned(ctx context.Context, cartID, token string) (commerce.Cart, error) {
	sel, ok := ownerSelector(ctx, cartID, token)
	if !ok {
		return commerce.Cart{}, notFound()
	}
	cart, err := s.Carts.FindCart(ctx, sel)
	if errors.Is(err, store.ErrNotFound) {
		s.Logger.Error().
			Str("cart_id", cartID).
			Bool("by_account", sel.AccountID != "").
			Bool("by_token", sel.AnonymousAccessToken != "").
			Msg("cart not found")
		return commerce.Cart{}, notFound()
	}
	if err != nil {
		return commerce.Cart{}, fmt.Errorf("cart: find %s: %w", cartID, err)
	}
	return cart, nil
}

// saveCart validates the document and persists it with a version check.
func (s *Service) saveCart(ctx context.Context, cart commerce.Cart) (commerce.Cart, error) {
	if err := validateCart(cart); err != nil {
		return commerce.Cart{}, err
	}
	saved, err := s.Carts.SaveCart(ctx, cart)
	if errors.Is(err, store.ErrVersionConflict) {
		return commerce.Cart{}, common.Conflict("Cart was modified concurrently, retry the request", err)
	}
	if err != nil {
		return commerce.Cart{}, fmt.Errorf("cart: save %s: %w", cart.ID, err)
	}
	return saved, nil
}

func validateCart(cart commerce.Cart) error {
	if strings.TrimSpace(cart.ID) == "" {
		return common.ValidationFailed("cart id is required", nil, nil)
	}
	hasAccount := cart.AccountID != nil && *cart.AccountID != ""
	hasToken := cart.AnonymousAccessToken != nil && *cart.AnonymousAccessToken != ""
	if hasAccount == hasToken {
		return common.ValidationFailed("cart must have exactly one owner", nil, nil)
	}
	for _, item := range cart.Items {
		if item.Quantity < 0 {
			return common.ValidationFailed("item quantity must not be negative", nil, []common.FieldError{{Field: "items.quantity", Rule: "min"}})
		}
		if cart.CurrencyCode != "" && item.Price.CurrencyCode != cart.CurrencyCode {
			return common.ValidationFailed("item currency does not match cart currency", nil, []common.FieldError{{Field: "items.price.currencyCode", Rule: "eq"}})
		}
	}
	return nil
}

// commit saves cart, emits afterCartUpdate and returns the stored document.
func (s *Service) commit(ctx context.Context, cart commerce.Cart, updateType string) (commerce.Cart, error) {
	saved, err := s.saveCart(ctx, cart)
	if err != nil {
		return commerce.Cart{}, err
	}
	if s.Bus != nil {
		if err := s.Bus.EmitCartUpdated(ctx, events.CartUpdated{Cart: saved, Type: updateType}); err != nil {
			return commerce.Cart{}, err
		}
	}
	reloaded, err := s.Carts.FindCart(ctx, store.CartSelector{ID: saved.ID})
	if err != nil {
		return commerce.Cart{}, fmt.Errorf("cart: reload %s: %w", saved.ID, err)
	}
	return reloaded, nil
}

func recordMutation(kind string, err error) {
	obs.IncCounter(obs.CartMutationsTotal, kind, obs.ResultLabel(err))
}

// CreateCartInput creates a cart with its first items.
type CreateCartInput struct {
	ShopID string      `json:"shopId" validate:"required"`
	Items  []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreateCartResult carries the new cart. Token is the raw anonymous access
// token and is only returned here.
type CreateCartResult struct {
	Cart                     commerce.Cart `json:"cart"`
	Token                    string        `json:"token,omitempty"`
	IncorrectPriceFailures   []ItemFailure `json:"incorrectPriceFailures"`
	MinOrderQuantityFailures []ItemFailure `json:"minOrderQuantityFailures"`
}

// CreateCart creates an account cart when ctx carries an account id and an
// anonymous cart otherwise.
func (s *Service) CreateCart(ctx context.Context, in CreateCartInput) (res CreateCartResult, err error) {
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "Service.CreateCart")
	defer func() {
		recordMutation(events.CartUpdateCreate, err)
		span.End()
	}()
	if err := common.ValidateStruct(in); err != nil {
		return CreateCartResult{}, err
	}

	now := s.now()
	cart := commerce.Cart{
		ID:           s.newID(),
		ShopID:       in.ShopID,
		CurrencyCode: s.CurrencyCode,
		Workflow:     commerce.Workflow{Status: "new"},
		Language:     common.Language(ctx, ""),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if accountID, ok := common.AccountID(ctx); ok {
		if _, err := s.Carts.FindCart(ctx, store.CartSelector{AccountID: accountID, ShopID: in.ShopID}); err == nil {
			return CreateCartResult{}, common.Conflict("Account already has a cart for this shop", nil)
		} else if !errors.Is(err, store.ErrNotFound) {
			return CreateCartResult{}, err
		}
		cart.AccountID = &accountID
	} else {
		token, err := common.RandomToken(24)
		if err != nil {
			return CreateCartResult{}, err
		}
		hashed := common.HashToken(token)
		cart.AnonymousAccessToken = &hashed
		res.Token = token
	}

	merged, err := s.merger().MergeItems(ctx, nil, in.Items, MergeOptions{})
	if err != nil {
		return CreateCartResult{}, err
	}
	s.countFailures(merged)
	cart.Items = merged.Items
	if cart.CurrencyCode == "" && len(cart.Items) > 0 {
		cart.CurrencyCode = cart.Items[0].Price.CurrencyCode
	}
	syncFulfillmentGroups(&cart, s.newID)

	saved, err := s.commit(ctx, cart, events.CartUpdateCreate)
	if err != nil {
		return CreateCartResult{}, err
	}
	res.Cart = saved
	res.IncorrectPriceFailures = merged.IncorrectPriceFailures
	res.MinOrderQuantityFailures = merged.MinOrderQuantityFailures
	return res, nil
}

// AddCartItemsInput adds items to an existing cart. Token proves ownership
// of anonymous carts.
type AddCartItemsInput struct {
	CartID string      `json:"cartId" validate:"required"`
	Items  []ItemInput `json:"items" validate:"required,min=1,dive"`
	Token  string      `json:"token,omitempty"`
}

// AddCartItemsOptions tunes AddCartItems.
type AddCartItemsOptions struct {
	SkipPriceCheck bool
}

// AddCartItemsResult always carries the full updated cart; the failure lists
// name items the caller may retry with a corrected price or quantity.
type AddCartItemsResult struct {
	Cart                     commerce.Cart `json:"cart"`
	IncorrectPriceFailures   []ItemFailure `json:"incorrectPriceFailures"`
	MinOrderQuantityFailures []ItemFailure `json:"minOrderQuantityFailures"`
}

// AddCartItems merges items into the cart and persists the result even when
// some items failed their price or quantity checks.
func (s *Service) AddCartItems(ctx context.Context, in AddCartItemsInput, opts AddCartItemsOptions) (res AddCartItemsResult, err error) {
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "Service.AddCartItems")
	defer func() {
		recordMutation(events.CartUpdateAddItem, err)
		span.End()
	}()

	cart, err := s.findOwned(ctx, in.CartID, in.Token)
	if err != nil {
		return AddCartItemsResult{}, err
	}
	if err := common.ValidateStruct(in); err != nil {
		return AddCartItemsResult{}, err
	}

	merged, err := s.merger().MergeItems(ctx, cart.Items, in.Items, MergeOptions{SkipPriceCheck: opts.SkipPriceCheck})
	if err != nil {
		return AddCartItemsResult{}, err
	}
	s.countFailures(merged)

	cart.Items = merged.Items
	if cart.CurrencyCode == "" && len(cart.Items) > 0 {
		cart.CurrencyCode = cart.Items[0].Price.CurrencyCode
	}
	syncFulfillmentGroups(&cart, s.newID)
	cart.UpdatedAt = s.now()

	saved, err := s.commit(ctx, cart, events.CartUpdateAddItem)
	if err != nil {
		return AddCartItemsResult{}, err
	}
	return AddCartItemsResult{
		Cart:                     saved,
		IncorrectPriceFailures:   merged.IncorrectPriceFailures,
		MinOrderQuantityFailures: merged.MinOrderQuantityFailures,
	}, nil
}

func (s *Service) countFailures(res MergeResult) {
	obs.AddCounter(obs.CartItemFailuresTotal, len(res.IncorrectPriceFailures), "price_mismatch")
	obs.AddCounter(obs.CartItemFailuresTotal, len(res.MinOrderQuantityFailures), "min_quantity")
}

// SetShippingAddressInput replaces the address on every shipping group.
type SetShippingAddressInput struct {
	CartID    string           `json:"cartId" validate:"required"`
	CartToken string           `json:"cartToken,omitempty"`
	Address   commerce.Address `json:"address"`
	AddressID string           `json:"addressId,omitempty"`
}

// SetShippingAddressOnCart sets the address of every shipping group and
// clears their selected shipment method, which depends on the destination.
// A cart without shipping groups is returned unchanged.
func (s *Service) SetShippingAddressOnCart(ctx context.Context, in SetShippingAddressInput) (out commerce.Cart, err error) {
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "Service.SetShippingAddressOnCart")
	defer func() {
		recordMutation(events.CartUpdateSetShippingAddress, err)
		span.End()
	}()
	if err := common.ValidateStruct(in); err != nil {
		return commerce.Cart{}, err
	}

	address := in.Address
	address.ID = in.AddressID
	if address.ID == "" {
		address.ID = s.newID()
	}

	cart, err := s.GetCartByID(ctx, in.CartID, GetCartOptions{CartToken: in.CartToken, ThrowIfNotFound: true})
	if err != nil {
		return commerce.Cart{}, err
	}

	modified := false
	for i := range cart.Shipping {
		group := &cart.Shipping[i]
		if group.Type != commerce.FulfillmentShipping {
			continue
		}
		addr := address
		group.Address = &addr
		group.ShipmentMethod = nil
		modified = true
	}
	if !modified {
		return *cart, nil
	}
	cart.UpdatedAt = s.now()
	return s.commit(ctx, *cart, events.CartUpdateSetShippingAddress)
}

// GetCartOptions tunes GetCartByID.
type GetCartOptions struct {
	CartToken       string
	ThrowIfNotFound bool
}

// GetCartByID loads a cart the caller may access. A nil cart without error
// means not found and ThrowIfNotFound was false. Account carts owned by
// another account are rejected with access-denied.
func (s *Service) GetCartByID(ctx context.Context, cartID string, opts GetCartOptions) (*commerce.Cart, error) {
	if cartID == "" {
		return nil, common.InvalidParam("cartId is required")
	}
	accountID, hasAccount := common.AccountID(ctx)
	var sel store.CartSelector
	switch {
	case opts.CartToken != "":
		sel = store.CartSelector{ID: cartID, AnonymousAccessToken: common.HashToken(opts.CartToken)}
	case hasAccount:
		sel = store.CartSelector{ID: cartID, AccountID: accountID}
	}

	var (
		cart commerce.Cart
		err  error = store.ErrNotFound
	)
	if !sel.IsEmpty() {
		cart, err = s.Carts.FindCart(ctx, sel)
	}
	if errors.Is(err, store.ErrNotFound) {
		if opts.ThrowIfNotFound {
			return nil, notFound()
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: find %s: %w", cartID, err)
	}
	if !cart.IsAnonymous() && (!hasAccount || *cart.AccountID != accountID) {
		return nil, common.AccessDenied("Access Denied")
	}
	return &cart, nil
}

// AnonymousCartQuery looks up an anonymous cart.
type AnonymousCartQuery struct {
	CartID   string
	Token    string
	Language string
}

// AnonymousCartByCartID returns an anonymous cart after running every
// registered cart transform with the requested language.
func (s *Service) AnonymousCartByCartID(ctx context.Context, q AnonymousCartQuery) (commerce.Cart, error) {
	if q.CartID == "" {
		return commerce.Cart{}, common.InvalidParam("You must provide a cartId")
	}
	if q.Token == "" {
		return commerce.Cart{}, notFound()
	}
	cart, err := s.Carts.FindCart(ctx, store.CartSelector{ID: q.CartID, AnonymousAccessToken: common.HashToken(q.Token)})
	if errors.Is(err, store.ErrNotFound) {
		return commerce.Cart{}, notFound()
	}
	if err != nil {
		return commerce.Cart{}, err
	}
	language := q.Language
	if language == "" {
		language = common.Language(ctx, cart.Language)
	}
	if s.Plugins != nil {
		for _, xf := range s.Plugins.CartTransforms() {
			if err := xf.TransformCart(ctx, &cart, language); err != nil {
				return commerce.Cart{}, err
			}
		}
	}
	return cart, nil
}
