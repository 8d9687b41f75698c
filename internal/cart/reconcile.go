package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/store"
)

// ReconcileMode picks which cart survives when a shopper with an anonymous
// cart signs in to an account that already has one.
type ReconcileMode string

// Reconcile modes.
const (
	KeepAnonymousCart ReconcileMode = "keepAnonymousCart"
	KeepAccountCart   ReconcileMode = "keepAccountCart"
	MergeCarts        ReconcileMode = "merge"
)

// ReconcileInput identifies the anonymous cart to reconcile into the
// account from ctx.
type ReconcileInput struct {
	AnonymousCartID string        `json:"anonymousCartId" validate:"required"`
	CartToken       string        `json:"cartToken" validate:"required"`
	Mode            ReconcileMode `json:"mode,omitempty" validate:"omitempty,oneof=keepAnonymousCart keepAccountCart merge"`
}

// ReconcileCarts moves an anonymous cart to the signed-in account. Without
// an account cart the anonymous cart is converted in place. Calls for the
// same account are serialised.
func (s *Service) ReconcileCarts(ctx context.Context, in ReconcileInput) (out commerce.Cart, err error) {
	ctx, span := otel.Tracer("cart.Service").Start(ctx, "Service.ReconcileCarts")
	defer func() {
		recordMutation(events.CartUpdateReconcile, err)
		span.End()
	}()

	accountID, ok := common.AccountID(ctx)
	if !ok {
		return commerce.Cart{}, common.AccessDenied("Access Denied")
	}
	if err := common.ValidateStruct(in); err != nil {
		return commerce.Cart{}, err
	}
	if in.Mode == "" {
		in.Mode = KeepAnonymousCart
	}

	run := func(ctx context.Context) error {
		out, err = s.reconcile(ctx, accountID, in)
		return err
	}
	if s.Locker == nil {
		err = run(ctx)
		return out, err
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if lockErr := s.Locker.WithLock(ctx, "cart-reconcile:"+accountID, ttl, run); lockErr != nil {
		return commerce.Cart{}, lockErr
	}
	return out, nil
}

func (s *Service) reconcile(ctx context.Context, accountID string, in ReconcileInput) (commerce.Cart, error) {
	anonSel := store.CartSelector{ID: in.AnonymousCartID, AnonymousAccessToken: common.HashToken(in.CartToken)}
	anonymous, err := s.Carts.FindCart(ctx, anonSel)
	if errors.Is(err, store.ErrNotFound) {
		return commerce.Cart{}, notFound()
	}
	if err != nil {
		return commerce.Cart{}, err
	}

	accountSel := store.CartSelector{AccountID: accountID, ShopID: anonymous.ShopID}
	accountCart, err := s.Carts.FindCart(ctx, accountSel)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.commit(ctx, s.claim(anonymous, accountID), events.CartUpdateReconcile)
	case err != nil:
		return commerce.Cart{}, err
	}

	switch in.Mode {
	case KeepAccountCart:
		if err := s.Carts.DeleteCart(ctx, anonSel); err != nil {
			return commerce.Cart{}, fmt.Errorf("cart: delete anonymous cart: %w", err)
		}
		return accountCart, nil

	case MergeCarts:
		incoming := make([]ItemInput, 0, len(anonymous.Items))
		for _, item := range anonymous.Items {
			incoming = append(incoming, ItemInput{
				ProductConfiguration: commerce.ProductConfiguration{ProductID: item.ProductID, VariantID: item.VariantID},
				Quantity:             item.Quantity,
				Price:                item.Price,
				Metafields:           item.Metafields,
			})
		}
		merged, err := s.merger().MergeItems(ctx, accountCart.Items, incoming, MergeOptions{SkipPriceCheck: true})
		if err != nil {
			return commerce.Cart{}, err
		}
		if n := len(merged.MinOrderQuantityFailures); n > 0 {
			s.Logger.Warn().Int("dropped", n).Str("cart_id", accountCart.ID).Msg("items below minimum quantity dropped during merge")
		}
		accountCart.Items = merged.Items
		syncFulfillmentGroups(&accountCart, s.newID)
		accountCart.UpdatedAt = s.now()
		saved, err := s.commit(ctx, accountCart, events.CartUpdateReconcile)
		if err != nil {
			return commerce.Cart{}, err
		}
		s.dropReplaced(ctx, anonSel, saved.ID)
		return saved, nil

	default:
		saved, err := s.commit(ctx, s.claim(anonymous, accountID), events.CartUpdateReconcile)
		if err != nil {
			return commerce.Cart{}, err
		}
		s.dropReplaced(ctx, store.CartSelector{ID: accountCart.ID, AccountID: accountID}, saved.ID)
		return saved, nil
	}
}

// dropReplaced deletes the cart that lost a reconcile. The surviving cart is
// already committed, so a failed delete is only logged.
func (s *Service) dropReplaced(ctx context.Context, sel store.CartSelector, keptID string) {
	if err := s.Carts.DeleteCart(ctx, sel); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.Logger.Error().Err(err).Str("cart_id", sel.ID).Str("kept_cart_id", keptID).Msg("delete replaced cart failed")
	}
}

// claim hands an anonymous cart over to accountID.
func (s *Service) claim(cart commerce.Cart, accountID string) commerce.Cart {
	cart.AccountID = &accountID
	cart.AnonymousAccessToken = nil
	cart.UpdatedAt = s.now()
	return cart
}
