package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/storefront-core/internal/catalog"
	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/money"
)

// PriceLookup is the catalog collaborator consulted for every incoming item.
type PriceLookup interface {
	CurrentPriceAndRules(ctx context.Context, productID, variantID string) (catalog.Item, error)
}

// ItemInput is one item a client asks to add.
type ItemInput struct {
	ProductConfiguration commerce.ProductConfiguration `json:"productConfiguration"`
	Quantity             int                           `json:"quantity" validate:"gt=0"`
	Price                money.Money                   `json:"price"`
	Metafields           []commerce.Metafield          `json:"metafields,omitempty"`
}

// ItemFailure reports an incoming item that was not added.
type ItemFailure struct {
	ProductConfiguration commerce.ProductConfiguration `json:"productConfiguration"`
	Quantity             int                           `json:"quantity"`
	RequestedPrice       money.Money                   `json:"requestedPrice"`
	CurrentPrice         money.Money                   `json:"currentPrice"`
	MinOrderQuantity     int                           `json:"minOrderQuantity"`
}

// MergeOptions tunes MergeItems.
type MergeOptions struct {
	SkipPriceCheck bool
}

// MergeResult is the outcome of MergeItems. Items is always usable, even
// when some incoming items failed.
type MergeResult struct {
	Items                    []commerce.CartItem `json:"items"`
	IncorrectPriceFailures   []ItemFailure       `json:"incorrectPriceFailures"`
	MinOrderQuantityFailures []ItemFailure       `json:"minOrderQuantityFailures"`
}

// Merger merges incoming items into an item list.
type Merger struct {
	Catalog PriceLookup
	Now     func() time.Time
	NewID   func() string
}

func (m Merger) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m Merger) newID() string {
	if m.NewID != nil {
		return m.NewID()
	}
	return uuid.NewString()
}

// MergeItems validates every incoming item against the catalog and merges
// the accepted ones into current. Items sharing (productId, variantId) with
// an existing line increase its quantity; others are appended. Catalog
// lookups run concurrently and any lookup error fails the whole call.
func (m Merger) MergeItems(ctx context.Context, current []commerce.CartItem, incoming []ItemInput, opts MergeOptions) (MergeResult, error) {
	if m.Catalog == nil {
		return MergeResult{}, fmt.Errorf("cart: catalog not configured")
	}

	rules := make([]catalog.Item, len(incoming))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range incoming {
		g.Go(func() error {
			item, err := m.Catalog.CurrentPriceAndRules(gctx, in.ProductConfiguration.ProductID, in.ProductConfiguration.VariantID)
			if err != nil {
				return err
			}
			rules[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MergeResult{}, err
	}

	now := m.now()
	result := MergeResult{
		Items:                    append([]commerce.CartItem(nil), current...),
		IncorrectPriceFailures:   []ItemFailure{},
		MinOrderQuantityFailures: []ItemFailure{},
	}
	for i, in := range incoming {
		rule := rules[i]
		failure := ItemFailure{
			ProductConfiguration: in.ProductConfiguration,
			Quantity:             in.Quantity,
			RequestedPrice:       in.Price,
			CurrentPrice:         rule.Price,
			MinOrderQuantity:     rule.MinOrderQuantity,
		}
		if !opts.SkipPriceCheck && !in.Price.Equal(rule.Price) {
			result.IncorrectPriceFailures = append(result.IncorrectPriceFailures, failure)
			continue
		}

		idx := indexOf(result.Items, in.ProductConfiguration)
		quantity := in.Quantity
		if idx >= 0 {
			quantity += result.Items[idx].Quantity
		}
		if quantity < rule.MinOrderQuantity {
			result.MinOrderQuantityFailures = append(result.MinOrderQuantityFailures, failure)
			continue
		}

		if idx >= 0 {
			existing := result.Items[idx]
			existing.Quantity = quantity
			existing.Price = rule.Price
			existing.Subtotal = rule.Price.Mul(int64(quantity))
			existing.UpdatedAt = now
			result.Items[idx] = existing
			continue
		}
		result.Items = append(result.Items, commerce.CartItem{
			ID:             m.newID(),
			ProductID:      in.ProductConfiguration.ProductID,
			VariantID:      in.ProductConfiguration.VariantID,
			ShopID:         rule.ShopID,
			Title:          rule.Title,
			OptionTitle:    rule.OptionTitle,
			SKU:            rule.SKU,
			Quantity:       quantity,
			Price:          rule.Price,
			PriceWhenAdded: rule.Price,
			Subtotal:       rule.Price.Mul(int64(quantity)),
			IsTaxable:      rule.IsTaxable,
			TaxCode:        rule.TaxCode,
			Attributes:     append([]commerce.Attribute(nil), rule.Attributes...),
			Metafields:     in.Metafields,
			AddedAt:        now,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return result, nil
}

func indexOf(items []commerce.CartItem, pc commerce.ProductConfiguration) int {
	for i, item := range items {
		if item.ProductID == pc.ProductID && item.VariantID == pc.VariantID {
			return i
		}
	}
	return -1
}
