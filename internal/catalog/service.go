// Package catalog answers price, rule and media questions about products.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/store"
)

var (
	// ErrProductNotFound is returned when a product or variant does not exist.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrNoPrice is returned when neither the variant nor its product carries a price.
	ErrNoPrice = errors.New("catalog: no price")
)

// Item is the authoritative catalog view of one purchasable variant.
type Item struct {
	ProductID        string               `json:"productId"`
	VariantID        string               `json:"variantId"`
	ShopID           string               `json:"shopId"`
	Title            string               `json:"title"`
	OptionTitle      string               `json:"optionTitle,omitempty"`
	SKU              string               `json:"sku,omitempty"`
	Price            money.Money          `json:"price"`
	MinOrderQuantity int                  `json:"minOrderQuantity"`
	IsTaxable        bool                 `json:"isTaxable"`
	TaxCode          string               `json:"taxCode,omitempty"`
	Attributes       []commerce.Attribute `json:"attributes,omitempty"`
}

// Media is one image entry of a variant.
type Media struct {
	URLs      commerce.ImageURLs `json:"URLs"`
	ProductID string             `json:"productId"`
	VariantID string             `json:"variantId"`
	ToGrid    int                `json:"toGrid"`
	Priority  int                `json:"priority"`
}

// Service reads products through the store with a redis read-through cache.
type Service struct {
	Products store.Products
	Cache    *Cache
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CurrentPriceAndRules returns the current price and ordering rules of a variant.
func (s *Service) CurrentPriceAndRules(ctx context.Context, productID, variantID string) (Item, error) {
	ctx, span := otel.Tracer("catalog.Service").Start(ctx, "Service.CurrentPriceAndRules")
	defer span.End()

	cacheKey := s.Cache.key("price", productID, variantID)
	var cached Item
	if ok, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
		return cached, nil
	} else if err != nil {
		s.Logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog cache read failed")
	}

	item, err := s.lookup(ctx, productID, variantID)
	if err != nil {
		span.RecordError(err)
		return Item{}, err
	}
	if err := s.Cache.SetJSON(ctx, productID, cacheKey, item); err != nil {
		s.Logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog cache write failed")
	}
	return item, nil
}

func (s *Service) lookup(ctx context.Context, productID, variantID string) (Item, error) {
	found, err := s.Products.FindProducts(ctx, []string{productID, variantID})
	if err != nil {
		return Item{}, fmt.Errorf("catalog: find products: %w", err)
	}
	var product, variant *commerce.Product
	for i := range found {
		switch found[i].ID {
		case productID:
			product = &found[i]
		case variantID:
			variant = &found[i]
		}
	}
	if productID == variantID {
		variant = product
	}
	if product == nil || variant == nil || (variant != product && variant.ParentID() != productID) {
		notFound := common.NotFound("Product not found")
		notFound.Err = ErrProductNotFound
		return Item{}, notFound
	}

	price := variant.Price
	if price == nil {
		price = product.Price
	}
	if price == nil {
		return Item{}, fmt.Errorf("%w: variant %s", ErrNoPrice, variantID)
	}
	minQty := variant.MinOrderQuantity
	if minQty <= 0 {
		minQty = product.MinOrderQuantity
	}
	if minQty <= 0 {
		minQty = 1
	}
	title := product.Title
	if variant.Title != "" && variant != product {
		title = variant.Title
	}
	return Item{
		ProductID:        productID,
		VariantID:        variantID,
		ShopID:           product.ShopID,
		Title:            title,
		OptionTitle:      variant.OptionTitle,
		SKU:              variant.SKU,
		Price:            *price,
		MinOrderQuantity: minQty,
		IsTaxable:        variant.IsTaxable,
		TaxCode:          variant.TaxCode,
		Attributes:       ItemAttributes(*product, *variant),
	}, nil
}

// ItemAttributes flattens product then variant attributes into cart item
// attributes, variant values overriding product values, sorted by label.
func ItemAttributes(product, variant commerce.Product) []commerce.Attribute {
	merged := make(map[string]string, len(product.Attributes)+len(variant.Attributes))
	for k, v := range product.Attributes {
		merged[k] = fmt.Sprint(v)
	}
	for k, v := range variant.Attributes {
		merged[k] = fmt.Sprint(v)
	}
	if len(merged) == 0 {
		return nil
	}
	out := make([]commerce.Attribute, 0, len(merged))
	for k, v := range merged {
		out = append(out, commerce.Attribute{Label: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// FindProductMedia returns the media of a variant. Variant images win over
// product images; the result is empty when no original image exists. Lookup
// errors are logged and yield no media.
func (s *Service) FindProductMedia(ctx context.Context, variantID, productID string) []Media {
	found, err := s.Products.FindProducts(ctx, []string{variantID, productID})
	if err != nil {
		s.Logger.Error().Err(err).Str("variant_id", variantID).Msg("product media lookup failed")
		return []Media{}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Type > found[j].Type })

	media := Media{ProductID: productID, VariantID: variantID, Priority: 1}
	for _, p := range found {
		if media.URLs.Original != "" {
			break
		}
		if len(p.Images) == 0 {
			continue
		}
		img := p.Images[0]
		if img.Medium != "" {
			media.URLs.Medium = img.Medium
		}
		if img.Original != "" {
			media.URLs.Large = img.Original
			media.URLs.Original = img.Original
		}
		if img.Small != "" {
			media.URLs.Small = img.Small
		}
		if img.Thumbnail != "" {
			media.URLs.Thumbnail = img.Thumbnail
		}
	}
	if media.URLs.Original == "" {
		return []Media{}
	}
	return []Media{media}
}

// PartialProductPublish refreshes the published view of one product after a
// change of the given kind, dropping every cached entry of the product.
func (s *Service) PartialProductPublish(ctx context.Context, productID, trigger string) (err error) {
	ctx, span := otel.Tracer("catalog.Service").Start(ctx, "Service.PartialProductPublish")
	defer func() {
		obs.IncCounter(obs.CatalogPublishTotal, trigger, obs.ResultLabel(err))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	found, err := s.Products.FindProducts(ctx, []string{productID})
	if err != nil {
		return fmt.Errorf("catalog: publish %s: %w", productID, err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err := s.Cache.InvalidateGroup(ctx, productID); err != nil {
		return fmt.Errorf("catalog: invalidate %s: %w", productID, err)
	}
	snapshot := found[0]
	snapshot.UpdatedAt = s.now()
	if err := s.Cache.SetJSON(ctx, productID, s.Cache.key("product", productID), snapshot); err != nil {
		return fmt.Errorf("catalog: cache snapshot %s: %w", productID, err)
	}
	s.Logger.Debug().Str("product_id", productID).Str("trigger", trigger).Msg("product published")
	return nil
}
