// Package shop answers shop queries and creates shops.
package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/store"
)

// ErrNotFound is wrapped by the not-found errors of this package.
var ErrNotFound = errors.New("shop not found")

// Service reads and creates shops.
type Service struct {
	Shops  store.Shops
	Bus    *events.Bus
	Logger zerolog.Logger
	Now    func() time.Time
	NewID  func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) find(ctx context.Context, sel store.ShopSelector) (commerce.Shop, error) {
	shop, err := s.Shops.FindShop(ctx, sel)
	if errors.Is(err, store.ErrNotFound) {
		appErr := common.NotFound("Shop not found")
		appErr.Err = ErrNotFound
		return commerce.Shop{}, appErr
	}
	if err != nil {
		return commerce.Shop{}, fmt.Errorf("shop: find: %w", err)
	}
	return shop, nil
}

// ShopByID returns the shop with the given id.
func (s *Service) ShopByID(ctx context.Context, id string) (commerce.Shop, error) {
	if id == "" {
		return commerce.Shop{}, common.InvalidParam("shopId is required")
	}
	return s.find(ctx, store.ShopSelector{ID: id})
}

// ShopBySlug returns the shop with the given slug.
func (s *Service) ShopBySlug(ctx context.Context, slug string) (commerce.Shop, error) {
	if slug == "" {
		return commerce.Shop{}, common.InvalidParam("slug is required")
	}
	return s.find(ctx, store.ShopSelector{Slug: slug})
}

// PrimaryShop returns the shop of type primary.
func (s *Service) PrimaryShop(ctx context.Context) (commerce.Shop, error) {
	return s.find(ctx, store.ShopSelector{ShopType: commerce.ShopTypePrimary})
}

// CreateShopInput describes a new shop. Slug defaults to the slugified name.
type CreateShopInput struct {
	Name         string `json:"name" validate:"required,max=120"`
	Slug         string `json:"slug,omitempty" validate:"omitempty,max=120"`
	ShopType     string `json:"shopType,omitempty"`
	CurrencyCode string `json:"currencyCode" validate:"required,len=3"`
	Language     string `json:"language,omitempty"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

// CreateShop saves a new shop and emits afterShopCreate. Slugs are unique.
func (s *Service) CreateShop(ctx context.Context, in CreateShopInput) (commerce.Shop, error) {
	if err := common.ValidateStruct(in); err != nil {
		return commerce.Shop{}, err
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return commerce.Shop{}, common.InvalidParam("shop name must contain letters or digits")
	}
	if _, err := s.Shops.FindShop(ctx, store.ShopSelector{Slug: slug}); err == nil {
		return commerce.Shop{}, common.Conflict("Shop slug already in use", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return commerce.Shop{}, err
	}

	id := uuid.NewString()
	if s.NewID != nil {
		id = s.NewID()
	}
	now := s.now()
	shop := commerce.Shop{
		ID:           id,
		Name:         in.Name,
		Slug:         slug,
		ShopType:     in.ShopType,
		CurrencyCode: strings.ToUpper(in.CurrencyCode),
		Language:     in.Language,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Email != "" {
		shop.Emails = []commerce.Email{{Address: in.Email, Provides: "default"}}
	}
	saved, err := s.Shops.SaveShop(ctx, shop)
	if err != nil {
		return commerce.Shop{}, fmt.Errorf("shop: save: %w", err)
	}
	if s.Bus != nil {
		if err := s.Bus.EmitShopCreated(ctx, events.ShopCreated{Shop: saved}); err != nil {
			return commerce.Shop{}, err
		}
	}
	s.Logger.Info().Str("shop_id", saved.ID).Str("slug", saved.Slug).Msg("shop created")
	return saved, nil
}

// Slugify lower-cases s, strips diacritics and joins words with dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}
