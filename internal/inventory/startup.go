// Package inventory keeps product stock flags in step with variant
// inventory records and republishes affected products.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/store"
)

// PublishTrigger is passed to the publisher for inventory-driven publishes.
const PublishTrigger = "inventory"

// Publisher refreshes the published view of a product.
type Publisher interface {
	PartialProductPublish(ctx context.Context, productID, trigger string) error
}

// Service updates stock records and reacts to inventory events.
type Service struct {
	Inventory store.Inventory
	Products  store.Products
	Catalog   Publisher
	Bus       *events.Bus
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Plugin registers the inventory listeners at startup.
func (s *Service) Plugin() plugin.Plugin {
	return plugin.Plugin{Name: "inventory", Startup: []plugin.StartupFunc{s.Startup}}
}

// Startup subscribes to afterInventoryUpdate and afterBulkInventoryUpdate.
func (s *Service) Startup(_ context.Context, bus *events.Bus) error {
	if bus == nil {
		return fmt.Errorf("inventory: event bus is required")
	}
	bus.OnInventoryUpdated(s.afterInventoryUpdate)
	bus.OnBulkInventoryUpdated(s.afterBulkInventoryUpdate)
	return nil
}

func (s *Service) afterInventoryUpdate(ctx context.Context, ev events.InventoryUpdated) error {
	ctx, span := otel.Tracer("inventory.Service").Start(ctx, "Service.afterInventoryUpdate")
	defer span.End()

	pc := ev.ProductConfiguration
	rec, err := s.Inventory.FindInventory(ctx, pc.VariantID)
	if err != nil {
		return fmt.Errorf("inventory: find %s: %w", pc.VariantID, err)
	}
	if err := s.Products.SetInventoryInStock(ctx, pc.ProductID, rec.InventoryInStock); err != nil {
		return fmt.Errorf("inventory: set in-stock flag on %s: %w", pc.ProductID, err)
	}
	return s.Catalog.PartialProductPublish(ctx, pc.ProductID, PublishTrigger)
}

// afterBulkInventoryUpdate publishes every affected product once.
func (s *Service) afterBulkInventoryUpdate(ctx context.Context, ev events.BulkInventoryUpdated) error {
	ctx, span := otel.Tracer("inventory.Service").Start(ctx, "Service.afterBulkInventoryUpdate")
	defer span.End()

	for _, productID := range uniqueProductIDs(ev.ProductConfigurations) {
		if err := s.Catalog.PartialProductPublish(ctx, productID, PublishTrigger); err != nil {
			return err
		}
	}
	return nil
}

func uniqueProductIDs(pcs []commerce.ProductConfiguration) []string {
	seen := make(map[string]struct{}, len(pcs))
	out := make([]string, 0, len(pcs))
	for _, pc := range pcs {
		if _, ok := seen[pc.ProductID]; ok {
			continue
		}
		seen[pc.ProductID] = struct{}{}
		out = append(out, pc.ProductID)
	}
	return out
}

// StockUpdate sets the sellable quantity of one variant.
type StockUpdate struct {
	ProductConfiguration commerce.ProductConfiguration `json:"productConfiguration"`
	Quantity             int                           `json:"quantity" validate:"gte=0"`
}

// UpdateStock saves the given stock levels and emits afterInventoryUpdate
// for a single update or afterBulkInventoryUpdate for several.
func (s *Service) UpdateStock(ctx context.Context, updates ...StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	now := s.now()
	pcs := make([]commerce.ProductConfiguration, 0, len(updates))
	for _, u := range updates {
		if u.Quantity < 0 {
			return fmt.Errorf("inventory: negative quantity for %s", u.ProductConfiguration.VariantID)
		}
		rec := commerce.InventoryRecord{
			ProductID:        u.ProductConfiguration.ProductID,
			VariantID:        u.ProductConfiguration.VariantID,
			InventoryInStock: u.Quantity > 0,
			Quantity:         u.Quantity,
			UpdatedAt:        now,
		}
		if err := s.Inventory.SaveInventory(ctx, rec); err != nil {
			return fmt.Errorf("inventory: save %s: %w", rec.VariantID, err)
		}
		pcs = append(pcs, u.ProductConfiguration)
	}
	if s.Bus == nil {
		return nil
	}
	if len(pcs) == 1 {
		return s.Bus.EmitInventoryUpdated(ctx, events.InventoryUpdated{ProductConfiguration: pcs[0]})
	}
	return s.Bus.EmitBulkInventoryUpdated(ctx, events.BulkInventoryUpdated{ProductConfigurations: pcs})
}
