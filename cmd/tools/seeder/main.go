// Command seeder creates the primary shop and a small demo catalog in the
// configured store.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/catalog"
	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/config"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/inventory"
	"github.com/noah-isme/storefront-core/internal/money"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/shop"
	"github.com/noah-isme/storefront-core/internal/store"
	"github.com/noah-isme/storefront-core/internal/store/mongostore"
	"github.com/noah-isme/storefront-core/internal/store/pgstore"
)

type seedProduct struct {
	id       string
	title    string
	sku      string
	price    string
	stock    int
	bulky    bool
	variants []string
}

var demoCatalog = []seedProduct{
	{id: "demo-shirt", title: "Organic Shirt", sku: "SHIRT", price: "29.90", stock: 25, variants: []string{"S", "M", "L"}},
	{id: "demo-mug", title: "Enamel Mug", sku: "MUG", price: "12.50", stock: 100},
	{id: "demo-chair", title: "Lounge Chair", sku: "CHAIR", price: "349.00", stock: 4, bulky: true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.ServiceName, cfg.Obs.LogFormat, cfg.Obs.LogLevel).
		With().Str("component", "seeder").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := seed(ctx, cfg, db, redisClient, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Int("products", len(demoCatalog)).Msg("seed complete")
}

func seed(ctx context.Context, cfg *config.Config, db store.Store, rdb *redis.Client, logger zerolog.Logger) error {
	bus := events.NewBus(db)
	catalogSvc := &catalog.Service{
		Products: db,
		Cache:    catalog.NewCache(rdb, "catalog", cfg.CatalogCacheTTL),
		Logger:   logger,
	}
	inventorySvc := &inventory.Service{Inventory: db, Products: db, Catalog: catalogSvc, Bus: bus, Logger: logger}
	reg := &plugin.Registry{}
	reg.MustRegister(inventorySvc.Plugin())
	if err := reg.Startup(ctx, bus); err != nil {
		return err
	}

	shopSvc := &shop.Service{Shops: db, Bus: bus, Logger: logger}
	primary, err := shopSvc.PrimaryShop(ctx)
	switch {
	case err == nil:
		logger.Info().Str("shop_id", primary.ID).Msg("primary shop exists")
	case errors.Is(err, shop.ErrNotFound):
		primary, err = shopSvc.CreateShop(ctx, shop.CreateShopInput{
			Name:         "Demo Store",
			ShopType:     commerce.ShopTypePrimary,
			CurrencyCode: cfg.CurrencyCode,
			Language:     "en",
			Email:        "shop@example.com",
		})
		if err != nil {
			return err
		}
		logger.Info().Str("shop_id", primary.ID).Msg("primary shop created")
	default:
		return err
	}

	now := time.Now().UTC()
	var stock []inventory.StockUpdate
	for _, sp := range demoCatalog {
		price := money.New(decimal.RequireFromString(sp.price), primary.CurrencyCode)
		attrs := map[string]any{}
		if sp.bulky {
			attrs["bulky"] = true
		}
		parent := commerce.Product{
			ID:               sp.id,
			Type:             commerce.ProductTypeSimple,
			ShopID:           primary.ID,
			Title:            sp.title,
			SKU:              sp.sku,
			Price:            &price,
			MinOrderQuantity: 1,
			IsTaxable:        true,
			InventoryInStock: sp.stock > 0,
			Attributes:       attrs,
			IsVisible:        true,
			UpdatedAt:        now,
		}
		if err := db.SaveProduct(ctx, parent); err != nil {
			return err
		}
		variants := sp.variants
		if len(variants) == 0 {
			variants = []string{""}
		}
		for _, option := range variants {
			variantID := sp.id + "-default"
			if option != "" {
				variantID = sp.id + "-" + option
			}
			v := parent
			v.ID = variantID
			v.Type = commerce.ProductTypeVariant
			v.Ancestors = []string{sp.id}
			v.OptionTitle = option
			if option != "" {
				v.SKU = sp.sku + "-" + option
			}
			if err := db.SaveProduct(ctx, v); err != nil {
				return err
			}
			stock = append(stock, inventory.StockUpdate{
				ProductConfiguration: commerce.ProductConfiguration{ProductID: sp.id, VariantID: variantID},
				Quantity:             sp.stock,
			})
		}
	}
	return inventorySvc.UpdateStock(ctx, stock...)
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	case config.StorePostgres:
		return pgstore.Connect(ctx, cfg.DatabaseURL)
	default:
		return nil, errors.New("seeder needs STORE_DRIVER=mongo or postgres")
	}
}
