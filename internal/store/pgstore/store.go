// Package pgstore implements store.Store on Postgres, keeping each document
// as JSONB next to the columns its lookups filter on.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/store"
)

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
	db   execQuerier
}

// Connect opens a traced pool, applies migrations and returns the store.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements store.Store.
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// RecordEvent implements events.Recorder.
func (s *Store) RecordEvent(ctx context.Context, rec events.Record) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO domain_events (topic, payload, occurred_at) VALUES ($1, $2, $3)`,
		string(rec.Topic), rec.Payload, rec.OccurredAt)
	return err
}

func getDoc[T any](ctx context.Context, db execQuerier, query string, args ...any) (T, error) {
	var (
		out T
		raw []byte
	)
	if err := db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, store.ErrNotFound
		}
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("pgstore: decode document: %w", err)
	}
	return out, nil
}

// cartWhere renders the WHERE clause for a selector starting at placeholder $1.
func cartWhere(sel store.CartSelector) (string, []any, error) {
	if sel.IsEmpty() {
		return "", nil, store.ErrNotFound
	}
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	add("id", sel.ID)
	add("account_id", sel.AccountID)
	add("anonymous_access_token", sel.AnonymousAccessToken)
	add("shop_id", sel.ShopID)
	return strings.Join(clauses, " AND "), args, nil
}

func shopWhere(sel store.ShopSelector) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, column+" = $"+strconv.Itoa(len(args)))
	}
	add("id", sel.ID)
	add("slug", sel.Slug)
	add("shop_type", sel.ShopType)
	if len(clauses) == 0 {
		return "", nil, store.ErrNotFound
	}
	return strings.Join(clauses, " AND "), args, nil
}

func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// FindCart implements store.Carts.
func (s *Store) FindCart(ctx context.Context, sel store.CartSelector) (commerce.Cart, error) {
	where, args, err := cartWhere(sel)
	if err != nil {
		return commerce.Cart{}, err
	}
	return getDoc[commerce.Cart](ctx, s.db, `SELECT doc FROM carts WHERE `+where+` LIMIT 1`, args...)
}

// SaveCart implements store.Carts.
func (s *Store) SaveCart(ctx context.Context, cart commerce.Cart) (commerce.Cart, error) {
	expected := cart.Version
	cart.Version++
	doc, err := json.Marshal(cart)
	if err != nil {
		return commerce.Cart{}, fmt.Errorf("pgstore: encode cart: %w", err)
	}
	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = s.db.Exec(ctx, `
			INSERT INTO carts (id, shop_id, account_id, anonymous_access_token, version, doc, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (id) DO NOTHING`,
			cart.ID, cart.ShopID, nullable(cart.AccountID), nullable(cart.AnonymousAccessToken), cart.Version, doc)
	} else {
		tag, err = s.db.Exec(ctx, `
			UPDATE carts
			SET shop_id = $2, account_id = $3, anonymous_access_token = $4, version = $5, doc = $6, updated_at = now()
			WHERE id = $1 AND version = $7`,
			cart.ID, cart.ShopID, nullable(cart.AccountID), nullable(cart.AnonymousAccessToken), cart.Version, doc, expected)
	}
	if err != nil {
		return commerce.Cart{}, fmt.Errorf("pgstore: save cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return commerce.Cart{}, fmt.Errorf("%w: cart %s", store.ErrVersionConflict, cart.ID)
	}
	return cart, nil
}

// DeleteCart implements store.Carts.
func (s *Store) DeleteCart(ctx context.Context, sel store.CartSelector) error {
	where, args, err := cartWhere(sel)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM carts WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("pgstore: delete cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindOrder implements store.Orders.
func (s *Store) FindOrder(ctx context.Context, id string) (commerce.Order, error) {
	return getDoc[commerce.Order](ctx, s.db, `SELECT doc FROM orders WHERE id = $1`, id)
}

// SaveOrder implements store.Orders.
func (s *Store) SaveOrder(ctx context.Context, order commerce.Order) (commerce.Order, error) {
	expected := order.Version
	order.Version++
	doc, err := json.Marshal(order)
	if err != nil {
		return commerce.Order{}, fmt.Errorf("pgstore: encode order: %w", err)
	}
	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = s.db.Exec(ctx, `
			INSERT INTO orders (id, shop_id, version, doc, updated_at) VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (id) DO NOTHING`, order.ID, order.ShopID, order.Version, doc)
	} else {
		tag, err = s.db.Exec(ctx, `
			UPDATE orders SET version = $2, doc = $3, updated_at = now() WHERE id = $1 AND version = $4`,
			order.ID, order.Version, doc, expected)
	}
	if err != nil {
		return commerce.Order{}, fmt.Errorf("pgstore: save order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return commerce.Order{}, fmt.Errorf("%w: order %s", store.ErrVersionConflict, order.ID)
	}
	return order, nil
}

// AddOrderAccessToken implements store.Orders.
func (s *Store) AddOrderAccessToken(ctx context.Context, orderID string, token commerce.AccessToken) error {
	raw, err := json.Marshal([]commerce.AccessToken{token})
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET doc = jsonb_set(doc, '{anonymousAccessTokens}', COALESCE(doc->'anonymousAccessTokens', '[]'::jsonb) || $2::jsonb)
		WHERE id = $1`, orderID, raw)
	if err != nil {
		return fmt.Errorf("pgstore: add order token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindShop implements store.Shops.
func (s *Store) FindShop(ctx context.Context, sel store.ShopSelector) (commerce.Shop, error) {
	where, args, err := shopWhere(sel)
	if err != nil {
		return commerce.Shop{}, err
	}
	return getDoc[commerce.Shop](ctx, s.db, `SELECT doc FROM shops WHERE `+where+` LIMIT 1`, args...)
}

// SaveShop implements store.Shops.
func (s *Store) SaveShop(ctx context.Context, shop commerce.Shop) (commerce.Shop, error) {
	doc, err := json.Marshal(shop)
	if err != nil {
		return commerce.Shop{}, err
	}
	slug := shop.Slug
	_, err = s.db.Exec(ctx, `
		INSERT INTO shops (id, slug, shop_type, doc) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, shop_type = EXCLUDED.shop_type, doc = EXCLUDED.doc`,
		shop.ID, nullable(&slug), shop.ShopType, doc)
	if err != nil {
		return commerce.Shop{}, fmt.Errorf("pgstore: save shop: %w", err)
	}
	return shop, nil
}

// FindProducts implements store.Products.
func (s *Store) FindProducts(ctx context.Context, ids []string) ([]commerce.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT doc FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("pgstore: find products: %w", err)
	}
	defer rows.Close()
	var out []commerce.Product
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p commerce.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("pgstore: decode product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProduct implements store.Products.
func (s *Store) SaveProduct(ctx context.Context, product commerce.Product) error {
	doc, err := json.Marshal(product)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO products (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`, product.ID, doc)
	return err
}

// SetInventoryInStock implements store.Products.
func (s *Store) SetInventoryInStock(ctx context.Context, productID string, inStock bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE products SET doc = jsonb_set(doc, '{inventoryInStock}', to_jsonb($2::boolean)) WHERE id = $1`,
		productID, inStock)
	if err != nil {
		return fmt.Errorf("pgstore: update stock flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindInventory implements store.Inventory.
func (s *Store) FindInventory(ctx context.Context, variantID string) (commerce.InventoryRecord, error) {
	return getDoc[commerce.InventoryRecord](ctx, s.db, `SELECT doc FROM inventory WHERE variant_id = $1`, variantID)
}

// SaveInventory implements store.Inventory.
func (s *Store) SaveInventory(ctx context.Context, rec commerce.InventoryRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO inventory (variant_id, product_id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (variant_id) DO UPDATE SET product_id = EXCLUDED.product_id, doc = EXCLUDED.doc`,
		rec.VariantID, rec.ProductID, doc)
	return err
}

// FindAccount implements store.Accounts.
func (s *Store) FindAccount(ctx context.Context, id string) (commerce.Account, error) {
	return getDoc[commerce.Account](ctx, s.db, `SELECT doc FROM accounts WHERE id = $1`, id)
}

// SaveAccount implements store.Accounts.
func (s *Store) SaveAccount(ctx context.Context, account commerce.Account) (commerce.Account, error) {
	expected := account.Version
	account.Version++
	doc, err := json.Marshal(account)
	if err != nil {
		return commerce.Account{}, err
	}
	var tag pgconn.CommandTag
	if expected == 0 {
		tag, err = s.db.Exec(ctx, `
			INSERT INTO accounts (id, version, doc) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			account.ID, account.Version, doc)
	} else {
		tag, err = s.db.Exec(ctx, `
			UPDATE accounts SET version = $2, doc = $3 WHERE id = $1 AND version = $4`,
			account.ID, account.Version, doc, expected)
	}
	if err != nil {
		return commerce.Account{}, fmt.Errorf("pgstore: save account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return commerce.Account{}, fmt.Errorf("%w: account %s", store.ErrVersionConflict, account.ID)
	}
	return account, nil
}

var _ store.Store = (*Store)(nil)
