package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/store"
)

func cartFilter(sel store.CartSelector) (bson.M, error) {
	if sel.IsEmpty() {
		return nil, store.ErrNotFound
	}
	filter := bson.M{}
	if sel.ID != "" {
		filter["_id"] = sel.ID
	}
	if sel.AccountID != "" {
		filter["accountId"] = sel.AccountID
	}
	if sel.AnonymousAccessToken != "" {
		filter["anonymousAccessToken"] = sel.AnonymousAccessToken
	}
	if sel.ShopID != "" {
		filter["shopId"] = sel.ShopID
	}
	return filter, nil
}

func shopFilter(sel store.ShopSelector) (bson.M, error) {
	filter := bson.M{}
	if sel.ID != "" {
		filter["_id"] = sel.ID
	}
	if sel.Slug != "" {
		filter["slug"] = sel.Slug
	}
	if sel.ShopType != "" {
		filter["shopType"] = sel.ShopType
	}
	if len(filter) == 0 {
		return nil, store.ErrNotFound
	}
	return filter, nil
}

// FindCart implements store.Carts.
func (s *Store) FindCart(ctx context.Context, sel store.CartSelector) (commerce.Cart, error) {
	filter, err := cartFilter(sel)
	if err != nil {
		return commerce.Cart{}, err
	}
	return findOne[commerce.Cart](ctx, s.coll(CollectionCarts), filter)
}

// SaveCart implements store.Carts.
func (s *Store) SaveCart(ctx context.Context, cart commerce.Cart) (commerce.Cart, error) {
	expected := cart.Version
	cart.Version++
	if err := saveVersioned(ctx, s.coll(CollectionCarts), cart.ID, expected, cart); err != nil {
		return commerce.Cart{}, fmt.Errorf("mongostore: save cart: %w", err)
	}
	return cart, nil
}

// DeleteCart implements store.Carts.
func (s *Store) DeleteCart(ctx context.Context, sel store.CartSelector) error {
	filter, err := cartFilter(sel)
	if err != nil {
		return err
	}
	res, err := s.coll(CollectionCarts).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongostore: delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindOrder implements store.Orders.
func (s *Store) FindOrder(ctx context.Context, id string) (commerce.Order, error) {
	return findOne[commerce.Order](ctx, s.coll(CollectionOrders), bson.M{"_id": id})
}

// SaveOrder implements store.Orders.
func (s *Store) SaveOrder(ctx context.Context, order commerce.Order) (commerce.Order, error) {
	expected := order.Version
	order.Version++
	if err := saveVersioned(ctx, s.coll(CollectionOrders), order.ID, expected, order); err != nil {
		return commerce.Order{}, fmt.Errorf("mongostore: save order: %w", err)
	}
	return order, nil
}

// AddOrderAccessToken implements store.Orders.
func (s *Store) AddOrderAccessToken(ctx context.Context, orderID string, token commerce.AccessToken) error {
	res, err := s.coll(CollectionOrders).UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{"$push": bson.M{"anonymousAccessTokens": token}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: add order token: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindShop implements store.Shops.
func (s *Store) FindShop(ctx context.Context, sel store.ShopSelector) (commerce.Shop, error) {
	filter, err := shopFilter(sel)
	if err != nil {
		return commerce.Shop{}, err
	}
	return findOne[commerce.Shop](ctx, s.coll(CollectionShops), filter)
}

// SaveShop implements store.Shops.
func (s *Store) SaveShop(ctx context.Context, shop commerce.Shop) (commerce.Shop, error) {
	_, err := s.coll(CollectionShops).ReplaceOne(ctx, bson.M{"_id": shop.ID}, shop, options.Replace().SetUpsert(true))
	if err != nil {
		return commerce.Shop{}, fmt.Errorf("mongostore: save shop: %w", err)
	}
	return shop, nil
}

// FindProducts implements store.Products.
func (s *Store) FindProducts(ctx context.Context, ids []string) ([]commerce.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.coll(CollectionProducts).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongostore: find products: %w", err)
	}
	var out []commerce.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: decode products: %w", err)
	}
	return out, nil
}

// SaveProduct implements store.Products.
func (s *Store) SaveProduct(ctx context.Context, product commerce.Product) error {
	_, err := s.coll(CollectionProducts).ReplaceOne(ctx, bson.M{"_id": product.ID}, product, options.Replace().SetUpsert(true))
	return err
}

// SetInventoryInStock implements store.Products.
func (s *Store) SetInventoryInStock(ctx context.Context, productID string, inStock bool) error {
	res, err := s.coll(CollectionProducts).UpdateOne(ctx,
		bson.M{"_id": productID},
		bson.M{"$set": bson.M{"inventoryInStock": inStock}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: update stock flag: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindInventory implements store.Inventory.
func (s *Store) FindInventory(ctx context.Context, variantID string) (commerce.InventoryRecord, error) {
	return findOne[commerce.InventoryRecord](ctx, s.coll(CollectionInventory), bson.M{"_id": variantID})
}

// SaveInventory implements store.Inventory.
func (s *Store) SaveInventory(ctx context.Context, rec commerce.InventoryRecord) error {
	_, err := s.coll(CollectionInventory).ReplaceOne(ctx, bson.M{"_id": rec.VariantID}, rec, options.Replace().SetUpsert(true))
	return err
}

// FindAccount implements store.Accounts.
func (s *Store) FindAccount(ctx context.Context, id string) (commerce.Account, error) {
	return findOne[commerce.Account](ctx, s.coll(CollectionAccounts), bson.M{"_id": id})
}

// SaveAccount implements store.Accounts.
func (s *Store) SaveAccount(ctx context.Context, account commerce.Account) (commerce.Account, error) {
	expected := account.Version
	account.Version++
	if err := saveVersioned(ctx, s.coll(CollectionAccounts), account.ID, expected, account); err != nil {
		return commerce.Account{}, fmt.Errorf("mongostore: save account: %w", err)
	}
	return account, nil
}
