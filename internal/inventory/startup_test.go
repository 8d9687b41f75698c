package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/store"
)

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) PartialProductPublish(_ context.Context, productID, trigger string) error {
	if trigger != PublishTrigger {
		return errors.New("unexpected trigger " + trigger)
	}
	p.published = append(p.published, productID)
	return p.err
}

func setup(t *testing.T) (*Service, *store.Memory, *recordingPublisher, *events.Bus) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.SaveProduct(context.Background(), commerce.Product{ID: "P1", Type: commerce.ProductTypeSimple}))
	require.NoError(t, st.SaveProduct(context.Background(), commerce.Product{ID: "P2", Type: commerce.ProductTypeSimple}))
	pub := &recordingPublisher{}
	bus := events.NewBus(nil)
	svc := &Service{Inventory: st, Products: st, Catalog: pub, Bus: bus}

	var reg plugin.Registry
	reg.MustRegister(svc.Plugin())
	require.NoError(t, reg.Startup(context.Background(), bus))
	return svc, st, pub, bus
}

func pc(product, variant string) commerce.ProductConfiguration {
	return commerce.ProductConfiguration{ProductID: product, VariantID: variant}
}

func TestInventoryUpdateSyncsInStockFlag(t *testing.T) {
	svc, st, pub, _ := setup(t)

	require.NoError(t, svc.UpdateStock(context.Background(), StockUpdate{ProductConfiguration: pc("P1", "V1"), Quantity: 4}))

	products, err := st.FindProducts(context.Background(), []string{"P1"})
	require.NoError(t, err)
	require.True(t, products[0].InventoryInStock)
	require.Equal(t, []string{"P1"}, pub.published)

	require.NoError(t, svc.UpdateStock(context.Background(), StockUpdate{ProductConfiguration: pc("P1", "V1"), Quantity: 0}))
	products, err = st.FindProducts(context.Background(), []string{"P1"})
	require.NoError(t, err)
	require.False(t, products[0].InventoryInStock)
}

func TestBulkInventoryUpdatePublishesEachProductOnce(t *testing.T) {
	svc, _, pub, _ := setup(t)

	require.NoError(t, svc.UpdateStock(context.Background(),
		StockUpdate{ProductConfiguration: pc("P1", "V1"), Quantity: 1},
		StockUpdate{ProductConfiguration: pc("P1", "V2"), Quantity: 2},
		StockUpdate{ProductConfiguration: pc("P2", "V3"), Quantity: 3},
	))
	require.Equal(t, []string{"P1", "P2"}, pub.published)
}

func TestInventoryUpdateWithoutRecordFails(t *testing.T) {
	_, _, pub, bus := setup(t)

	err := bus.EmitInventoryUpdated(context.Background(), events.InventoryUpdated{ProductConfiguration: pc("P1", "missing")})
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Empty(t, pub.published)
}

func TestPublishErrorPropagates(t *testing.T) {
	svc, _, pub, _ := setup(t)
	pub.err = errors.New("cache down")

	err := svc.UpdateStock(context.Background(), StockUpdate{ProductConfiguration: pc("P2", "V3"), Quantity: 1})
	require.ErrorContains(t, err, "cache down")
}

func TestUniqueProductIDsKeepsOrder(t *testing.T) {
	ids := uniqueProductIDs([]commerce.ProductConfiguration{pc("b", "1"), pc("a", "2"), pc("b", "3")})
	require.Equal(t, []string{"b", "a"}, ids)
}
