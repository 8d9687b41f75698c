package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Record is the persisted form of an emitted event.
type Record struct {
	Topic      Topic     `json:"topic" bson:"topic"`
	Payload    []byte    `json:"payload" bson:"payload"`
	OccurredAt time.Time `json:"occurredAt" bson:"occurredAt"`
}

// Recorder persists emitted events for auditing and replay.
type Recorder interface {
	RecordEvent(ctx context.Context, rec Record) error
}

type handlerList[T any] struct {
	handlers []func(context.Context, T) error
}

// Bus is an explicit dispatch table with one typed handler list per topic.
// Handlers run sequentially in registration order; the first failure aborts
// the emission and is returned to the emitter.
type Bus struct {
	Recorder Recorder
	Now      func() time.Time

	mu                   sync.RWMutex
	cartUpdated          handlerList[CartUpdated]
	inventoryUpdated     handlerList[InventoryUpdated]
	bulkInventoryUpdated handlerList[BulkInventoryUpdated]
	shopCreated          handlerList[ShopCreated]
	orderCreated         handlerList[OrderCreated]
}

// NewBus returns an empty bus.
func NewBus(rec Recorder) *Bus {
	return &Bus{Recorder: rec}
}

// OnCartUpdated registers a handler for TopicAfterCartUpdate.
func (b *Bus) OnCartUpdated(fn func(context.Context, CartUpdated) error) {
	register(b, &b.cartUpdated, fn)
}

// OnInventoryUpdated registers a handler for TopicAfterInventoryUpdate.
func (b *Bus) OnInventoryUpdated(fn func(context.Context, InventoryUpdated) error) {
	register(b, &b.inventoryUpdated, fn)
}

// OnBulkInventoryUpdated registers a handler for TopicAfterBulkInventoryUpdate.
func (b *Bus) OnBulkInventoryUpdated(fn func(context.Context, BulkInventoryUpdated) error) {
	register(b, &b.bulkInventoryUpdated, fn)
}

// OnShopCreated registers a handler for TopicAfterShopCreate.
func (b *Bus) OnShopCreated(fn func(context.Context, ShopCreated) error) {
	register(b, &b.shopCreated, fn)
}

// OnOrderCreated registers a handler for TopicAfterOrderCreate.
func (b *Bus) OnOrderCreated(fn func(context.Context, OrderCreated) error) {
	register(b, &b.orderCreated, fn)
}

// EmitCartUpdated dispatches a CartUpdated event.
func (b *Bus) EmitCartUpdated(ctx context.Context, ev CartUpdated) error {
	return emit(ctx, b, TopicAfterCartUpdate, &b.cartUpdated, ev)
}

// EmitInventoryUpdated dispatches an InventoryUpdated event.
func (b *Bus) EmitInventoryUpdated(ctx context.Context, ev InventoryUpdated) error {
	return emit(ctx, b, TopicAfterInventoryUpdate, &b.inventoryUpdated, ev)
}

// EmitBulkInventoryUpdated dispatches a BulkInventoryUpdated event.
func (b *Bus) EmitBulkInventoryUpdated(ctx context.Context, ev BulkInventoryUpdated) error {
	return emit(ctx, b, TopicAfterBulkInventoryUpdate, &b.bulkInventoryUpdated, ev)
}

// EmitShopCreated dispatches a ShopCreated event.
func (b *Bus) EmitShopCreated(ctx context.Context, ev ShopCreated) error {
	return emit(ctx, b, TopicAfterShopCreate, &b.shopCreated, ev)
}

// EmitOrderCreated dispatches an OrderCreated event.
func (b *Bus) EmitOrderCreated(ctx context.Context, ev OrderCreated) error {
	return emit(ctx, b, TopicAfterOrderCreate, &b.orderCreated, ev)
}

// HandlerCount returns the number of handlers registered for topic.
func (b *Bus) HandlerCount(topic Topic) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch topic {
	case TopicAfterCartUpdate:
		return len(b.cartUpdated.handlers)
	case TopicAfterInventoryUpdate:
		return len(b.inventoryUpdated.handlers)
	case TopicAfterBulkInventoryUpdate:
		return len(b.bulkInventoryUpdated.handlers)
	case TopicAfterShopCreate:
		return len(b.shopCreated.handlers)
	case TopicAfterOrderCreate:
		return len(b.orderCreated.handlers)
	}
	return 0
}

func register[T any](b *Bus, list *handlerList[T], fn func(context.Context, T) error) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list.handlers = append(list.handlers, fn)
}

func emit[T any](ctx context.Context, b *Bus, topic Topic, list *handlerList[T], payload T) error {
	if b.Recorder != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("events: encode payload: %w", err)
		}
		rec := Record{Topic: topic, Payload: encoded, OccurredAt: b.now()}
		if err := b.Recorder.RecordEvent(ctx, rec); err != nil {
			return fmt.Errorf("events: persist %s: %w", topic, err)
		}
	}
	b.mu.RLock()
	handlers := append([]func(context.Context, T) error(nil), list.handlers...)
	b.mu.RUnlock()
	for i, fn := range handlers {
		if err := fn(ctx, payload); err != nil {
			return fmt.Errorf("events: %s handler %d: %w", topic, i, err)
		}
	}
	return nil
}

func (b *Bus) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}
