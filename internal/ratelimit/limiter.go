package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Fixed wraps an ulule limiter with a fixed rate.
type Fixed struct {
	L *limiter.Limiter
}

// NewRedis builds a Fixed limiter of perMinute requests backed by redis.
func NewRedis(rdb *redis.Client, prefix string, perMinute int64) (Fixed, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Fixed{}, err
	}
	return New(store, perMinute), nil
}

// New builds a Fixed limiter of perMinute requests over store.
func New(store limiter.Store, perMinute int64) Fixed {
	return Fixed{L: limiter.New(store, limiter.Rate{Period: time.Minute, Limit: perMinute})}
}

// Allow implements Limiter.
func (f Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	lc, err := f.L.Get(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	return Decision{
		Allowed:   !lc.Reached,
		Limit:     lc.Limit,
		Remaining: lc.Remaining,
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}
