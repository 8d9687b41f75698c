package pgstore

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/store"
)

type stubDB struct {
	lastSQL  string
	lastArgs []any
	affected int64
	row      pgx.Row
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.lastSQL, s.lastArgs = sql, args
	if s.affected == 0 {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *stubDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.lastSQL, s.lastArgs = sql, args
	return s.row
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func TestCartWhere(t *testing.T) {
	_, _, err := cartWhere(store.CartSelector{})
	require.ErrorIs(t, err, store.ErrNotFound)

	where, args, err := cartWhere(store.CartSelector{ID: "c1", AnonymousAccessToken: "h"})
	require.NoError(t, err)
	require.Equal(t, "id = $1 AND anonymous_access_token = $2", where)
	require.Equal(t, []any{"c1", "h"}, args)
}

func TestSaveCartReportsVersionConflict(t *testing.T) {
	db := &stubDB{}
	s := &Store{db: db}
	acc := "acc"
	_, err := s.SaveCart(context.Background(), commerce.Cart{ID: "c1", AccountID: &acc, Version: 3})
	require.ErrorIs(t, err, store.ErrVersionConflict)
	require.Contains(t, db.lastSQL, "version = $7")
	require.EqualValues(t, 3, db.lastArgs[6])

	db.affected = 1
	saved, err := s.SaveCart(context.Background(), commerce.Cart{ID: "c1", AccountID: &acc, Version: 3})
	require.NoError(t, err)
	require.EqualValues(t, 4, saved.Version)
	require.Nil(t, db.lastArgs[3], "missing token is stored as NULL")
}

func TestFindCartMapsNoRows(t *testing.T) {
	db := &stubDB{row: rowFunc(func(...any) error { return pgx.ErrNoRows })}
	s := &Store{db: db}
	_, err := s.FindCart(context.Background(), store.CartSelector{ID: "x"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindCartDecodesDocument(t *testing.T) {
	db := &stubDB{row: rowFunc(func(dest ...any) error {
		*(dest[0].(*[]byte)) = []byte(`{"_id":"c1","shopId":"s","items":[{"_id":"i","quantity":2,"price":{"amount":"9.99","currencyCode":"EUR"}}],"version":5}`)
		return nil
	})}
	s := &Store{db: db}
	cart, err := s.FindCart(context.Background(), store.CartSelector{ID: "c1"})
	require.NoError(t, err)
	require.EqualValues(t, 5, cart.Version)
	require.Equal(t, "9.99", cart.Items[0].Price.Amount.String())
	require.Equal(t, "SELECT doc FROM carts WHERE id = $1 LIMIT 1", db.lastSQL)
}
