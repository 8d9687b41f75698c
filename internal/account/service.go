// Package account manages shopper address books.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/store"
)

// Address default types.
const (
	TypeBilling  = "billing"
	TypeShipping = "shipping"
)

// Service updates accounts.
type Service struct {
	Accounts store.Accounts
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// UpdateAddressInput edits one address book entry. AccountID and AddressID
// may be opaque ids; an empty AccountID means the caller's own account.
type UpdateAddressInput struct {
	AccountID string                `json:"accountId,omitempty"`
	AddressID string                `json:"addressId" validate:"required"`
	Type      string                `json:"type,omitempty" validate:"omitempty,oneof=billing shipping"`
	Updates   commerce.AddressPatch `json:"updates"`
}

// UpdateAccountAddressBookEntry applies the updates to the address and, when
// Type is set, makes it the account's default address of that type.
func (s *Service) UpdateAccountAddressBookEntry(ctx context.Context, in UpdateAddressInput) (commerce.Address, error) {
	ctx, span := otel.Tracer("account.Service").Start(ctx, "Service.UpdateAccountAddressBookEntry")
	defer span.End()

	in.AccountID = common.DecodeOpaqueID(common.NamespaceAccount, in.AccountID)
	in.AddressID = common.DecodeOpaqueID(common.NamespaceAddress, in.AddressID)
	if err := common.ValidateStruct(in); err != nil {
		return commerce.Address{}, err
	}
	callerID, ok := common.AccountID(ctx)
	if !ok {
		return commerce.Address{}, common.AccessDenied("Access Denied")
	}
	if in.AccountID == "" {
		in.AccountID = callerID
	}
	if in.AccountID != callerID {
		return commerce.Address{}, common.AccessDenied("Access Denied")
	}

	acc, err := s.Accounts.FindAccount(ctx, in.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return commerce.Address{}, common.NotFound("Account not found")
	}
	if err != nil {
		return commerce.Address{}, fmt.Errorf("account: find %s: %w", in.AccountID, err)
	}

	idx := -1
	for i, addr := range acc.Profile.AddressBook {
		if addr.ID == in.AddressID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return commerce.Address{}, common.NotFound("Address not found")
	}

	updated := in.Updates.Apply(acc.Profile.AddressBook[idx])
	updated.ID = in.AddressID
	if err := common.ValidateStruct(updated); err != nil {
		return commerce.Address{}, err
	}
	acc.Profile.AddressBook[idx] = updated
	for i := range acc.Profile.AddressBook {
		switch in.Type {
		case TypeBilling:
			acc.Profile.AddressBook[i].IsBillingDefault = i == idx
		case TypeShipping:
			acc.Profile.AddressBook[i].IsShippingDefault = i == idx
		}
	}
	acc.UpdatedAt = s.now()

	saved, err := s.Accounts.SaveAccount(ctx, acc)
	if errors.Is(err, store.ErrVersionConflict) {
		return commerce.Address{}, common.Conflict("Account was modified concurrently, retry the request", err)
	}
	if err != nil {
		return commerce.Address{}, fmt.Errorf("account: save %s: %w", acc.ID, err)
	}
	return saved.Profile.AddressBook[idx], nil
}
