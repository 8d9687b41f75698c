package fulfillment

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/money"
)

// ErrTotalMismatch marks a client-supplied total that disagrees with the computed one.
var ErrTotalMismatch = errors.New("fulfillment: expected total mismatch")

// CompareExpectedAndActualTotals compares at currency precision.
func CompareExpectedAndActualTotals(actual money.Money, expected decimal.Decimal) error {
	want := money.New(expected, actual.CurrencyCode).Round()
	got := actual.Round()
	if want.Amount.Equal(got.Amount) {
		return nil
	}
	precision := money.Precision(actual.CurrencyCode)
	return &common.AppError{
		Code: common.CodeInvalid,
		Message: fmt.Sprintf("Client provided total price %s for reconciliation, but actual total price is %s",
			want.Amount.StringFixed(precision), got.Amount.StringFixed(precision)),
		HTTPStatus: http.StatusBadRequest,
		Err:        ErrTotalMismatch,
		Details: map[string]string{
			"expected": want.Amount.StringFixed(precision),
			"actual":   got.Amount.StringFixed(precision),
		},
	}
}
