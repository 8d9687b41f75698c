package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/plugin"
)

// InAdvance accepts orders paid by bank transfer before shipping. The
// payment stays in status created until the transfer is reconciled.
type InAdvance struct {
	Now   func() time.Time
	NewID func() string
}

var _ plugin.PaymentMethod = InAdvance{}

// Name implements plugin.PaymentMethod.
func (InAdvance) Name() string { return MethodInAdvance }

// Authorize records the payment and issues a transfer reference.
func (m InAdvance) Authorize(_ context.Context, req plugin.PaymentRequest) (commerce.Payment, error) {
	if !req.Amount.Amount.IsPositive() {
		return commerce.Payment{}, common.InvalidParam("payment amount must be positive")
	}
	id := uuid.NewString()
	if m.NewID != nil {
		id = m.NewID()
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	return commerce.Payment{
		ID:                id,
		Name:              MethodInAdvance,
		DisplayName:       "Payment in advance",
		Method:            "manual",
		Mode:              "authorize",
		Processor:         "InAdvance",
		PaymentPluginName: "payments-in-advance",
		ShopID:            req.ShopID,
		Amount:            req.Amount,
		Status:            commerce.PaymentStatusCreated,
		RiskLevel:         "normal",
		Address:           req.BillingAddress,
		Data: commerce.PaymentData{
			Kind:      commerce.PaymentDataInAdvance,
			InAdvance: &commerce.InAdvancePaymentData{Reference: transferReference(id)},
		},
		CreatedAt: now.UTC(),
	}, nil
}

// ListRefunds implements plugin.PaymentMethod. Transfers are refunded
// outside the platform, so there is nothing to list.
func (InAdvance) ListRefunds(context.Context, commerce.Payment) ([]commerce.Refund, error) {
	return []commerce.Refund{}, nil
}

func transferReference(id string) string {
	ref := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(ref) > 10 {
		ref = ref[:10]
	}
	return "PAY-" + ref
}
