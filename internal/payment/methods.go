// Package payment implements the payment methods offered at checkout and
// registers them with the plugin registry.
package payment

import (
	"github.com/noah-isme/storefront-core/internal/plugin"
)

// Payment method names as stored on order payments.
const (
	MethodStripeCard        = "stripe_card"
	MethodInAdvance         = "in_advance"
	MethodSantanderManual   = "santander_manual"
	MethodSantanderManualDE = "santander_manual_de"
	MethodCashpresso        = "cashpresso_instalment"
	MethodKlarna            = "klarna"
)

// Plugin bundles the configured payment methods for registration.
func Plugin(methods ...plugin.PaymentMethod) plugin.Plugin {
	return plugin.Plugin{Name: "payments", PaymentMethods: methods}
}
