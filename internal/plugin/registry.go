package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/storefront-core/internal/events"
)

// ErrDuplicate is returned when a plugin or payment method name is registered twice.
var ErrDuplicate = errors.New("plugin: duplicate registration")

// Registry stores plugin contributions by capability. The zero value is ready to use.
type Registry struct {
	mu             sync.RWMutex
	names          []string
	surcharges     []SurchargeRule
	cartTransforms []CartTransform
	emailData      []OrderEmailDataProvider
	payments       []PaymentMethod
	startup        []StartupFunc
}

// Register adds every contribution of p, preserving registration order.
func (r *Registry) Register(p Plugin) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return errors.New("plugin: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.names {
		if existing == name {
			return fmt.Errorf("%w: plugin %q", ErrDuplicate, name)
		}
	}
	for _, pm := range p.PaymentMethods {
		if r.paymentLocked(pm.Name()) != nil {
			return fmt.Errorf("%w: payment method %q", ErrDuplicate, pm.Name())
		}
	}
	r.names = append(r.names, name)
	r.surcharges = append(r.surcharges, p.SurchargeRules...)
	r.cartTransforms = append(r.cartTransforms, p.CartTransforms...)
	r.emailData = append(r.emailData, p.OrderEmailData...)
	r.payments = append(r.payments, p.PaymentMethods...)
	r.startup = append(r.startup, p.Startup...)
	return nil
}

// MustRegister panics when Register fails.
func (r *Registry) MustRegister(plugins ...Plugin) {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Names lists registered plugin names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// SurchargeRules returns the registered surcharge rules.
func (r *Registry) SurchargeRules() []SurchargeRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SurchargeRule(nil), r.surcharges...)
}

// CartTransforms returns the registered cart transforms.
func (r *Registry) CartTransforms() []CartTransform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CartTransform(nil), r.cartTransforms...)
}

// OrderEmailDataProviders returns the registered email data providers.
func (r *Registry) OrderEmailDataProviders() []OrderEmailDataProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]OrderEmailDataProvider(nil), r.emailData...)
}

// PaymentMethod looks a payment method up by name.
func (r *Registry) PaymentMethod(name string) (PaymentMethod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pm := r.paymentLocked(name)
	return pm, pm != nil
}

func (r *Registry) paymentLocked(name string) PaymentMethod {
	for _, pm := range r.payments {
		if pm.Name() == name {
			return pm
		}
	}
	return nil
}

// Count returns the number of contributions registered for c.
func (r *Registry) Count(c Capability) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch c {
	case CapabilitySurcharge:
		return len(r.surcharges)
	case CapabilityCartTransform:
		return len(r.cartTransforms)
	case CapabilityOrderEmailData:
		return len(r.emailData)
	case CapabilityPaymentMethod:
		return len(r.payments)
	case CapabilityStartup:
		return len(r.startup)
	}
	return 0
}

// Startup runs every startup hook in registration order and stops at the first failure.
func (r *Registry) Startup(ctx context.Context, bus *events.Bus) error {
	r.mu.RLock()
	hooks := append([]StartupFunc(nil), r.startup...)
	r.mu.RUnlock()
	for i, fn := range hooks {
		if fn == nil {
			continue
		}
		if err := fn(ctx, bus); err != nil {
			return fmt.Errorf("plugin: startup hook %d: %w", i, err)
		}
	}
	return nil
}
