package common

import (
	"encoding/base64"
	"strings"
)

// Opaque id namespaces.
const (
	NamespaceAccount  = "reaction/account"
	NamespaceAddress  = "reaction/address"
	NamespaceCart     = "reaction/cart"
	NamespaceCartItem = "reaction/cartItem"
	NamespaceOrder    = "reaction/order"
	NamespaceProduct  = "reaction/product"
	NamespaceShop     = "reaction/shop"
)

// EncodeOpaqueID encodes an internal id as base64("namespace:id").
func EncodeOpaqueID(namespace, id string) string {
	if id == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(namespace + ":" + id))
}

// DecodeOpaqueID reverses EncodeOpaqueID. Values that are not opaque ids of
// the namespace are returned unchanged so internal ids are also accepted.
func DecodeOpaqueID(namespace, opaque string) string {
	raw, err := base64.StdEncoding.DecodeString(opaque)
	if err != nil {
		return opaque
	}
	prefix := namespace + ":"
	decoded := string(raw)
	if !strings.HasPrefix(decoded, prefix) {
		return opaque
	}
	return strings.TrimPrefix(decoded, prefix)
}
