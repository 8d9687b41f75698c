package commerce

import "time"

// Metafield is an arbitrary key/value attached to a shop or item.
type Metafield struct {
	Key       string `json:"key" bson:"key"`
	Value     string `json:"value" bson:"value"`
	Namespace string `json:"namespace,omitempty" bson:"namespace,omitempty"`
}

// Email is an address with the role it provides.
type Email struct {
	Address  string `json:"address" bson:"address"`
	Provides string `json:"provides,omitempty" bson:"provides,omitempty"`
	Verified bool   `json:"verified" bson:"verified"`
}

// StorefrontURLs are the public storefront links of a shop.
type StorefrontURLs struct {
	StorefrontHomeURL  string `json:"storefrontHomeUrl,omitempty" bson:"storefrontHomeUrl,omitempty"`
	StorefrontOrderURL string `json:"storefrontOrderUrl,omitempty" bson:"storefrontOrderUrl,omitempty"`
}

// Shop types.
const ShopTypePrimary = "primary"

// Shop is a storefront.
type Shop struct {
	ID             string         `json:"_id" bson:"_id"`
	Name           string         `json:"name" bson:"name"`
	Slug           string         `json:"slug" bson:"slug"`
	ShopType       string         `json:"shopType" bson:"shopType"`
	CurrencyCode   string         `json:"currency" bson:"currency"`
	Language       string         `json:"language,omitempty" bson:"language,omitempty"`
	Emails         []Email        `json:"emails,omitempty" bson:"emails,omitempty"`
	AddressBook    []Address      `json:"addressBook,omitempty" bson:"addressBook,omitempty"`
	StorefrontURLs StorefrontURLs `json:"storefrontUrls" bson:"storefrontUrls"`
	Metafields     []Metafield    `json:"metafields,omitempty" bson:"metafields,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Metafield returns the value stored under key.
func (s Shop) Metafield(key string) string {
	for _, m := range s.Metafields {
		if m.Key == key {
			return m.Value
		}
	}
	return ""
}

// PrimaryEmail returns the first email address of the shop.
func (s Shop) PrimaryEmail() string {
	if len(s.Emails) == 0 {
		return ""
	}
	return s.Emails[0].Address
}
