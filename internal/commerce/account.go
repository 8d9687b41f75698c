package commerce

import "time"

// Profile holds the shopper-visible account settings.
type Profile struct {
	AddressBook []Address `json:"addressBook" bson:"addressBook"`
	Currency    string    `json:"currency,omitempty" bson:"currency,omitempty"`
	Language    string    `json:"language,omitempty" bson:"language,omitempty"`
	Name        string    `json:"name,omitempty" bson:"name,omitempty"`
}

// Account is a registered shopper.
type Account struct {
	ID        string    `json:"_id" bson:"_id"`
	ShopID    string    `json:"shopId" bson:"shopId"`
	Emails    []Email   `json:"emails,omitempty" bson:"emails,omitempty"`
	Profile   Profile   `json:"profile" bson:"profile"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	Version   int64     `json:"version" bson:"version"`
}
