package commerce

// Address is a postal address attached to carts, orders, shops and accounts.
type Address struct {
	ID                string `json:"_id" bson:"_id"`
	FullName          string `json:"fullName" bson:"fullName" validate:"required,max=200"`
	FirstName         string `json:"firstName,omitempty" bson:"firstName,omitempty"`
	LastName          string `json:"lastName,omitempty" bson:"lastName,omitempty"`
	Honorific         string `json:"honorific,omitempty" bson:"honorific,omitempty"`
	Company           string `json:"company,omitempty" bson:"company,omitempty"`
	Phone             string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,max=40"`
	Address1          string `json:"address1" bson:"address1" validate:"required,max=200"`
	Address2          string `json:"address2,omitempty" bson:"address2,omitempty"`
	City              string `json:"city" bson:"city" validate:"required,max=100"`
	Region            string `json:"region,omitempty" bson:"region,omitempty"`
	Postal            string `json:"postal" bson:"postal" validate:"required,max=20"`
	Country           string `json:"country" bson:"country" validate:"required,len=2"`
	IsCommercial      bool   `json:"isCommercial" bson:"isCommercial"`
	IsBillingDefault  bool   `json:"isBillingDefault" bson:"isBillingDefault"`
	IsShippingDefault bool   `json:"isShippingDefault" bson:"isShippingDefault"`
}

// AddressPatch carries optional address field updates.
type AddressPatch struct {
	FullName     *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=200"`
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	Honorific    *string `json:"honorific,omitempty"`
	Company      *string `json:"company,omitempty"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address1     *string `json:"address1,omitempty" validate:"omitempty,min=1,max=200"`
	Address2     *string `json:"address2,omitempty"`
	City         *string `json:"city,omitempty" validate:"omitempty,min=1,max=100"`
	Region       *string `json:"region,omitempty"`
	Postal       *string `json:"postal,omitempty" validate:"omitempty,min=1,max=20"`
	Country      *string `json:"country,omitempty" validate:"omitempty,len=2"`
	IsCommercial *bool   `json:"isCommercial,omitempty"`
}

// Apply copies every set field of the patch onto a.
func (p AddressPatch) Apply(a Address) Address {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.FullName, p.FullName)
	set(&a.FirstName, p.FirstName)
	set(&a.LastName, p.LastName)
	set(&a.Honorific, p.Honorific)
	set(&a.Company, p.Company)
	set(&a.Phone, p.Phone)
	set(&a.Address1, p.Address1)
	set(&a.Address2, p.Address2)
	set(&a.City, p.City)
	set(&a.Region, p.Region)
	set(&a.Postal, p.Postal)
	set(&a.Country, p.Country)
	if p.IsCommercial != nil {
		a.IsCommercial = *p.IsCommercial
	}
	return a
}
