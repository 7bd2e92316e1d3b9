package models

// Default table names for the source collection and its anonymized mirror.
const (
	SourceTable = "customers"
	MirrorTable = "customers_anonymised"
)

// Address is the postal address embedded in a Customer.
type Address struct {
	Line1    string `json:"line1" gorm:"column:line1;size:255"`
	Line2    string `json:"line2" gorm:"column:line2;size:255"`
	Postcode string `json:"postcode" gorm:"column:postcode;size:32"`
	City     string `json:"city" gorm:"column:city;size:128"`
	State    string `json:"state" gorm:"column:state;size:64"`
	Country  string `json:"country" gorm:"column:country;size:8"`
}

// Customer is one record of the source collection. Anonymized mirror records
// share the shape and the ID of the source record they were derived from.
type Customer struct {
	ID        string  `json:"_id" gorm:"column:id;primaryKey;size:64"`
	FirstName string  `json:"firstName" gorm:"column:first_name;size:255"`
	LastName  string  `json:"lastName" gorm:"column:last_name;size:255"`
	Email     string  `json:"email" gorm:"column:email;size:320"`
	Address   Address `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	// CreatedAt is an ISO-8601 timestamp set by the producer. It orders
	// records for catch-up and is never filled in by the ORM.
	CreatedAt string `json:"createdAt" gorm:"column:created_at;size:40;index;autoCreateTime:false"`
}

// Columns lists the column names a Customer table must provide.
func Columns() []string {
	return []string{
		"id", "first_name", "last_name", "email",
		"address_line1", "address_line2", "address_postcode",
		"address_city", "address_state", "address_country",
		"created_at",
	}
}
