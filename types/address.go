package types

import "time"

// Address is a postal address linked from users and employees.
type Address struct {
	ID        int        `json:"id" db:"id"`
	HouseNo   string     `json:"house_no" db:"house_no"`
	Street    string     `json:"street" db:"street"`
	City      string     `json:"city" db:"city"`
	State     string     `json:"state" db:"state"`
	Country   string     `json:"country" db:"country"`
	Pincode   string     `json:"pincode" db:"pincode"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}
