package domain

import "time"

// Address is a stored postal address.
type Address struct {
	ID string
	AddressData
	CreatedAt time.Time
}

// User is a registered platform user.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	AddressID string
	CreatedAt time.Time
}

// Customer is the billing identity attached to a user.
type Customer struct {
	ID          string
	UserID      string
	CompanyName string
	ContactName string
	Email       string
	Phone       string
	AddressID   string
	CreatedAt   time.Time
}
