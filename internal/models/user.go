package models

import "time"

// User is an online-banking login tied to a customer record.
type User struct {
	ID                  int    `json:"id" example:"1"`
	Email               string `json:"email" example:"user@example.com"`
	FirstName           string `json:"firstName" example:"John"`
	LastName            string `json:"lastName" example:"Doe"`
	CustomerID          int    `json:"customerId" example:"1"`
	AccountID           string `json:"accountId" example:"1234567890"`
	PhoneNumber         string `json:"phoneNumber" example:"+15551234567"`
	Role                string `json:"role"`
	FailedLoginAttempts int    `json:"-"`
	LockedUntil         *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
