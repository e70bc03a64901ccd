package entity

import "time"

// User roles.
const (
	RoleAdmin      = "admin"
	RoleContractor = "contractor"
)

// User is a company member: an administrator who approves and pays invoices,
// or a contractor who submits them.
type User struct {
	ID           string
	CompanyID    string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Status       string // "active" | "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
