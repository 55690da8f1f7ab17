package domain

import "time"

// User is a marketplace account. Authentication is handled upstream
// (OAuth); the core only needs identity and a receipt address.
type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}
