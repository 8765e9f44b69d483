package user

import "time"

// User represents a registered wallet owner. Users are created once and never
// mutated afterwards.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
