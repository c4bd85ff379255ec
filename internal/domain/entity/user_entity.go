package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Password holds a bcrypt hash and is never serialized; CreatedAt is set once
// at creation and never mutated afterwards.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Password  string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// Projection is the caller-safe view of a User. It is the only shape handlers
// return; the password hash has no field here at all.
type Projection struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Projection maps the entity to its public view.
func (u *User) Projection() *Projection {
	return &Projection{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// Identity returns the name the account is best known by, used in delete
// confirmations. Username wins when present, otherwise email.
func (u *User) Identity() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
