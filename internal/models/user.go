package models

import "time"

type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleCommittee UserRole = "committee"
)

func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleCommittee
}

// User: panitia (committee member) account. Students live in their own table.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	School       string    `gorm:"size:150" json:"school"`
	PhotoURL     string    `gorm:"size:500" json:"photo_url"`
	Role         UserRole  `gorm:"size:20;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
