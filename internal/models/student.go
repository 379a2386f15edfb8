package models

import "time"

// Student: enrolled pelajar. Email is stored lowercased and is the identity.
type Student struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	RFIDNumber   string `gorm:"size:64;uniqueIndex;not null" json:"rfid_number"`
	Name         string `gorm:"size:100;not null" json:"name"`
	NISN         string `gorm:"size:32" json:"nisn"`
	Email        string `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	School       string `gorm:"size:150;index" json:"school"`
	Allergies    string `gorm:"size:255" json:"allergies"` // "udang, telur"
	PhotoURL     string `gorm:"size:500" json:"photo_url"`

	// Remaining meals the student may take. Mutated only by the inventory ledger.
	Entitlement int `gorm:"not null;default:0;check:chk_students_entitlement,entitlement >= 0" json:"entitlement"`

	// Active menu choice, set by the reservation service and read at fulfillment.
	SelectedItemID *uint `json:"selected_item_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
