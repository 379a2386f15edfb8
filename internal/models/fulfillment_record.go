package models

import "time"

// FulfillmentRecord: riwayat. Append-only; one row per successful fulfillment.
type FulfillmentRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      string    `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	StudentID    uint      `gorm:"index;not null" json:"student_id"`
	StudentEmail string    `gorm:"size:100;index;not null" json:"student_email"`
	MenuItemID   uint      `gorm:"index;not null" json:"menu_item_id"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
