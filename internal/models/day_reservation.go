package models

import "time"

// DayReservation: one meal choice per (student, date). Never updated after insert.
type DayReservation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StudentEmail string    `gorm:"size:100;not null;uniqueIndex:idx_reservation_student_day" json:"student_email"`
	Date         string    `gorm:"size:10;not null;uniqueIndex:idx_reservation_student_day" json:"date"` // YYYY-MM-DD in the operating timezone
	MenuItemID   uint      `gorm:"index;not null" json:"menu_item_id"`
	CreatedAt    time.Time `json:"created_at"`
}
