package models

import "time"

// MenuItem: a dish in the ranked catalog. Ranking is ascending ID (creation order).
type MenuItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:150;not null" json:"name"`
	Allergens   string `gorm:"size:255" json:"allergens"` // "udang|telur" or "udang, telur"
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"size:500" json:"image_url"`

	Stock          int `gorm:"not null;default:0;check:chk_menu_items_stock,stock >= 0" json:"stock"`
	SelectionCount int `gorm:"not null;default:0;check:chk_menu_items_selection_count,selection_count >= 0" json:"selection_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
