// Package menu maps the ranked catalog onto the weekly cycle and filters
// dishes against a student's allergies.
package menu

import (
	"sort"

	"makan-backend/internal/models"
)

const (
	ItemsPerDay   = 2
	DaysPerCycle  = 5
	RotationItems = ItemsPerDay * DaysPerCycle
)

// Rotation returns the first ten catalog items ordered by ascending ID.
// The input slice is not modified.
func Rotation(catalog []models.MenuItem) []models.MenuItem {
	ranked := make([]models.MenuItem, len(catalog))
	copy(ranked, catalog)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ID < ranked[j].ID })
	if len(ranked) > RotationItems {
		ranked = ranked[:RotationItems]
	}
	return ranked
}

// ResolveDayItems returns the pair served on weekdayIndex (0 = Senin).
// A short or empty result means the menu for that day is not available yet.
func ResolveDayItems(catalog []models.MenuItem, weekdayIndex int) []models.MenuItem {
	if weekdayIndex < 0 || weekdayIndex >= DaysPerCycle {
		return nil
	}
	ranked := Rotation(catalog)
	start := weekdayIndex * ItemsPerDay
	if start >= len(ranked) {
		return nil
	}
	end := start + ItemsPerDay
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[start:end]
}

// Contains reports whether itemID is part of items.
func Contains(items []models.MenuItem, itemID uint) bool {
	for _, it := range items {
		if it.ID == itemID {
			return true
		}
	}
	return false
}
