package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"makan-backend/internal/calendar"
	"makan-backend/internal/menu"
	"makan-backend/internal/models"
	"makan-backend/internal/store"
)

type ItemView struct {
	Item      models.MenuItem `json:"item"`
	Blocked   bool            `json:"blocked"`
	Conflicts []string        `json:"conflicts,omitempty"`
}

// DayView is what a student sees for one date. Blocked items stay listed.
type DayView struct {
	TargetDate      calendar.Date `json:"target_date"`
	Weekday         int           `json:"weekday"`
	Label           string        `json:"label,omitempty"`
	IsBookable      bool          `json:"is_bookable"`
	Items           []ItemView    `json:"items"`
	AlreadySelected bool          `json:"already_selected"`
	SelectedItemID  *uint         `json:"selected_item_id,omitempty"`
}

// View builds the DayView for date. Weekends come back with no items and
// IsBookable false.
func (s *Service) View(ctx context.Context, student Student, date calendar.Date) (DayView, error) {
	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return DayView{}, fmt.Errorf("load catalog: %w", err)
	}
	return s.view(ctx, student, date, catalog, s.cal.Now())
}

// Week returns the five DayViews of the week shown at the current instant.
// Every day is evaluated against the same instant and catalog read.
func (s *Service) Week(ctx context.Context, student Student) ([]DayView, error) {
	now := s.cal.Now()
	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	days := s.cal.TargetWeek(now)
	out := make([]DayView, 0, len(days))
	for _, d := range days {
		v, err := s.view(ctx, student, d.Date, catalog, now)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) view(ctx context.Context, student Student, date calendar.Date, catalog []models.MenuItem, now time.Time) (DayView, error) {
	v := DayView{TargetDate: date, Items: []ItemView{}}

	day, ok := calendar.DayOf(date)
	if !ok {
		return v, nil
	}
	v.Weekday = day.Weekday
	v.Label = day.Label
	v.IsBookable = s.cal.IsBookable(now, day.Weekday, date)

	for _, it := range menu.ResolveDayItems(catalog, day.Index) {
		conflicts := menu.Conflicts(student.Allergies, it.Allergens)
		v.Items = append(v.Items, ItemView{
			Item:      it,
			Blocked:   len(conflicts) > 0,
			Conflicts: conflicts,
		})
	}

	r, err := s.store.Reservation(ctx, student.Email, date.String())
	switch {
	case err == nil:
		v.AlreadySelected = true
		id := r.MenuItemID
		v.SelectedItemID = &id
	case errors.Is(err, store.ErrNotFound):
	default:
		return DayView{}, fmt.Errorf("load reservation: %w", err)
	}
	return v, nil
}
