// Package reservation implements the per-day meal selection: one final
// choice per student and date, accepted only inside the booking window.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"makan-backend/internal/calendar"
	"makan-backend/internal/menu"
	"makan-backend/internal/models"
	"makan-backend/internal/store"
)

var (
	ErrWindowClosed     = errors.New("booking window is closed for this date")
	ErrAlreadySelected  = errors.New("a meal is already selected for this date")
	ErrAllergenConflict = errors.New("item contains an allergen the student declared")
	ErrInvalidSelection = errors.New("item is not on the menu for this date")
)

// Store is what the service needs from persistence.
type Store interface {
	store.Locker
	Catalog(ctx context.Context) ([]models.MenuItem, error)
	Reservation(ctx context.Context, email, date string) (models.DayReservation, error)
}

// Student is the caller identity handed in by the session layer.
type Student struct {
	Email     string
	Allergies string
}

type Service struct {
	store  Store
	cal    *calendar.Calendar
	policy store.RetryPolicy
	log    *log.Logger
}

func New(st Store, cal *calendar.Calendar, policy store.RetryPolicy, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[reservation] ", log.LstdFlags)
	}
	return &Service{store: st, cal: cal, policy: policy, log: logger}
}

// Select records the student's final choice for date. Checks run in this
// order: booking window, existing reservation, unknown item, allergens,
// the day's menu pair.
func (s *Service) Select(ctx context.Context, student Student, date calendar.Date, itemID uint) (models.DayReservation, error) {
	now := s.cal.Now()
	day, ok := calendar.DayOf(date)
	if !ok || !s.cal.IsBookable(now, day.Weekday, date) {
		return models.DayReservation{}, ErrWindowClosed
	}

	catalog, err := s.store.Catalog(ctx)
	if err != nil {
		return models.DayReservation{}, fmt.Errorf("load catalog: %w", err)
	}
	pair := menu.ResolveDayItems(catalog, day.Index)

	// the store assigns the id at commit, so keep the pointer
	var created *models.DayReservation
	keys := []store.LockKey{
		store.ReservationKey(student.Email, date.String()),
		store.StudentKey(student.Email),
	}
	err = store.Run(ctx, s.store, s.policy, keys, func(tx store.Tx) error {
		if _, err := tx.Reservation(student.Email, date.String()); err == nil {
			return ErrAlreadySelected
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		st, err := tx.Student(student.Email)
		if err != nil {
			return fmt.Errorf("student %s: %w", student.Email, err)
		}
		item, err := tx.MenuItem(itemID)
		if err != nil {
			return fmt.Errorf("menu item %d: %w", itemID, err)
		}
		if menu.IsBlocked(student.Allergies, item.Allergens) {
			return ErrAllergenConflict
		}
		if !menu.Contains(pair, itemID) {
			return ErrInvalidSelection
		}

		r := &models.DayReservation{
			StudentEmail: st.Email,
			Date:         date.String(),
			MenuItemID:   itemID,
			CreatedAt:    now,
		}
		if err := tx.CreateReservation(r); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrAlreadySelected
			}
			return err
		}
		selected := itemID
		st.SelectedItemID = &selected
		if err := tx.SaveStudent(&st); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrTransientConflict) {
			s.log.Printf("[WARN] select %s %s: %v", student.Email, date, err)
		}
		return models.DayReservation{}, err
	}

	s.log.Printf("selected item=%d student=%s date=%s", itemID, created.StudentEmail, date)
	return *created, nil
}
