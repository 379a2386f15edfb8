package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"makan-backend/internal/models"
)

// memTx stages writes until Memory.commit. Reads see staged values first.
type memTx struct {
	m      *Memory
	locked map[LockKey]struct{}

	students     map[string]models.Student
	items        map[uint]models.MenuItem
	reservations []*models.DayReservation
	history      []*models.FulfillmentRecord
}

func newMemTx(m *Memory, keys []LockKey) *memTx {
	locked := make(map[LockKey]struct{}, len(keys))
	for _, k := range keys {
		locked[k] = struct{}{}
	}
	return &memTx{
		m:        m,
		locked:   locked,
		students: make(map[string]models.Student),
		items:    make(map[uint]models.MenuItem),
	}
}

func (tx *memTx) require(k LockKey) error {
	if _, ok := tx.locked[k]; !ok {
		return fmt.Errorf("write to %s without holding its lock", k)
	}
	return nil
}

func (tx *memTx) Student(email string) (models.Student, error) {
	email = strings.ToLower(email)
	if s, ok := tx.students[email]; ok {
		return s, nil
	}
	return tx.m.Student(context.Background(), email)
}

func (tx *memTx) SaveStudent(s *models.Student) error {
	email := strings.ToLower(s.Email)
	if err := tx.require(StudentKey(email)); err != nil {
		return err
	}
	if _, err := tx.Student(email); err != nil {
		return err
	}
	tx.students[email] = *s
	return nil
}

func (tx *memTx) SetEntitlements(emails []string, amount int) (int64, error) {
	var n int64
	for _, email := range emails {
		if err := tx.require(StudentKey(email)); err != nil {
			return 0, err
		}
		s, err := tx.Student(email)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		s.Entitlement = amount
		tx.students[strings.ToLower(email)] = s
		n++
	}
	return n, nil
}

func (tx *memTx) MenuItem(id uint) (models.MenuItem, error) {
	if it, ok := tx.items[id]; ok {
		return it, nil
	}
	return tx.m.MenuItem(context.Background(), id)
}

func (tx *memTx) SaveMenuItem(item *models.MenuItem) error {
	if err := tx.require(ItemKey(item.ID)); err != nil {
		return err
	}
	if _, err := tx.MenuItem(item.ID); err != nil {
		return err
	}
	tx.items[item.ID] = *item
	return nil
}

func (tx *memTx) Reservation(email, date string) (models.DayReservation, error) {
	for _, r := range tx.reservations {
		if strings.EqualFold(r.StudentEmail, email) && r.Date == date {
			return *r, nil
		}
	}
	return tx.m.Reservation(context.Background(), email, date)
}

func (tx *memTx) CreateReservation(r *models.DayReservation) error {
	if err := tx.require(ReservationKey(r.StudentEmail, r.Date)); err != nil {
		return err
	}
	if _, err := tx.Reservation(r.StudentEmail, r.Date); err == nil {
		return fmt.Errorf("%w: reservation %s %s", ErrDuplicate, r.StudentEmail, r.Date)
	}
	r.StudentEmail = strings.ToLower(r.StudentEmail)
	tx.reservations = append(tx.reservations, r)
	return nil
}

func (tx *memTx) FulfillmentByEvent(eventID string) (models.FulfillmentRecord, error) {
	for _, rec := range tx.history {
		if rec.EventID == eventID {
			return *rec, nil
		}
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	idx, ok := tx.m.events[eventID]
	if !ok {
		return models.FulfillmentRecord{}, ErrNotFound
	}
	return tx.m.history[idx], nil
}

func (tx *memTx) AppendFulfillment(rec *models.FulfillmentRecord) error {
	if err := tx.require(StudentKey(rec.StudentEmail)); err != nil {
		return err
	}
	if _, err := tx.FulfillmentByEvent(rec.EventID); err == nil {
		return fmt.Errorf("%w: fulfillment event %s", ErrDuplicate, rec.EventID)
	}
	tx.history = append(tx.history, rec)
	return nil
}
