// Package inventory owns the two linked counters of the meal engine: each
// student's entitlement and each menu item's stock. It also carries the
// committee tooling around the catalog.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"makan-backend/internal/calendar"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/google/uuid"
)

var (
	ErrNoSelection          = errors.New("student has no selected meal")
	ErrEntitlementExhausted = errors.New("student has no meals left")
	ErrStockExhausted       = errors.New("menu item is out of stock")
	ErrInvalidAmount        = errors.New("amount must not be negative")
)

// errSelectionChanged means the student's choice moved between the lookup
// that picked the item lock and the locked re-read.
var errSelectionChanged = errors.New("selection changed during fulfillment")

type Store interface {
	store.Locker
	store.HistoryReader
	Student(ctx context.Context, email string) (models.Student, error)
	Students(ctx context.Context, school string) ([]models.Student, error)
}

type Ledger struct {
	store  Store
	clock  calendar.Clock
	policy store.RetryPolicy
	log    *log.Logger
}

func NewLedger(st Store, clock calendar.Clock, policy store.RetryPolicy, logger *log.Logger) *Ledger {
	if clock == nil {
		clock = calendar.RealClock{}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[inventory] ", log.LstdFlags)
	}
	return &Ledger{store: st, clock: clock, policy: policy, log: logger}
}

type FulfillOptions struct {
	// EventID names the logical pickup. Repeating it returns the first
	// record instead of consuming again. Empty means a fresh event.
	EventID string
}

// Fulfill converts the student's current selection into a consumed meal:
// entitlement and stock go down by one, the selection counter up by one, and
// one FulfillmentRecord is appended, all in one commit.
func (l *Ledger) Fulfill(ctx context.Context, email string, opts FulfillOptions) (models.FulfillmentRecord, error) {
	eventID := opts.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	attempts := l.policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		rec, replayed, err := l.fulfillOnce(ctx, email, eventID)
		if errors.Is(err, errSelectionChanged) {
			if attempt >= attempts {
				return models.FulfillmentRecord{}, fmt.Errorf("%w: %v", store.ErrTransientConflict, err)
			}
			continue
		}
		if err != nil {
			if errors.Is(err, store.ErrTransientConflict) {
				l.log.Printf("[WARN] fulfill %s: %v", email, err)
			}
			return models.FulfillmentRecord{}, err
		}
		if replayed {
			l.log.Printf("fulfill replay event=%s student=%s", eventID, rec.StudentEmail)
		} else {
			l.log.Printf("fulfilled event=%s student=%s item=%d", eventID, rec.StudentEmail, rec.MenuItemID)
		}
		return rec, nil
	}
}

func (l *Ledger) fulfillOnce(ctx context.Context, email, eventID string) (models.FulfillmentRecord, bool, error) {
	seen, err := l.store.Student(ctx, email)
	if err != nil {
		return models.FulfillmentRecord{}, false, fmt.Errorf("student %s: %w", email, err)
	}

	keys := []store.LockKey{store.StudentKey(seen.Email)}
	if seen.SelectedItemID != nil {
		keys = append(keys, store.ItemKey(*seen.SelectedItemID))
	}

	var (
		rec      models.FulfillmentRecord
		replayed bool
	)
	err = store.Run(ctx, l.store, l.policy, keys, func(tx store.Tx) error {
		rec, replayed = models.FulfillmentRecord{}, false

		prev, err := tx.FulfillmentByEvent(eventID)
		if err == nil {
			if prev.StudentEmail != seen.Email {
				return fmt.Errorf("%w: event %s belongs to another student", store.ErrDuplicate, eventID)
			}
			rec, replayed = prev, true
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		st, err := tx.Student(seen.Email)
		if err != nil {
			return fmt.Errorf("student %s: %w", seen.Email, err)
		}
		if !sameSelection(st.SelectedItemID, seen.SelectedItemID) {
			return errSelectionChanged
		}
		if st.SelectedItemID == nil {
			return ErrNoSelection
		}
		if st.Entitlement <= 0 {
			return ErrEntitlementExhausted
		}
		item, err := tx.MenuItem(*st.SelectedItemID)
		if err != nil {
			return fmt.Errorf("menu item %d: %w", *st.SelectedItemID, err)
		}
		if item.Stock <= 0 {
			return ErrStockExhausted
		}

		st.Entitlement--
		item.Stock--
		item.SelectionCount++
		if err := tx.SaveStudent(&st); err != nil {
			return err
		}
		if err := tx.SaveMenuItem(&item); err != nil {
			return err
		}

		rec = models.FulfillmentRecord{
			EventID:      eventID,
			StudentID:    st.ID,
			StudentEmail: st.Email,
			MenuItemID:   item.ID,
			CreatedAt:    l.clock.Now(),
		}
		return tx.AppendFulfillment(&rec)
	})
	if err != nil {
		return models.FulfillmentRecord{}, false, err
	}
	return rec, replayed, nil
}

func sameSelection(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RestockAll sets every registered student's entitlement to amount in a
// single commit and returns how many students were updated. Item stock is
// not touched.
func (l *Ledger) RestockAll(ctx context.Context, amount int) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}

	var (
		n   int64
		err error
	)
	if r, ok := l.store.(store.EntitlementResetter); ok {
		err = store.Retry(ctx, l.policy, func() error {
			var err error
			n, err = r.ResetEntitlements(ctx, amount)
			return err
		})
	} else {
		n, err = l.restockLocked(ctx, amount)
	}
	if err != nil {
		return 0, err
	}
	l.log.Printf("restocked %d students to %d meals", n, amount)
	return n, nil
}

// restockLocked takes every student's key in one Update.
func (l *Ledger) restockLocked(ctx context.Context, amount int) (int64, error) {
	students, err := l.store.Students(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}
	if len(students) == 0 {
		return 0, nil
	}

	emails := make([]string, 0, len(students))
	keys := make([]store.LockKey, 0, len(students))
	for _, s := range students {
		emails = append(emails, s.Email)
		keys = append(keys, store.StudentKey(s.Email))
	}

	var n int64
	err = store.Run(ctx, l.store, l.policy, keys, func(tx store.Tx) error {
		var err error
		n, err = tx.SetEntitlements(emails, amount)
		return err
	})
	return n, err
}

// SetStock overwrites the remaining stock of one item.
func (l *Ledger) SetStock(ctx context.Context, itemID uint, stock int) (models.MenuItem, error) {
	if stock < 0 {
		return models.MenuItem{}, ErrInvalidAmount
	}

	var updated models.MenuItem
	err := store.Run(ctx, l.store, l.policy, []store.LockKey{store.ItemKey(itemID)}, func(tx store.Tx) error {
		item, err := tx.MenuItem(itemID)
		if err != nil {
			return fmt.Errorf("menu item %d: %w", itemID, err)
		}
		item.Stock = stock
		if err := tx.SaveMenuItem(&item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return models.MenuItem{}, err
	}
	l.log.Printf("stock item=%d set to %d", itemID, stock)
	return updated, nil
}

// History returns every fulfillment in commit order.
func (l *Ledger) History(ctx context.Context) ([]models.FulfillmentRecord, error) {
	return l.store.History(ctx)
}
