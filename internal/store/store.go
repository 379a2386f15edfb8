// Package store defines the persistence contract the meal engine runs on:
// snapshot reads plus Update, which serializes writers per lock key and
// commits all-or-nothing.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"makan-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")

	// ErrBootstrapClosed: the first committee account exists, later ones
	// are created by a committee member.
	ErrBootstrapClosed = errors.New("committee already bootstrapped")

	// ErrConflict means a lock could not be taken in time. Nothing was
	// written; Run retries it.
	ErrConflict = errors.New("resource locked by another transaction")

	// ErrTransientConflict is ErrConflict after the retry budget is spent.
	ErrTransientConflict = errors.New("resource busy, retry the request")
)

// KeyKind fixes the global lock order: reservations, then students, then items.
type KeyKind int

const (
	KindReservation KeyKind = iota + 1
	KindStudent
	KindItem
)

func (k KeyKind) String() string {
	switch k {
	case KindReservation:
		return "reservation"
	case KindStudent:
		return "student"
	case KindItem:
		return "item"
	default:
		return "unknown"
	}
}

type LockKey struct {
	Kind KeyKind
	ID   string
}

func (k LockKey) String() string { return k.Kind.String() + ":" + k.ID }

func ReservationKey(email, date string) LockKey {
	return LockKey{Kind: KindReservation, ID: strings.ToLower(email) + "|" + date}
}

func StudentKey(email string) LockKey {
	return LockKey{Kind: KindStudent, ID: strings.ToLower(email)}
}

// ItemKey zero-pads the id so lexical order equals numeric order.
func ItemKey(id uint) LockKey {
	return LockKey{Kind: KindItem, ID: fmt.Sprintf("%020d", id)}
}

// OrderKeys returns a sorted, de-duplicated copy of keys.
func OrderKeys(keys []LockKey) []LockKey {
	out := make([]LockKey, 0, len(keys))
	seen := make(map[LockKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Tx is the transactional view handed to Update callbacks. Writes require the
// matching key to be locked; IDs of created rows are set once Update commits.
type Tx interface {
	Student(email string) (models.Student, error)
	// SaveStudent persists Entitlement and SelectedItemID only.
	SaveStudent(s *models.Student) error
	SetEntitlements(emails []string, amount int) (int64, error)

	MenuItem(id uint) (models.MenuItem, error)
	// SaveMenuItem persists Stock and SelectionCount only.
	SaveMenuItem(item *models.MenuItem) error

	Reservation(email, date string) (models.DayReservation, error)
	CreateReservation(r *models.DayReservation) error

	FulfillmentByEvent(eventID string) (models.FulfillmentRecord, error)
	AppendFulfillment(rec *models.FulfillmentRecord) error
}

type Locker interface {
	// Update locks keys in OrderKeys order, runs fn and commits its writes
	// atomically. Any error from fn discards every write.
	Update(ctx context.Context, keys []LockKey, fn func(tx Tx) error) error
}

type CatalogStore interface {
	// Catalog lists every menu item by ascending ID.
	Catalog(ctx context.Context) ([]models.MenuItem, error)
	MenuItem(ctx context.Context, id uint) (models.MenuItem, error)
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	// UpdateMenuItemDetails writes descriptive fields, never counters.
	UpdateMenuItemDetails(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id uint) error
}

type RosterStore interface {
	CreateStudent(ctx context.Context, s *models.Student) error
	Student(ctx context.Context, email string) (models.Student, error)
	StudentByRFID(ctx context.Context, rfid string) (models.Student, error)
	// Students lists by ascending ID; school filters case-insensitively when set.
	Students(ctx context.Context, school string) ([]models.Student, error)
}

type ReservationReader interface {
	Reservation(ctx context.Context, email, date string) (models.DayReservation, error)
}

type HistoryReader interface {
	// History returns fulfillment records in commit order.
	History(ctx context.Context) ([]models.FulfillmentRecord, error)
}

// EntitlementResetter is implemented by stores that reset every student's
// entitlement in one statement, serialized by row locks rather than one
// lock key per student. It returns ErrConflict when a row stays locked.
type EntitlementResetter interface {
	ResetEntitlements(ctx context.Context, amount int) (int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	// BootstrapUser creates u only if no user with u.Role exists yet,
	// otherwise ErrBootstrapClosed. The check and insert are atomic.
	BootstrapUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
	User(ctx context.Context, id uint) (models.User, error)
}

type AuditFilter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Limit      int
}

type AuditStore interface {
	WriteAudit(ctx context.Context, entry *models.AuditLog) error
	// AuditLogs returns newest first.
	AuditLogs(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error)
}

type Store interface {
	Locker
	CatalogStore
	RosterStore
	ReservationReader
	HistoryReader
	UserStore
	AuditStore
}
