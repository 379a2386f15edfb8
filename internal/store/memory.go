package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"makan-backend/internal/models"
)

// Memory is an in-process Store. Writers are serialized per LockKey through
// one-slot channels; committed state sits behind an RWMutex so readers only
// ever see whole commits. With a snapshot path it survives restarts.
type Memory struct {
	lockWait time.Duration

	locksMu sync.Mutex
	locks   map[LockKey]chan struct{}

	mu           sync.RWMutex
	students     map[string]models.Student
	items        map[uint]models.MenuItem
	reservations map[string]models.DayReservation
	history      []models.FulfillmentRecord
	events       map[string]int
	users        map[string]models.User
	audit        []models.AuditLog
	seq          sequences

	snapshotPath string
}

type sequences struct {
	Student     uint `json:"student"`
	Item        uint `json:"item"`
	Reservation uint `json:"reservation"`
	History     uint `json:"history"`
	User        uint `json:"user"`
	Audit       uint `json:"audit"`
}

type MemoryOptions struct {
	// LockWait bounds how long Update waits for one key before ErrConflict.
	LockWait time.Duration
	// SnapshotPath, when set, is rewritten after every commit.
	SnapshotPath string
}

const DefaultLockWait = 50 * time.Millisecond

func NewMemory(opts MemoryOptions) (*Memory, error) {
	if opts.LockWait <= 0 {
		opts.LockWait = DefaultLockWait
	}
	m := &Memory{
		lockWait:     opts.LockWait,
		locks:        make(map[LockKey]chan struct{}),
		students:     make(map[string]models.Student),
		items:        make(map[uint]models.MenuItem),
		reservations: make(map[string]models.DayReservation),
		events:       make(map[string]int),
		users:        make(map[string]models.User),
		snapshotPath: opts.SnapshotPath,
	}
	if opts.SnapshotPath != "" {
		if err := m.loadSnapshot(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func reservationID(email, date string) string {
	return strings.ToLower(email) + "|" + date
}

func (m *Memory) lockFor(k LockKey) chan struct{} {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	ch, ok := m.locks[k]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[k] = ch
	}
	return ch
}

func (m *Memory) acquire(ctx context.Context, keys []LockKey) (func(), error) {
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, k := range keys {
		ch := m.lockFor(k)
		timer := time.NewTimer(m.lockWait)
		select {
		case ch <- struct{}{}:
			timer.Stop()
			held = append(held, ch)
		case <-timer.C:
			release()
			return nil, fmt.Errorf("%w: %s", ErrConflict, k)
		case <-ctx.Done():
			timer.Stop()
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (m *Memory) Update(ctx context.Context, keys []LockKey, fn func(tx Tx) error) error {
	ordered := OrderKeys(keys)
	release, err := m.acquire(ctx, ordered)
	if err != nil {
		return err
	}
	defer release()

	tx := newMemTx(m, ordered)
	if err := fn(tx); err != nil {
		return err
	}
	// A caller that gave up while fn ran gets nothing committed.
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for email, staged := range tx.students {
		cur, ok := m.students[email]
		if !ok {
			continue
		}
		cur.Entitlement = staged.Entitlement
		cur.SelectedItemID = staged.SelectedItemID
		cur.UpdatedAt = time.Now()
		m.students[email] = cur
	}
	for id, staged := range tx.items {
		cur, ok := m.items[id]
		if !ok {
			continue
		}
		cur.Stock = staged.Stock
		cur.SelectionCount = staged.SelectionCount
		cur.UpdatedAt = time.Now()
		m.items[id] = cur
	}
	for _, r := range tx.reservations {
		m.seq.Reservation++
		r.ID = m.seq.Reservation
		m.reservations[reservationID(r.StudentEmail, r.Date)] = *r
	}
	for _, rec := range tx.history {
		m.seq.History++
		rec.ID = m.seq.History
		m.events[rec.EventID] = len(m.history)
		m.history = append(m.history, *rec)
	}

	m.persistLocked()
	return nil
}

// Catalog

func (m *Memory) Catalog(ctx context.Context) ([]models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.MenuItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MenuItem(ctx context.Context, id uint) (models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return models.MenuItem{}, ErrNotFound
	}
	return it, nil
}

func (m *Memory) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.Item++
	now := time.Now()
	item.ID = m.seq.Item
	item.CreatedAt = now
	item.UpdatedAt = now
	m.items[item.ID] = *item
	m.persistLocked()
	return nil
}

// UpdateMenuItemDetails takes the item lock so it cannot interleave with a
// ledger transaction on the same item.
func (m *Memory) UpdateMenuItemDetails(ctx context.Context, item *models.MenuItem) error {
	release, err := m.acquire(ctx, []LockKey{ItemKey(item.ID)})
	if err != nil {
		return err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = item.Name
	cur.Allergens = item.Allergens
	cur.Description = item.Description
	cur.ImageURL = item.ImageURL
	cur.UpdatedAt = time.Now()
	m.items[item.ID] = cur
	*item = cur
	m.persistLocked()
	return nil
}

func (m *Memory) DeleteMenuItem(ctx context.Context, id uint) error {
	release, err := m.acquire(ctx, []LockKey{ItemKey(id)})
	if err != nil {
		return err
	}
	defer release()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	m.persistLocked()
	return nil
}

// Roster

func (m *Memory) CreateStudent(ctx context.Context, s *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(s.Email)
	if _, ok := m.students[email]; ok {
		return fmt.Errorf("%w: email %s", ErrDuplicate, email)
	}
	for _, other := range m.students {
		if other.RFIDNumber == s.RFIDNumber {
			return fmt.Errorf("%w: rfid %s", ErrDuplicate, s.RFIDNumber)
		}
	}
	m.seq.Student++
	now := time.Now()
	s.ID = m.seq.Student
	s.Email = email
	s.CreatedAt = now
	s.UpdatedAt = now
	m.students[email] = *s
	m.persistLocked()
	return nil
}

func (m *Memory) Student(ctx context.Context, email string) (models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[strings.ToLower(email)]
	if !ok {
		return models.Student{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) StudentByRFID(ctx context.Context, rfid string) (models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if s.RFIDNumber == rfid {
			return s, nil
		}
	}
	return models.Student{}, ErrNotFound
}

func (m *Memory) Students(ctx context.Context, school string) ([]models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		if school != "" && !strings.EqualFold(s.School, school) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reservations and history

func (m *Memory) Reservation(ctx context.Context, email, date string) (models.DayReservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[reservationID(email, date)]
	if !ok {
		return models.DayReservation{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) History(ctx context.Context) ([]models.FulfillmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.FulfillmentRecord, len(m.history))
	copy(out, m.history)
	return out, nil
}

// Users

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createUserLocked(u)
}

func (m *Memory) BootstrapUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.users {
		if other.Role == u.Role {
			return ErrBootstrapClosed
		}
	}
	return m.createUserLocked(u)
}

func (m *Memory) createUserLocked(u *models.User) error {
	email := strings.ToLower(u.Email)
	if _, ok := m.users[email]; ok {
		return fmt.Errorf("%w: email %s", ErrDuplicate, email)
	}
	m.seq.User++
	now := time.Now()
	u.ID = m.seq.User
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[email] = *u
	m.persistLocked()
	return nil
}

func (m *Memory) UserByEmail(ctx context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) User(ctx context.Context, id uint) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}

// Audit

func (m *Memory) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.Audit++
	entry.ID = m.seq.Audit
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.audit = append(m.audit, *entry)
	m.persistLocked()
	return nil
}

func (m *Memory) AuditLogs(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.AuditLog{}
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != 0 && e.EntityID != filter.EntityID {
			continue
		}
		if filter.UserID != 0 && e.UserID != filter.UserID {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
