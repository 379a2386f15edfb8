package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the postgres implementation of store.Store. Update serializes on
// transaction-scoped advisory locks, one per LockKey, taken in key order.
type Store struct {
	db       *gorm.DB
	lockWait time.Duration
}

func NewStore(db *gorm.DB, lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = store.DefaultLockWait
	}
	return &Store{db: db, lockWait: lockWait}
}

var (
	_ store.Store               = (*Store)(nil)
	_ store.EntitlementResetter = (*Store)(nil)
)

const advisoryLockSQL = "SELECT pg_advisory_xact_lock(hashtextextended(?, 0))"

func lockTimeoutSQL(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

func (s *Store) Update(ctx context.Context, keys []store.LockKey, fn func(tx store.Tx) error) error {
	ordered := store.OrderKeys(keys)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(lockTimeoutSQL(s.lockWait)).Error; err != nil {
			return err
		}
		locked := make(map[store.LockKey]struct{}, len(ordered))
		for _, k := range ordered {
			if err := tx.Exec(advisoryLockSQL, k.String()).Error; err != nil {
				return err
			}
			locked[k] = struct{}{}
		}
		return fn(&gormTx{db: tx, locked: locked})
	})
	return translate(err)
}

// translate maps driver errors onto store kinds and passes everything else
// through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01", "40001": // lock_not_available, deadlock_detected, serialization_failure
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

// snapshot runs fn in a read-only repeatable-read transaction so multi-row
// reads never straddle a commit.
func (s *Store) snapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return translate(s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	}))
}

// Catalog

func (s *Store) Catalog(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := s.db.WithContext(ctx).Order("id asc").Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (s *Store) MenuItem(ctx context.Context, id uint) (models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	return item, translate(err)
}

func (s *Store) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	return translate(s.db.WithContext(ctx).Create(item).Error)
}

func (s *Store) UpdateMenuItemDetails(ctx context.Context, item *models.MenuItem) error {
	res := s.db.WithContext(ctx).Model(&models.MenuItem{}).
		Where("id = ?", item.ID).
		Select("name", "allergens", "description", "image_url").
		Updates(item)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return translate(s.db.WithContext(ctx).First(item, "id = ?", item.ID).Error)
}

func (s *Store) DeleteMenuItem(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.MenuItem{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Roster

func (s *Store) CreateStudent(ctx context.Context, st *models.Student) error {
	st.Email = strings.ToLower(st.Email)
	return translate(s.db.WithContext(ctx).Create(st).Error)
}

func (s *Store) Student(ctx context.Context, email string) (models.Student, error) {
	var st models.Student
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&st).Error
	return st, translate(err)
}

func (s *Store) StudentByRFID(ctx context.Context, rfid string) (models.Student, error) {
	var st models.Student
	err := s.db.WithContext(ctx).Where("rfid_number = ?", rfid).First(&st).Error
	return st, translate(err)
}

func (s *Store) Students(ctx context.Context, school string) ([]models.Student, error) {
	dbq := s.db.WithContext(ctx).Model(&models.Student{})
	if school != "" {
		dbq = dbq.Where("LOWER(school) = LOWER(?)", school)
	}
	var students []models.Student
	if err := dbq.Order("id asc").Find(&students).Error; err != nil {
		return nil, translate(err)
	}
	return students, nil
}

// ResetEntitlements is the bulk restock. The UPDATE row-locks every student,
// and gormTx.Student reads FOR UPDATE, so a fulfillment sees the entitlement
// either before or after the reset.
func (s *Store) ResetEntitlements(ctx context.Context, amount int) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(lockTimeoutSQL(s.lockWait)).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Student{}).Where("1 = 1").Update("entitlement", amount)
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Reservations and history

func (s *Store) Reservation(ctx context.Context, email, date string) (models.DayReservation, error) {
	var r models.DayReservation
	err := s.db.WithContext(ctx).
		Where("student_email = ? AND date = ?", strings.ToLower(email), date).
		First(&r).Error
	return r, translate(err)
}

func (s *Store) History(ctx context.Context) ([]models.FulfillmentRecord, error) {
	var records []models.FulfillmentRecord
	err := s.snapshot(ctx, func(tx *gorm.DB) error {
		return tx.Order("id asc").Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

const bootstrapLockKey = "users:bootstrap"

func (s *Store) BootstrapUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(u.Email)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(advisoryLockSQL, bootstrapLockKey).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.User{}).Where("role = ?", u.Role).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return store.ErrBootstrapClosed
		}
		return tx.Create(u).Error
	})
	return translate(err)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error
	return u, translate(err)
}

func (s *Store) User(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return u, translate(err)
}

// Audit

func (s *Store) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	// jsonb rejects empty values
	if len(entry.BeforeData) == 0 {
		entry.BeforeData = datatypes.JSON("null")
	}
	if len(entry.AfterData) == 0 {
		entry.AfterData = datatypes.JSON("null")
	}
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *Store) AuditLogs(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, error) {
	dbq := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.EntityType != "" {
		dbq = dbq.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != 0 {
		dbq = dbq.Where("entity_id = ?", filter.EntityID)
	}
	if filter.UserID != 0 {
		dbq = dbq.Where("user_id = ?", filter.UserID)
	}
	if filter.Limit > 0 {
		dbq = dbq.Limit(filter.Limit)
	}
	var logs []models.AuditLog
	if err := dbq.Order("id desc").Find(&logs).Error; err != nil {
		return nil, translate(err)
	}
	return logs, nil
}

// gormTx implements store.Tx on an open transaction.
type gormTx struct {
	db     *gorm.DB
	locked map[store.LockKey]struct{}
}

func (tx *gormTx) require(k store.LockKey) error {
	if _, ok := tx.locked[k]; !ok {
		return fmt.Errorf("write to %s without holding its lock", k)
	}
	return nil
}

func (tx *gormTx) Student(email string) (models.Student, error) {
	var st models.Student
	err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", strings.ToLower(email)).
		First(&st).Error
	return st, translate(err)
}

func (tx *gormTx) SaveStudent(st *models.Student) error {
	if err := tx.require(store.StudentKey(st.Email)); err != nil {
		return err
	}
	res := tx.db.Model(&models.Student{}).Where("id = ?", st.ID).Updates(map[string]interface{}{
		"entitlement":      st.Entitlement,
		"selected_item_id": st.SelectedItemID,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (tx *gormTx) SetEntitlements(emails []string, amount int) (int64, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	lowered := make([]string, 0, len(emails))
	for _, e := range emails {
		if err := tx.require(store.StudentKey(e)); err != nil {
			return 0, err
		}
		lowered = append(lowered, strings.ToLower(e))
	}
	res := tx.db.Model(&models.Student{}).Where("email IN ?", lowered).Update("entitlement", amount)
	return res.RowsAffected, translate(res.Error)
}

func (tx *gormTx) MenuItem(id uint) (models.MenuItem, error) {
	var item models.MenuItem
	err := tx.db.First(&item, "id = ?", id).Error
	return item, translate(err)
}

func (tx *gormTx) SaveMenuItem(item *models.MenuItem) error {
	if err := tx.require(store.ItemKey(item.ID)); err != nil {
		return err
	}
	res := tx.db.Model(&models.MenuItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"stock":           item.Stock,
		"selection_count": item.SelectionCount,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (tx *gormTx) Reservation(email, date string) (models.DayReservation, error) {
	var r models.DayReservation
	err := tx.db.Where("student_email = ? AND date = ?", strings.ToLower(email), date).First(&r).Error
	return r, translate(err)
}

func (tx *gormTx) CreateReservation(r *models.DayReservation) error {
	if err := tx.require(store.ReservationKey(r.StudentEmail, r.Date)); err != nil {
		return err
	}
	r.StudentEmail = strings.ToLower(r.StudentEmail)
	res := tx.db.Clauses(clause.OnConflict{DoNothing: true}).Create(r)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: reservation %s %s", store.ErrDuplicate, r.StudentEmail, r.Date)
	}
	return nil
}

func (tx *gormTx) FulfillmentByEvent(eventID string) (models.FulfillmentRecord, error) {
	var rec models.FulfillmentRecord
	err := tx.db.Where("event_id = ?", eventID).First(&rec).Error
	return rec, translate(err)
}

func (tx *gormTx) AppendFulfillment(rec *models.FulfillmentRecord) error {
	if err := tx.require(store.StudentKey(rec.StudentEmail)); err != nil {
		return err
	}
	return translate(tx.db.Create(rec).Error)
}
