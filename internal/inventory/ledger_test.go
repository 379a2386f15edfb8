package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"makan-backend/internal/calendar"
	"makan-backend/internal/models"
	"makan-backend/internal/store"
)

var fixedNow = time.Date(2025, time.January, 6, 11, 30, 0, 0, time.UTC)

type fixture struct {
	mem    *store.Memory
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem, err := store.NewMemory(store.MemoryOptions{LockWait: time.Second})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	clock := calendar.ClockFunc(func() time.Time { return fixedNow })
	ledger := NewLedger(mem, clock, store.RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond}, log.New(io.Discard, "", 0))
	return &fixture{mem: mem, ledger: ledger}
}

func (f *fixture) addItem(t *testing.T, name string, stock int) models.MenuItem {
	t.Helper()
	item := models.MenuItem{Name: name, Stock: stock}
	if err := f.mem.CreateMenuItem(context.Background(), &item); err != nil {
		t.Fatalf("CreateMenuItem: %v", err)
	}
	return item
}

func (f *fixture) addStudent(t *testing.T, email string, entitlement int, selected *uint) models.Student {
	t.Helper()
	st := models.Student{
		RFIDNumber:     "RF-" + email,
		Name:           email,
		Email:          email,
		Entitlement:    entitlement,
		SelectedItemID: selected,
	}
	if err := f.mem.CreateStudent(context.Background(), &st); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	return st
}

func ptr(id uint) *uint { return &id }

type ledgerState struct {
	entitlement    int
	stock          int
	selectionCount int
	history        int
}

func (f *fixture) state(t *testing.T, email string, itemID uint) ledgerState {
	t.Helper()
	ctx := context.Background()
	st, err := f.mem.Student(ctx, email)
	if err != nil {
		t.Fatalf("Student: %v", err)
	}
	item, err := f.mem.MenuItem(ctx, itemID)
	if err != nil {
		t.Fatalf("MenuItem: %v", err)
	}
	h, _ := f.mem.History(ctx)
	return ledgerState{st.Entitlement, item.Stock, item.SelectionCount, len(h)}
}

func TestFulfillRoundTrip(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, "Nasi Goreng", 3)
	f.addStudent(t, "budi@sekolah.id", 2, ptr(item.ID))

	before := f.state(t, "budi@sekolah.id", item.ID)
	rec, err := f.ledger.Fulfill(context.Background(), "BUDI@sekolah.id", FulfillOptions{})
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	after := f.state(t, "budi@sekolah.id", item.ID)

	want := ledgerState{
		entitlement:    before.entitlement - 1,
		stock:          before.stock - 1,
		selectionCount: before.selectionCount + 1,
		history:        before.history + 1,
	}
	if after != want {
		t.Fatalf("after = %+v, want %+v", after, want)
	}
	if rec.ID == 0 || rec.EventID == "" || rec.MenuItemID != item.ID || rec.StudentEmail != "budi@sekolah.id" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.CreatedAt.Equal(fixedNow) {
		t.Fatalf("record time %v, want %v", rec.CreatedAt, fixedNow)
	}
}

func TestFulfillPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty := f.addItem(t, "Soto", 0)
	full := f.addItem(t, "Bakso", 5)

	f.addStudent(t, "nosel@sekolah.id", 3, nil)
	f.addStudent(t, "zero@sekolah.id", 0, ptr(empty.ID))
	f.addStudent(t, "nostock@sekolah.id", 3, ptr(empty.ID))
	f.addStudent(t, "ghostitem@sekolah.id", 3, ptr(999))

	tests := []struct {
		email string
		want  error
	}{
		{"nosel@sekolah.id", ErrNoSelection},
		// Entitlement is checked before stock.
		{"zero@sekolah.id", ErrEntitlementExhausted},
		{"nostock@sekolah.id", ErrStockExhausted},
		{"ghostitem@sekolah.id", store.ErrNotFound},
		{"unknown@sekolah.id", store.ErrNotFound},
	}
	for _, tt := range tests {
		if _, err := f.ledger.Fulfill(ctx, tt.email, FulfillOptions{}); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.email, err, tt.want)
		}
	}

	if h, _ := f.mem.History(ctx); len(h) != 0 {
		t.Fatalf("failed fulfillments appended %d records", len(h))
	}
	if got := f.state(t, "nostock@sekolah.id", full.ID); got.stock != 5 || got.entitlement != 3 {
		t.Fatalf("state mutated by failures: %+v", got)
	}
}

func TestEntitlementExhaustedThenRestock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, "Mie Ayam", 10)
	f.addStudent(t, "sari@sekolah.id", 0, ptr(item.ID))
	f.addStudent(t, "tono@sekolah.id", 2, nil)

	before := f.state(t, "sari@sekolah.id", item.ID)
	if _, err := f.ledger.Fulfill(ctx, "sari@sekolah.id", FulfillOptions{}); !errors.Is(err, ErrEntitlementExhausted) {
		t.Fatalf("got %v, want ErrEntitlementExhausted", err)
	}
	if got := f.state(t, "sari@sekolah.id", item.ID); got != before {
		t.Fatalf("failed fulfill mutated state: %+v -> %+v", before, got)
	}

	n, err := f.ledger.RestockAll(ctx, 5)
	if err != nil {
		t.Fatalf("RestockAll: %v", err)
	}
	if n != 2 {
		t.Fatalf("restocked %d students, want 2", n)
	}
	if got := f.state(t, "sari@sekolah.id", item.ID); got.entitlement != 5 || got.stock != 10 {
		t.Fatalf("restock touched the wrong counters: %+v", got)
	}

	if _, err := f.ledger.Fulfill(ctx, "sari@sekolah.id", FulfillOptions{}); err != nil {
		t.Fatalf("Fulfill after restock: %v", err)
	}
	if got := f.state(t, "sari@sekolah.id", item.ID); got.entitlement != 4 || got.stock != 9 {
		t.Fatalf("after fulfill: %+v", got)
	}
}

func TestConcurrentFulfillLastUnit(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, "Ayam Bakar", 1)
	f.addStudent(t, "a@sekolah.id", 1, ptr(item.ID))
	f.addStudent(t, "b@sekolah.id", 1, ptr(item.ID))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, email := range []string{"a@sekolah.id", "b@sekolah.id"} {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			_, errs[i] = f.ledger.Fulfill(context.Background(), email, FulfillOptions{})
		}(i, email)
	}
	wg.Wait()

	ok, exhausted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStockExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || exhausted != 1 {
		t.Fatalf("ok=%d exhausted=%d, want 1 and 1", ok, exhausted)
	}

	it, _ := f.mem.MenuItem(context.Background(), item.ID)
	h, _ := f.mem.History(context.Background())
	if it.Stock != 0 || it.SelectionCount != 1 || len(h) != 1 {
		t.Fatalf("stock=%d selections=%d history=%d", it.Stock, it.SelectionCount, len(h))
	}
}

func TestCountersNeverGoNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, "Gado-gado", 10)
	const students = 30
	for i := 0; i < students; i++ {
		f.addStudent(t, fmt.Sprintf("s%02d@sekolah.id", i), 2, ptr(item.ID))
	}

	var wg sync.WaitGroup
	for i := 0; i < students; i++ {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(email string) {
				defer wg.Done()
				_, err := f.ledger.Fulfill(ctx, email, FulfillOptions{})
				if err != nil && !errors.Is(err, ErrStockExhausted) && !errors.Is(err, ErrEntitlementExhausted) {
					t.Errorf("%s: %v", email, err)
				}
			}(fmt.Sprintf("s%02d@sekolah.id", i))
		}
	}
	wg.Wait()

	it, _ := f.mem.MenuItem(ctx, item.ID)
	h, _ := f.mem.History(ctx)
	if it.Stock != 0 || it.SelectionCount != 10 || len(h) != 10 {
		t.Fatalf("stock=%d selections=%d history=%d", it.Stock, it.SelectionCount, len(h))
	}

	all, _ := f.mem.Students(ctx, "")
	consumed := 0
	for _, s := range all {
		if s.Entitlement < 0 {
			t.Fatalf("%s has negative entitlement %d", s.Email, s.Entitlement)
		}
		consumed += 2 - s.Entitlement
	}
	if consumed != 10 {
		t.Fatalf("entitlement consumed %d, want 10", consumed)
	}
}

func TestFulfillIsIdempotentPerEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, "Rendang", 5)
	f.addStudent(t, "rani@sekolah.id", 3, ptr(item.ID))
	f.addStudent(t, "other@sekolah.id", 3, ptr(item.ID))

	first, err := f.ledger.Fulfill(ctx, "rani@sekolah.id", FulfillOptions{EventID: "scan-001"})
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	again, err := f.ledger.Fulfill(ctx, "rani@sekolah.id", FulfillOptions{EventID: "scan-001"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay returned record %d, want %d", again.ID, first.ID)
	}
	if got := f.state(t, "rani@sekolah.id", item.ID); got.entitlement != 2 || got.stock != 4 || got.history != 1 {
		t.Fatalf("replay consumed again: %+v", got)
	}

	if _, err := f.ledger.Fulfill(ctx, "other@sekolah.id", FulfillOptions{EventID: "scan-001"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("event reused for another student: got %v", err)
	}
}

func TestRestockRacesWithFulfill(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		item := f.addItem(t, "Pecel", 10)
		f.addStudent(t, "dina@sekolah.id", 0, ptr(item.ID))

		var wg sync.WaitGroup
		var fulfillErr, restockErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, fulfillErr = f.ledger.Fulfill(ctx, "dina@sekolah.id", FulfillOptions{})
		}()
		go func() {
			defer wg.Done()
			_, restockErr = f.ledger.RestockAll(ctx, 5)
		}()
		wg.Wait()

		if restockErr != nil {
			t.Fatalf("RestockAll: %v", restockErr)
		}
		got := f.state(t, "dina@sekolah.id", item.ID)
		switch {
		case fulfillErr == nil:
			if got.entitlement != 4 || got.stock != 9 {
				t.Fatalf("fulfilled after restock but state %+v", got)
			}
		case errors.Is(fulfillErr, ErrEntitlementExhausted):
			if got.entitlement != 5 || got.stock != 10 {
				t.Fatalf("fulfill saw old entitlement but state %+v", got)
			}
		default:
			t.Fatalf("Fulfill: %v", fulfillErr)
		}
	}
}

func TestRestockAndSetStockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, "Sayur Asem", 2)

	if _, err := f.ledger.RestockAll(ctx, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative restock: %v", err)
	}
	if n, err := f.ledger.RestockAll(ctx, 5); err != nil || n != 0 {
		t.Fatalf("restock without students: n=%d err=%v", n, err)
	}
	if _, err := f.ledger.SetStock(ctx, item.ID, -3); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative stock: %v", err)
	}
	if _, err := f.ledger.SetStock(ctx, 404, 3); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown item: %v", err)
	}

	updated, err := f.ledger.SetStock(ctx, item.ID, 40)
	if err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	stored, _ := f.mem.MenuItem(ctx, item.ID)
	if updated.Stock != 40 || stored.Stock != 40 || stored.Name != "Sayur Asem" {
		t.Fatalf("updated=%+v stored=%+v", updated, stored)
	}
}

func TestHistoryIsChronological(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.addItem(t, "Nasi Uduk", 10)
	for _, email := range []string{"c@sekolah.id", "a@sekolah.id", "b@sekolah.id"} {
		f.addStudent(t, email, 1, ptr(item.ID))
		if _, err := f.ledger.Fulfill(ctx, email, FulfillOptions{}); err != nil {
			t.Fatalf("Fulfill %s: %v", email, err)
		}
	}

	h, err := f.ledger.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	got := []string{h[0].StudentEmail, h[1].StudentEmail, h[2].StudentEmail}
	want := []string{"c@sekolah.id", "a@sekolah.id", "b@sekolah.id"}
	for i := range want {
		if got[i] != want[i] || h[i].ID != uint(i+1) {
			t.Fatalf("history[%d] = %s (id %d), want %s", i, got[i], h[i].ID, want[i])
		}
	}
}

// resettingStore resets entitlements without per-student keys, the way the
// postgres store does, and reports a held row lock on the first calls.
type resettingStore struct {
	*store.Memory
	busy  int
	calls int
}

func (r *resettingStore) ResetEntitlements(ctx context.Context, amount int) (int64, error) {
	r.calls++
	if r.calls <= r.busy {
		return 0, fmt.Errorf("%w: students row locked", store.ErrConflict)
	}
	students, err := r.Students(ctx, "")
	if err != nil {
		return 0, err
	}
	emails := make([]string, 0, len(students))
	keys := make([]store.LockKey, 0, len(students))
	for _, s := range students {
		emails = append(emails, s.Email)
		keys = append(keys, store.StudentKey(s.Email))
	}
	var n int64
	err = r.Update(ctx, keys, func(tx store.Tx) error {
		n, err = tx.SetEntitlements(emails, amount)
		return err
	})
	return n, err
}

func TestRestockUsesBulkResetWhenAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.addStudent(t, fmt.Sprintf("murid%d@sekolah.id", i), i, nil)
	}

	rs := &resettingStore{Memory: f.mem, busy: 2}
	ledger := NewLedger(rs, calendar.ClockFunc(func() time.Time { return fixedNow }),
		store.RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond}, log.New(io.Discard, "", 0))

	n, err := ledger.RestockAll(ctx, 4)
	if err != nil {
		t.Fatalf("RestockAll: %v", err)
	}
	if n != 3 || rs.calls != 3 {
		t.Fatalf("updated %d students in %d calls, want 3 in 3", n, rs.calls)
	}
	students, _ := f.mem.Students(ctx, "")
	for _, s := range students {
		if s.Entitlement != 4 {
			t.Fatalf("%s has %d meals, want 4", s.Email, s.Entitlement)
		}
	}

	rs.calls, rs.busy = 0, 10
	if _, err := ledger.RestockAll(ctx, 1); !errors.Is(err, store.ErrTransientConflict) {
		t.Fatalf("row lock never released: got %v, want ErrTransientConflict", err)
	}
	if rs.calls != 5 {
		t.Fatalf("retried %d times, want 5", rs.calls)
	}
}
