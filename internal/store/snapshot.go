package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"makan-backend/internal/models"
)

// snapshot is the on-disk form of Memory, rewritten after each mutation.
type snapshot struct {
	Students     []models.Student           `json:"students"`
	Items        []models.MenuItem          `json:"items"`
	Reservations []models.DayReservation    `json:"reservations"`
	History      []models.FulfillmentRecord `json:"history"`
	Users        []models.User              `json:"users"`
	Audit        []models.AuditLog          `json:"audit"`
	Seq          sequences                  `json:"seq"`
}

func (m *Memory) loadSnapshot() error {
	raw, err := os.ReadFile(m.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", m.snapshotPath, err)
	}
	for _, s := range snap.Students {
		m.students[s.Email] = s
	}
	for _, it := range snap.Items {
		m.items[it.ID] = it
	}
	for _, r := range snap.Reservations {
		m.reservations[reservationID(r.StudentEmail, r.Date)] = r
	}
	for i, rec := range snap.History {
		m.events[rec.EventID] = i
	}
	m.history = snap.History
	for _, u := range snap.Users {
		m.users[u.Email] = u
	}
	m.audit = snap.Audit
	m.seq = snap.Seq
	return nil
}

// persistLocked must be called with m.mu held for writing. The in-memory
// state is authoritative; a failed write is logged and retried on the next
// mutation.
func (m *Memory) persistLocked() {
	if m.snapshotPath == "" {
		return
	}
	if err := m.writeSnapshot(); err != nil {
		log.Printf("memory store: snapshot %s not written: %v", m.snapshotPath, err)
	}
}

func (m *Memory) writeSnapshot() error {
	snap := snapshot{History: m.history, Audit: m.audit, Seq: m.seq}
	for _, s := range m.students {
		snap.Students = append(snap.Students, s)
	}
	for _, it := range m.items {
		snap.Items = append(snap.Items, it)
	}
	for _, r := range m.reservations {
		snap.Reservations = append(snap.Reservations, r)
	}
	for _, u := range m.users {
		snap.Users = append(snap.Users, u)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.snapshotPath), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), m.snapshotPath)
}
