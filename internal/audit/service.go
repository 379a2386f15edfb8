package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"makan-backend/internal/auth"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

const (
	EntityMenuItem = "menu_item"
	EntityStudent  = "student"
)

// Logger appends committee actions to the audit trail.
type Logger struct {
	store store.AuditStore
}

func NewLogger(st store.AuditStore) *Logger {
	return &Logger{store: st}
}

func (l *Logger) Write(ctx context.Context, opts LogOptions) error {
	// jsonb needs "null", not an empty value
	beforeData := datatypes.JSON("null")
	afterData := datatypes.JSON("null")

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeData = b
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterData = b
		}
	}

	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeData,
		AfterData:   afterData,
	}
	if err := l.store.WriteAudit(ctx, &entry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record fills the actor from the request and writes the entry. A failed
// write is logged and never fails the request that triggered it.
func (l *Logger) Record(c *fiber.Ctx, opts LogOptions) {
	if l == nil {
		return
	}
	opts.UserID = auth.CurrentUserID(c)
	opts.UserName = auth.CurrentEmail(c)
	if err := l.Write(c.UserContext(), opts); err != nil {
		log.Printf("[WARN] audit %s %s#%d: %v", opts.Action, opts.EntityType, opts.EntityID, err)
	}
}
