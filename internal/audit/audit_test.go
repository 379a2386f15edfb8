package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"makan-backend/internal/auth"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

func TestWriteEncodesBeforeAndAfter(t *testing.T) {
	mem, err := store.NewMemory(store.MemoryOptions{})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	l := NewLogger(mem)
	ctx := context.Background()

	err = l.Write(ctx, LogOptions{
		EntityType: EntityMenuItem,
		EntityID:   3,
		Action:     models.AuditActionUpdate,
		Before:     map[string]int{"stock": 1},
		After:      map[string]int{"stock": 4},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := l.Write(ctx, LogOptions{EntityType: EntityStudent, Action: models.AuditActionRestock}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	logs, _ := mem.AuditLogs(ctx, store.AuditFilter{EntityType: EntityMenuItem})
	if len(logs) != 1 {
		t.Fatalf("got %d menu logs", len(logs))
	}
	if string(logs[0].BeforeData) != `{"stock":1}` || string(logs[0].AfterData) != `{"stock":4}` {
		t.Fatalf("unexpected payloads %q %q", logs[0].BeforeData, logs[0].AfterData)
	}

	logs, _ = mem.AuditLogs(ctx, store.AuditFilter{EntityType: EntityStudent})
	if string(logs[0].BeforeData) != "null" || string(logs[0].AfterData) != "null" {
		t.Fatalf("nil payloads should be null, got %q %q", logs[0].BeforeData, logs[0].AfterData)
	}
}

func TestListAuditLogsHandler(t *testing.T) {
	mem, err := store.NewMemory(store.MemoryOptions{})
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	l := NewLogger(mem)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(7))
		c.Locals(auth.CtxEmailKey, "ani@sekolah.id")
		return c.Next()
	})
	app.Post("/items/:id", func(c *fiber.Ctx) error {
		id, _ := c.ParamsInt("id")
		l.Record(c, LogOptions{EntityType: EntityMenuItem, EntityID: uint(id), Action: models.AuditActionCreate})
		return c.SendStatus(fiber.StatusCreated)
	})
	app.Get("/audit-logs", ListAuditLogsHandler(mem))

	for _, path := range []string{"/items/1", "/items/2", "/items/2"} {
		if _, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil), -1); err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/audit-logs?entity_id=2", nil), -1)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	var got []AuditLogResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ID < got[1].ID {
		t.Fatal("entries should be newest first")
	}
	if got[0].UserID != 7 || got[0].UserName != "ani@sekolah.id" {
		t.Fatalf("actor not recorded: %+v", got[0])
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/audit-logs?limit=0", nil), -1)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bad limit: status %d", resp.StatusCode)
	}
}
