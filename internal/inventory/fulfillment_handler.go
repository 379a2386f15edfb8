package inventory

import (
	"context"
	"fmt"
	"strings"

	"makan-backend/internal/audit"
	"makan-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Roster resolves a scanned card or typed email to a student.
type Roster interface {
	Student(ctx context.Context, email string) (models.Student, error)
	StudentByRFID(ctx context.Context, rfid string) (models.Student, error)
}

type FulfillRequest struct {
	Email      string `json:"email"`
	RFIDNumber string `json:"rfid_number"`
}

type RestockRequest struct {
	Amount *int `json:"amount"`
}

const idempotencyHeader = "Idempotency-Key"

// POST /api/admin/fulfillments
// Either email or rfid_number identifies the student. Resending the same
// Idempotency-Key returns the original record.
func FulfillHandler(ledger *Ledger, roster Roster) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body FulfillRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
		}

		email := strings.TrimSpace(body.Email)
		rfid := strings.TrimSpace(body.RFIDNumber)
		if email == "" && rfid == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Email atau RFID wajib diisi")
		}

		if email == "" {
			st, err := roster.StudentByRFID(c.UserContext(), rfid)
			if err != nil {
				return httpError(err)
			}
			email = st.Email
		}

		eventID := strings.TrimSpace(c.Get(idempotencyHeader))
		if len(eventID) > 64 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key maksimal 64 karakter")
		}

		rec, err := ledger.Fulfill(c.UserContext(), email, FulfillOptions{EventID: eventID})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// POST /api/admin/restock
// Without an amount every student is reset to defaultAmount meals.
func RestockHandler(ledger *Ledger, defaultAmount int, auditLog *audit.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RestockRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
			}
		}
		amount := defaultAmount
		if body.Amount != nil {
			amount = *body.Amount
		}

		n, err := ledger.RestockAll(c.UserContext(), amount)
		if err != nil {
			return httpError(err)
		}

		auditLog.Record(c, audit.LogOptions{
			EntityType:  audit.EntityStudent,
			Action:      models.AuditActionRestock,
			Description: fmt.Sprintf("Jatah makan %d pelajar diatur ke %d", n, amount),
			After:       fiber.Map{"amount": amount, "updated": n},
		})
		return c.JSON(fiber.Map{
			"updated": n,
			"amount":  amount,
		})
	}
}

// GET /api/admin/history
func HistoryHandler(ledger *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := ledger.History(c.UserContext())
		if err != nil {
			return httpError(err)
		}
		if records == nil {
			records = []models.FulfillmentRecord{}
		}
		return c.JSON(records)
	}
}
