package main

import (
	"log"
	"os"
	"strings"

	"makan-backend/internal/admin"
	"makan-backend/internal/audit"
	"makan-backend/internal/auth"
	"makan-backend/internal/calendar"
	"makan-backend/internal/config"
	"makan-backend/internal/inventory"
	"makan-backend/internal/media"
	"makan-backend/internal/models"
	"makan-backend/internal/reservation"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const uploadsPrefix = "/uploads"

func errorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
		})
	}
	log.Printf("Unexpected error [%v]: %v", c.Locals("requestid"), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Terjadi kesalahan pada server",
	})
}

func newApp(cfg *config.Config, st store.Store, cal *calendar.Calendar, images media.Store) *fiber.App {
	policy := store.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, Backoff: cfg.TxBackoff}

	reservations := reservation.New(st, cal, policy, log.New(os.Stdout, "[reservation] ", log.LstdFlags))
	ledger := inventory.NewLedger(st, cal, policy, log.New(os.Stdout, "[inventory] ", log.LstdFlags))
	auditLog := audit.NewLogger(st)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    10 << 20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	if cfg.MediaDriver != config.MediaS3 {
		app.Static(uploadsPrefix, cfg.MenuImagePath)
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/students/register", auth.RegisterStudentHandler(st))
	api.Post("/auth/students/login", auth.StudentLoginHandler(cfg.JWTSecret, st))
	api.Post("/auth/committee/register", auth.BootstrapCommitteeHandler(st))
	api.Post("/auth/committee/login", auth.CommitteeLoginHandler(cfg.JWTSecret, st))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.Get("/menu", inventory.ListMenuHandler(st))
	protected.Get("/menu/:id", inventory.GetMenuHandler(st))

	// Student dashboard
	me := protected.Group("/me")
	me.Use(auth.RequireRole(models.RoleStudent))
	me.Get("/week", reservation.WeekHandler(reservations, st))
	me.Get("/days/:date", reservation.DayHandler(reservations, st))
	me.Post("/reservations", reservation.SelectHandler(reservations, st))

	// Committee
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleCommittee))

	adminRoutes.Post("/menu", inventory.CreateMenuHandler(st, auditLog))
	adminRoutes.Post("/menu/import", inventory.ImportMenuHandler(st, auditLog))
	adminRoutes.Put("/menu/:id", inventory.UpdateMenuHandler(st, auditLog))
	adminRoutes.Delete("/menu/:id", inventory.DeleteMenuHandler(st, auditLog))
	adminRoutes.Put("/menu/:id/stock", inventory.SetStockHandler(ledger, auditLog))
	adminRoutes.Post("/uploads", inventory.UploadImageHandler(images))

	adminRoutes.Post("/committee", auth.RegisterCommitteeHandler(st))

	adminRoutes.Get("/students", admin.ListStudentsHandler(st))
	adminRoutes.Get("/students/rfid/:rfid", admin.StudentByRFIDHandler(st))

	adminRoutes.Post("/fulfillments", inventory.FulfillHandler(ledger, st))
	adminRoutes.Post("/restock", inventory.RestockHandler(ledger, cfg.RestockAmount, auditLog))
	adminRoutes.Get("/history", inventory.HistoryHandler(ledger))
	adminRoutes.Get("/history/export", inventory.ExportHistoryHandler(ledger, st, cal.Location()))

	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler(st))

	return app
}
