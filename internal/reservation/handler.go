package reservation

import (
	"context"
	"errors"
	"log"

	"makan-backend/internal/auth"
	"makan-backend/internal/calendar"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

// Roster resolves the logged-in student so allergies are always current.
type Roster interface {
	Student(ctx context.Context, email string) (models.Student, error)
}

type SelectRequest struct {
	Date   string `json:"date"`
	ItemID uint   `json:"item_id"`
}

func currentStudent(c *fiber.Ctx, roster Roster) (Student, error) {
	email := auth.CurrentEmail(c)
	if email == "" {
		return Student{}, fiber.NewError(fiber.StatusUnauthorized, "Sesi tidak valid")
	}
	st, err := roster.Student(c.UserContext(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Student{}, fiber.NewError(fiber.StatusNotFound, "Pelajar tidak ditemukan")
		}
		return Student{}, err
	}
	return Student{Email: st.Email, Allergies: st.Allergies}, nil
}

// GET /api/me/week
func WeekHandler(svc *Service, roster Roster) fiber.Handler {
	return func(c *fiber.Ctx) error {
		student, err := currentStudent(c, roster)
		if err != nil {
			return err
		}
		days, err := svc.Week(c.UserContext(), student)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(days)
	}
}

// GET /api/me/days/:date
func DayHandler(svc *Service, roster Roster) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date, err := calendar.ParseDate(c.Params("date"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Format tanggal harus YYYY-MM-DD")
		}
		student, err := currentStudent(c, roster)
		if err != nil {
			return err
		}
		view, err := svc.View(c.UserContext(), student, date)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(view)
	}
}

// POST /api/me/reservations
func SelectHandler(svc *Service, roster Roster) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SelectRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
		}
		date, err := calendar.ParseDate(body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Format tanggal harus YYYY-MM-DD")
		}
		if body.ItemID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "item_id wajib diisi")
		}

		student, err := currentStudent(c, roster)
		if err != nil {
			return err
		}
		r, err := svc.Select(c.UserContext(), student, date, body.ItemID)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrWindowClosed):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Waktu pemesanan untuk tanggal ini sudah ditutup")
	case errors.Is(err, ErrAlreadySelected):
		return fiber.NewError(fiber.StatusConflict, "Menu untuk tanggal ini sudah dipilih")
	case errors.Is(err, ErrAllergenConflict):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Menu mengandung alergen Anda")
	case errors.Is(err, ErrInvalidSelection):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Menu tidak tersedia pada tanggal ini")
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Data tidak ditemukan")
	case errors.Is(err, store.ErrTransientConflict):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Sistem sedang sibuk, coba lagi")
	}
	log.Printf("[ERROR] reservation: %v", err)
	return fiber.NewError(fiber.StatusInternalServerError, "Terjadi kesalahan")
}
