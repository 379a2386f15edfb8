package admin

import (
	"errors"
	"strings"

	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type StudentResponse struct {
	ID             uint   `json:"id"`
	RFIDNumber     string `json:"rfid_number"`
	Name           string `json:"name"`
	NISN           string `json:"nisn"`
	Email          string `json:"email"`
	School         string `json:"school"`
	Allergies      string `json:"allergies"`
	PhotoURL       string `json:"photo_url"`
	Entitlement    int    `json:"entitlement"`
	SelectedItemID *uint  `json:"selected_item_id"`
	CreatedAt      string `json:"created_at"`
}

func toStudentResponse(s models.Student) StudentResponse {
	return StudentResponse{
		ID:             s.ID,
		RFIDNumber:     s.RFIDNumber,
		Name:           s.Name,
		NISN:           s.NISN,
		Email:          s.Email,
		School:         s.School,
		Allergies:      s.Allergies,
		PhotoURL:       s.PhotoURL,
		Entitlement:    s.Entitlement,
		SelectedItemID: s.SelectedItemID,
		CreatedAt:      s.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// GET /api/admin/students?school=SDN%201
func ListStudentsHandler(roster store.RosterStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		students, err := roster.Students(c.UserContext(), strings.TrimSpace(c.Query("school")))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Data pelajar gagal dimuat")
		}

		res := make([]StudentResponse, 0, len(students))
		for _, s := range students {
			res = append(res, toStudentResponse(s))
		}
		return c.JSON(res)
	}
}

// GET /api/admin/students/rfid/:rfid
func StudentByRFIDHandler(roster store.RosterStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rfid := strings.TrimSpace(c.Params("rfid"))
		if rfid == "" {
			return fiber.NewError(fiber.StatusBadRequest, "RFID wajib diisi")
		}

		s, err := roster.StudentByRFID(c.UserContext(), rfid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Pelajar tidak ditemukan")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Data pelajar gagal dimuat")
		}
		return c.JSON(toStudentResponse(s))
	}
}
