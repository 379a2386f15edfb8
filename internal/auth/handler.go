package auth

import (
	"errors"
	"log"
	"strings"

	"makan-backend/internal/menu"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterStudentRequest struct {
	RFIDNumber string `json:"rfid_number"`
	Name       string `json:"name"`
	NISN       string `json:"nisn"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	School     string `json:"school"`
	Allergies  string `json:"allergies"`
	PhotoURL   string `json:"photo_url"`
}

type RegisterCommitteeRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	School   string `json:"school"`
	PhotoURL string `json:"photo_url"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const minPasswordLength = 6

func RegisterStudentHandler(roster store.RosterStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterStudentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		body.RFIDNumber = strings.TrimSpace(body.RFIDNumber)
		body.Name = strings.TrimSpace(body.Name)

		if body.Email == "" || body.Name == "" || body.RFIDNumber == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "RFID, nama, email dan password wajib diisi")
		}
		if len(body.Password) < minPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "Password minimal 6 karakter")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Password gagal di-hash")
		}

		student := models.Student{
			RFIDNumber:   body.RFIDNumber,
			Name:         body.Name,
			NISN:         strings.TrimSpace(body.NISN),
			Email:        body.Email,
			PasswordHash: string(hash),
			School:       strings.TrimSpace(body.School),
			Allergies:    menu.NormalizeAllergens(body.Allergies),
			PhotoURL:     body.PhotoURL,
		}
		if err := roster.CreateStudent(c.UserContext(), &student); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fiber.NewError(fiber.StatusConflict, "Email atau RFID sudah terdaftar")
			}
			log.Printf("[ERROR] register student %s: %v", body.Email, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Pelajar gagal dibuat")
		}

		return c.Status(fiber.StatusCreated).JSON(student)
	}
}

func StudentLoginHandler(secret string, roster store.RosterStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
		}

		student, err := roster.Student(c.UserContext(), strings.TrimSpace(body.Email))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email atau password salah")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email atau password salah")
		}

		token, err := GenerateToken(secret, Identity{ID: student.ID, Email: student.Email, Role: models.RoleStudent})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token gagal dibuat")
		}

		return c.JSON(fiber.Map{
			"token":   token,
			"student": student,
		})
	}
}

// committeeFromBody validates the request and hashes the password.
func committeeFromBody(c *fiber.Ctx) (models.User, error) {
	var body RegisterCommitteeRequest
	if err := c.BodyParser(&body); err != nil {
		return models.User{}, fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	body.Name = strings.TrimSpace(body.Name)

	if body.Email == "" || body.Name == "" || body.Password == "" {
		return models.User{}, fiber.NewError(fiber.StatusBadRequest, "Nama, email dan password wajib diisi")
	}
	if len(body.Password) < minPasswordLength {
		return models.User{}, fiber.NewError(fiber.StatusBadRequest, "Password minimal 6 karakter")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fiber.NewError(fiber.StatusInternalServerError, "Password gagal di-hash")
	}

	return models.User{
		Name:         body.Name,
		Email:        body.Email,
		PasswordHash: string(hash),
		School:       strings.TrimSpace(body.School),
		PhotoURL:     body.PhotoURL,
		Role:         models.RoleCommittee,
	}, nil
}

func committeeCreated(c *fiber.Ctx, user models.User) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
	})
}

// BootstrapCommitteeHandler is public but only creates the very first
// committee account. After that it answers 403.
func BootstrapCommitteeHandler(users store.UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := committeeFromBody(c)
		if err != nil {
			return err
		}

		if err := users.BootstrapUser(c.UserContext(), &user); err != nil {
			switch {
			case errors.Is(err, store.ErrBootstrapClosed):
				return fiber.NewError(fiber.StatusForbidden, "Panitia pertama sudah terdaftar, minta akun dari panitia")
			case errors.Is(err, store.ErrDuplicate):
				return fiber.NewError(fiber.StatusConflict, "Email sudah terdaftar")
			}
			log.Printf("[ERROR] bootstrap committee %s: %v", user.Email, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Panitia gagal dibuat")
		}

		log.Printf("[INFO] first committee account created: %s", user.Email)
		return committeeCreated(c, user)
	}
}

// RegisterCommitteeHandler adds a committee member. Mount it behind
// RequireRole(models.RoleCommittee).
func RegisterCommitteeHandler(users store.UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := committeeFromBody(c)
		if err != nil {
			return err
		}

		if err := users.CreateUser(c.UserContext(), &user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fiber.NewError(fiber.StatusConflict, "Email sudah terdaftar")
			}
			log.Printf("[ERROR] register committee %s: %v", user.Email, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Panitia gagal dibuat")
		}

		return committeeCreated(c, user)
	}
}

func CommitteeLoginHandler(secret string, users store.UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Body permintaan tidak valid")
		}

		user, err := users.UserByEmail(c.UserContext(), strings.TrimSpace(body.Email))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email atau password salah")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Email atau password salah")
		}

		token, err := GenerateToken(secret, Identity{ID: user.ID, Email: user.Email, Role: user.Role})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Token gagal dibuat")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":     user.ID,
				"name":   user.Name,
				"email":  user.Email,
				"school": user.School,
				"role":   user.Role,
			},
		})
	}
}
