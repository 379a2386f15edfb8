package inventory

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"makan-backend/internal/audit"
	"makan-backend/internal/menu"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type CreateMenuItemRequest struct {
	Name        string `json:"name"`
	Allergens   string `json:"allergens"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Stock       int    `json:"stock"`
}

// Stock is not editable here; it goes through SetStockHandler.
type UpdateMenuItemRequest struct {
	Name        *string `json:"name"`
	Allergens   *string `json:"allergens"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

type SetStockRequest struct {
	Stock *int `json:"stock"`
}

func menuItemID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "ID menu tidak valid")
	}
	return uint(id), nil
}

// GET /api/menu
func ListMenuHandler(catalog store.CatalogStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := catalog.Catalog(c.UserContext())
		if err != nil {
			return httpError(err)
		}
		return c.JSON(items)
	}
}

// GET /api/menu/:id
func GetMenuHandler(catalog store.CatalogStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := menuItemID(c)
		if err != nil {
			return err
		}
		item, err := catalog.MenuItem(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(item)
	}
}

// POST /api/admin/menu
func CreateMenuHandler(catalog store.CatalogStore, auditLog *audit.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Data tidak valid")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Nama menu wajib diisi")
		}
		if body.Stock < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Stok tidak boleh negatif")
		}

		item := models.MenuItem{
			Name:        body.Name,
			Allergens:   menu.NormalizeAllergens(body.Allergens),
			Description: strings.TrimSpace(body.Description),
			ImageURL:    strings.TrimSpace(body.ImageURL),
			Stock:       body.Stock,
		}
		if err := catalog.CreateMenuItem(c.UserContext(), &item); err != nil {
			return httpError(err)
		}

		auditLog.Record(c, audit.LogOptions{
			EntityType:  audit.EntityMenuItem,
			EntityID:    item.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Menu dibuat: %s", item.Name),
			After:       item,
		})
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// PUT /api/admin/menu/:id
func UpdateMenuHandler(catalog store.CatalogStore, auditLog *audit.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := menuItemID(c)
		if err != nil {
			return err
		}

		var body UpdateMenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Data tidak valid")
		}

		before, err := catalog.MenuItem(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}

		item := before
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Nama menu tidak boleh kosong")
			}
			item.Name = name
		}
		if body.Allergens != nil {
			item.Allergens = menu.NormalizeAllergens(*body.Allergens)
		}
		if body.Description != nil {
			item.Description = strings.TrimSpace(*body.Description)
		}
		if body.ImageURL != nil {
			item.ImageURL = strings.TrimSpace(*body.ImageURL)
		}

		if err := catalog.UpdateMenuItemDetails(c.UserContext(), &item); err != nil {
			return httpError(err)
		}

		auditLog.Record(c, audit.LogOptions{
			EntityType:  audit.EntityMenuItem,
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Menu diperbarui: %s", item.Name),
			Before:      before,
			After:       item,
		})
		return c.JSON(item)
	}
}

// DELETE /api/admin/menu/:id
func DeleteMenuHandler(catalog store.CatalogStore, auditLog *audit.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := menuItemID(c)
		if err != nil {
			return err
		}

		before, err := catalog.MenuItem(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		if err := catalog.DeleteMenuItem(c.UserContext(), id); err != nil {
			return httpError(err)
		}

		auditLog.Record(c, audit.LogOptions{
			EntityType:  audit.EntityMenuItem,
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Menu dihapus: %s", before.Name),
			Before:      before,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PUT /api/admin/menu/:id/stock
func SetStockHandler(ledger *Ledger, auditLog *audit.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := menuItemID(c)
		if err != nil {
			return err
		}

		var body SetStockRequest
		if err := c.BodyParser(&body); err != nil || body.Stock == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Field stock wajib diisi")
		}

		item, err := ledger.SetStock(c.UserContext(), id, *body.Stock)
		if err != nil {
			return httpError(err)
		}

		auditLog.Record(c, audit.LogOptions{
			EntityType:  audit.EntityMenuItem,
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Stok %s diatur ke %d", item.Name, item.Stock),
			After:       fiber.Map{"stock": item.Stock},
		})
		return c.JSON(item)
	}
}

// httpError maps ledger and store errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNoSelection):
		return fiber.NewError(fiber.StatusConflict, "Pelajar belum memilih menu")
	case errors.Is(err, ErrEntitlementExhausted):
		return fiber.NewError(fiber.StatusConflict, "Jatah makan pelajar sudah habis")
	case errors.Is(err, ErrStockExhausted):
		return fiber.NewError(fiber.StatusConflict, "Stok menu sudah habis")
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, "Jumlah tidak boleh negatif")
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Data tidak ditemukan")
	case errors.Is(err, store.ErrDuplicate):
		return fiber.NewError(fiber.StatusConflict, "Data sudah ada")
	case errors.Is(err, store.ErrTransientConflict):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Sistem sedang sibuk, coba lagi")
	}
	log.Printf("[ERROR] inventory: %v", err)
	return fiber.NewError(fiber.StatusInternalServerError, "Terjadi kesalahan")
}
