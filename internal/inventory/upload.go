package inventory

import (
	"fmt"
	"path/filepath"
	"strings"

	"makan-backend/internal/media"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxImageSize = 5 << 20

var allowedImageExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// POST /api/admin/uploads (multipart, field "image")
// Returns the public URL to put in a menu item's image_url.
func UploadImageHandler(images media.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Gambar tidak ditemukan")
		}
		if fileHeader.Size > maxImageSize {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Ukuran gambar maksimal 5 MB")
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		contentType, ok := allowedImageExt[ext]
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "Format gambar harus jpg, png atau webp")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "File tidak dapat dibuka")
		}
		defer file.Close()

		name := uuid.NewString() + ext
		url, err := images.Save(c.UserContext(), name, contentType, file)
		if err != nil {
			return fmt.Errorf("save image: %w", err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"url":      url,
			"filename": name,
		})
	}
}
