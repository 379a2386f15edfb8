package inventory

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"makan-backend/internal/audit"
	"makan-backend/internal/menu"
	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

// Workbook columns: name | allergens | stock | description | image URL.
const (
	colName = iota
	colAllergens
	colStock
	colDescription
	colImageURL
)

type SkippedRow struct {
	Row    int    `json:"row"` // 1-based, as shown in the spreadsheet
	Reason string `json:"reason"`
}

// isHeaderRow recognizes a title row such as "Nama Menu | Alergen | Stok".
func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToUpper(strings.TrimSpace(row[0]))
	return strings.Contains(first, "NAMA") || strings.Contains(first, "NAME") || first == "MENU"
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// ParseMenuWorkbook reads the first sheet of an .xlsx catalog. Items come back
// in sheet order, which becomes their ranking once created.
func ParseMenuWorkbook(r io.Reader) ([]models.MenuItem, []SkippedRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	start := 0
	if len(rows) > 0 && isHeaderRow(rows[0]) {
		start = 1
	}

	var (
		items   []models.MenuItem
		skipped []SkippedRow
	)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		name := cell(row, colName)
		if name == "" {
			continue
		}

		stock := 0
		if raw := cell(row, colStock); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				skipped = append(skipped, SkippedRow{Row: i + 1, Reason: fmt.Sprintf("stok %q bukan angka", raw)})
				continue
			}
			if n < 0 {
				skipped = append(skipped, SkippedRow{Row: i + 1, Reason: "stok negatif"})
				continue
			}
			stock = n
		}

		items = append(items, models.MenuItem{
			Name:        name,
			Allergens:   menu.NormalizeAllergens(cell(row, colAllergens)),
			Stock:       stock,
			Description: cell(row, colDescription),
			ImageURL:    cell(row, colImageURL),
		})
	}
	return items, skipped, nil
}

// POST /api/admin/menu/import (multipart, field "file")
func ImportMenuHandler(catalog store.CatalogStore, auditLog *audit.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "File tidak ditemukan")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "Hanya file .xlsx yang diterima")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "File tidak dapat dibuka")
		}
		defer file.Close()

		items, skipped, err := ParseMenuWorkbook(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "File Excel tidak dapat dibaca: "+err.Error())
		}
		if len(items) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Tidak ada menu di dalam file")
		}

		created := make([]models.MenuItem, 0, len(items))
		for i := range items {
			if err := catalog.CreateMenuItem(c.UserContext(), &items[i]); err != nil {
				// Rows already created stay; report how far the import got.
				return httpError(fmt.Errorf("import stopped after %d items: %w", len(created), err))
			}
			created = append(created, items[i])
		}

		auditLog.Record(c, audit.LogOptions{
			EntityType:  audit.EntityMenuItem,
			Action:      models.AuditActionImport,
			Description: fmt.Sprintf("%d menu diimpor dari %s", len(created), fileHeader.Filename),
			After:       created,
		})
		if skipped == nil {
			skipped = []SkippedRow{}
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"created": created,
			"skipped": skipped,
		})
	}
}
