package inventory

import (
	"bytes"
	"fmt"
	"time"

	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const historySheet = "Riwayat"

var historyHeader = []interface{}{"No", "Waktu", "Email Pelajar", "ID Menu", "Nama Menu", "Event ID"}

// BuildHistoryWorkbook renders fulfillment records as one sheet, times in loc.
// Menu names come from names; deleted items show an empty name.
func BuildHistoryWorkbook(records []models.FulfillmentRecord, names map[uint]string, loc *time.Location) (*bytes.Buffer, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(historySheet, "A1", "F1", bold); err != nil {
		return nil, err
	}

	for i, rec := range records {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			i + 1,
			rec.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			rec.StudentEmail,
			rec.MenuItemID,
			names[rec.MenuItemID],
			rec.EventID,
		}
		if err := f.SetSheetRow(historySheet, cellRef, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(historySheet, "B", "F", 24); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

// GET /api/admin/history/export
func ExportHistoryHandler(ledger *Ledger, catalog store.CatalogStore, loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.UTC
	}
	return func(c *fiber.Ctx) error {
		records, err := ledger.History(c.UserContext())
		if err != nil {
			return httpError(err)
		}
		items, err := catalog.Catalog(c.UserContext())
		if err != nil {
			return httpError(err)
		}
		names := make(map[uint]string, len(items))
		for _, it := range items {
			names[it.ID] = it.Name
		}

		buf, err := BuildHistoryWorkbook(records, names, loc)
		if err != nil {
			return fmt.Errorf("build history workbook: %w", err)
		}

		filename := fmt.Sprintf("riwayat-%s.xlsx", time.Now().In(loc).Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
		return c.Send(buf.Bytes())
	}
}
