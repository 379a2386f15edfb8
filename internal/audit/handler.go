package audit

import (
	"strconv"

	"makan-backend/internal/models"
	"makan-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	BeforeData  datatypes.JSON     `json:"before_data"`
	AfterData   datatypes.JSON     `json:"after_data"`
}

const defaultListLimit = 200

// GET /api/admin/audit-logs?entity_type=menu_item&entity_id=1&user_id=2&limit=50
func ListAuditLogsHandler(st store.AuditStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := store.AuditFilter{
			EntityType: c.Query("entity_type"),
			Limit:      defaultListLimit,
		}
		if v := c.Query("entity_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "entity_id tidak valid")
			}
			filter.EntityID = uint(id)
		}
		if v := c.Query("user_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "user_id tidak valid")
			}
			filter.UserID = uint(id)
		}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fiber.NewError(fiber.StatusBadRequest, "limit tidak valid")
			}
			filter.Limit = n
		}

		logs, err := st.AuditLogs(c.UserContext(), filter)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Log gagal dimuat")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				BeforeData:  l.BeforeData,
				AfterData:   l.AfterData,
			})
		}
		return c.JSON(resp)
	}
}
