package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/db"
	"github.com/telemed-health/telemed-api/models"
	"github.com/telemed-health/telemed-api/services"
	"github.com/telemed-health/telemed-api/utils"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// auditLogQuery applies the search, actor_id, limit and offset parameters
// shared by the listing and the export.
func auditLogQuery(c *fiber.Ctx) *gorm.DB {
	q := db.DB.WithContext(c.UserContext()).
		Preload("Actor").
		Order("created_at DESC").
		Order("id DESC")

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(action) LIKE ? OR LOWER(target_model) LIKE ? OR LOWER(target_id) LIKE ?",
			pattern, pattern, pattern)
	}
	if actor := c.QueryInt("actor_id"); actor > 0 {
		q = q.Where("actor_id = ?", actor)
	}

	limit := c.QueryInt("limit", defaultAuditLimit)
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	offset := c.QueryInt("offset")
	if offset < 0 {
		offset = 0
	}
	return q.Limit(limit).Offset(offset)
}

// GetAuditLogs lists audit entries newest first.
func GetAuditLogs(c *fiber.Ctx) error {
	var entries []models.AuditLog
	if err := auditLogQuery(c).Find(&entries).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch audit logs", err))
	}
	return c.JSON(entries)
}

// ExportAuditLogs returns the same listing as an XLSX download.
func ExportAuditLogs(c *fiber.Ctx) error {
	var entries []models.AuditLog
	if err := auditLogQuery(c).Find(&entries).Error; err != nil {
		return respondError(c, services.Internal("failed to fetch audit logs", err))
	}

	data, err := utils.GenerateAuditLogExport(entries)
	if err != nil {
		return respondError(c, services.Internal("failed to build export", err))
	}

	filename := "audit-log-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}
