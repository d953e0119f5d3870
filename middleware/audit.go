package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"gorm.io/datatypes"

	"github.com/telemed-health/telemed-api/models"
)

// AuditRecorder accepts entries built by Audit. Implementations must not
// block the request.
type AuditRecorder interface {
	Record(entry models.AuditLog)
}

// SensitivePrefixes are always audited, in addition to APIPrefix.
var SensitivePrefixes = []string{"/admin/", "/api/token/", "/api/auth/"}

const APIPrefix = "/api/"

// Audit records one entry per request on an audited path once the
// response, including any error response, has been produced.
func Audit(recorder AuditRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		path := c.Path()
		if !isAudited(path) {
			return nil
		}

		// Ctx values are reused after the handler returns, so everything is
		// copied before the entry leaves this goroutine.
		entry := models.AuditLog{
			Action: c.Method() + " " + resolveName(c, path),
			Metadata: datatypes.JSONMap{
				"status_code": c.Response().StatusCode(),
			},
			IPAddress: fiberutils.CopyString(c.IP()),
			UserAgent: fiberutils.CopyString(c.Get(fiber.HeaderUserAgent)),
		}
		if rid, ok := c.Locals(requestIDKey).(string); ok && rid != "" {
			entry.Metadata["request_id"] = fiberutils.CopyString(rid)
		}
		if userID, ok := UserID(c); ok {
			entry.ActorID = &userID
		}

		recorder.Record(entry)
		return nil
	}
}

func isAudited(path string) bool {
	if strings.HasPrefix(path, APIPrefix) {
		return true
	}
	for _, p := range SensitivePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// resolveName prefers the matched route's name, then its pattern, then the
// raw path.
func resolveName(c *fiber.Ctx, path string) string {
	r := c.Route()
	if r == nil {
		return path
	}
	if r.Name != "" {
		return r.Name
	}
	if r.Path != "" && r.Path != "/" {
		return r.Path
	}
	return path
}
