// middleware/auth.go
package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID     = "user_id"
	LocalTelegramID = "telegram_id"
)

// UserContextMiddleware copies the identity forwarded by the gateway into fiber locals.
// X-User-ID is a user uuid, X-Telegram-ID a numeric Telegram account id. Both are optional.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, strings.TrimSpace(c.Get("X-User-ID")))

		var telegramID int64
		if raw := strings.TrimSpace(c.Get("X-Telegram-ID")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "X-Telegram-ID must be numeric",
				})
			}
			telegramID = id
		}
		c.Locals(LocalTelegramID, telegramID)

		return c.Next()
	}
}

// UserID returns the gateway user id, or "" when none was sent.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// TelegramID returns the gateway Telegram id, or 0 when none was sent.
func TelegramID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalTelegramID).(int64)
	return id
}
