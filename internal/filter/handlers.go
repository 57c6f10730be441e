package filter

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes the inbound sensor interface: platform glue posts
// raw fixes here and the filter decides what, if anything, gets recorded.
func RegisterRoutes(r fiber.Router, f *Filter, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var fix Fix
		if err := c.BodyParser(&fix); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		f.Process(fix)
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/flush", authMiddleware, func(c *fiber.Ctx) error {
		f.ForceMidnightUpdate(f.clock.Now())
		return c.SendStatus(fiber.StatusAccepted)
	})
}
