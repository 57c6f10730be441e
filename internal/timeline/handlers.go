package timeline

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"life2gpx/internal/daystore"
)

type timelineResponse struct {
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

func RegisterRoutes(r fiber.Router, days *daystore.Store, loc *time.Location) {
	r.Get("/:date", func(c *fiber.Ctx) error {
		date := c.Params("date")
		day, err := days.Load(date)
		if err != nil {
			if errors.Is(err, daystore.ErrBadDate) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(timelineResponse{Date: date, Items: Build(day, date, loc)})
	})
}
