package daystore

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"life2gpx/internal/gpx"
)

type editPointRequest struct {
	Original gpx.Point `json:"original"`
	Edited   gpx.Point `json:"edited"`
}

type editTrackRequest struct {
	Original gpx.Track `json:"original"`
	Edited   gpx.Track `json:"edited"`
}

type dayResponse struct {
	Date      string      `json:"date"`
	Waypoints []gpx.Point `json:"waypoints"`
	Tracks    []gpx.Track `json:"tracks"`
}

func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/:date", func(c *fiber.Ctx) error {
		day, err := store.Load(c.Params("date"))
		if err != nil {
			return fiber.NewError(statusForDayError(err), err.Error())
		}
		return c.JSON(dayResponse{
			Date:      c.Params("date"),
			Waypoints: day.Waypoints,
			Tracks:    day.Tracks,
		})
	})

	r.Put("/:date/waypoints", authMiddleware, func(c *fiber.Ctx) error {
		var req editPointRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		matched, err := store.UpdateWaypoint(c.Params("date"), req.Original, req.Edited)
		if err != nil {
			return fiber.NewError(statusForDayError(err), err.Error())
		}
		if !matched {
			return fiber.NewError(fiber.StatusNotFound, "no stored waypoint matched")
		}
		return c.JSON(fiber.Map{"matched": true})
	})

	r.Delete("/:date/waypoints", authMiddleware, func(c *fiber.Ctx) error {
		var target gpx.Point
		if err := c.BodyParser(&target); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		matched, err := store.DeleteWaypoint(c.Params("date"), target)
		if err != nil {
			return fiber.NewError(statusForDayError(err), err.Error())
		}
		if !matched {
			return fiber.NewError(fiber.StatusNotFound, "no stored waypoint matched")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Put("/:date/tracks", authMiddleware, func(c *fiber.Ctx) error {
		var req editTrackRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		matched, err := store.UpdateTrack(c.Params("date"), req.Original, req.Edited)
		if err != nil {
			return fiber.NewError(statusForDayError(err), err.Error())
		}
		if !matched {
			return fiber.NewError(fiber.StatusNotFound, "no stored track matched")
		}
		return c.JSON(fiber.Map{"matched": true})
	})

	r.Delete("/:date/tracks", authMiddleware, func(c *fiber.Ctx) error {
		var target gpx.Track
		if err := c.BodyParser(&target); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		matched, err := store.DeleteTrack(c.Params("date"), target)
		if err != nil {
			return fiber.NewError(statusForDayError(err), err.Error())
		}
		if !matched {
			return fiber.NewError(fiber.StatusNotFound, "no stored track matched")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func statusForDayError(err error) int {
	if errors.Is(err, ErrBadDate) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
