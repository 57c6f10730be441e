package place

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(store.All())
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lon required")
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		if limit <= 0 {
			limit = 10
		}
		return c.JSON(store.Nearby(lat, lon, limit))
	})

	r.Get("/containing", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lon required")
		}
		p, ok := store.ContainingPlace(lat, lon)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no place contains coordinate")
		}
		return c.JSON(p)
	})

	r.Get("/duplicates", func(c *fiber.Ctx) error {
		return c.JSON(store.FindDuplicates())
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Place
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.PlaceID == "" {
			req.PlaceID = uuid.NewString()
		}
		if err := store.Add(req, false); err != nil {
			return fiber.NewError(statusForPlaceError(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(req)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		original, ok := store.Get(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "place not found")
		}
		var edited Place
		if err := c.BodyParser(&edited); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if edited.PlaceID == "" {
			edited.PlaceID = original.PlaceID
		}
		if err := store.Edit(original, edited, false); err != nil {
			return fiber.NewError(statusForPlaceError(err), err.Error())
		}
		return c.JSON(edited)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		target, ok := store.Get(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "place not found")
		}
		if err := store.Delete(target); err != nil {
			return fiber.NewError(statusForPlaceError(err), err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func statusForPlaceError(err error) int {
	switch {
	case errors.Is(err, ErrPlaceNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidPlaceID),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidLatitude),
		errors.Is(err, ErrInvalidLongitude),
		errors.Is(err, ErrInvalidRadius):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
