package route

import (
	"errors"

	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

type emissionsRequest struct {
	Waypoints     []geo.Point            `json:"waypoints"`
	TransportMode emission.TransportMode `json:"transport_mode"`
}

type compareRequest struct {
	Origin      *geo.Point `json:"origin"`
	Destination *geo.Point `json:"destination"`
}

func RegisterRoutes(r fiber.Router, agg *Aggregator) {
	r.Post("/emissions", func(c *fiber.Ctx) error {
		var req emissionsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.TransportMode == "" {
			req.TransportMode = emission.Car
		}
		totals, err := agg.RouteEmissions(c.UserContext(), req.Waypoints, req.TransportMode)
		if errors.Is(err, ErrNotEnoughWaypoints) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return c.JSON(totals)
	})

	r.Post("/compare", func(c *fiber.Ctx) error {
		var req compareRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Origin == nil || req.Destination == nil {
			return fiber.NewError(fiber.StatusBadRequest, "origin and destination required")
		}
		return c.JSON(agg.CompareModes(c.UserContext(), *req.Origin, *req.Destination))
	})
}
