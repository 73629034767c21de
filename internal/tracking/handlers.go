package tracking

import (
	"bytes"
	"encoding/json"
	"errors"

	"backend-carbondrive/internal/auth"
	"backend-carbondrive/internal/emission"
	"backend-carbondrive/internal/location"
	"backend-carbondrive/internal/movement"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/sessions", authMiddleware, func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		caller := auth.UserID(c)
		if caller == "" {
			return fiber.ErrUnauthorized
		}
		if req.UserID != "" && req.UserID != caller {
			return fiber.NewError(fiber.StatusForbidden, "user_id does not match token")
		}
		req.UserID = caller
		if req.TransportMode == "" {
			return fiber.NewError(fiber.StatusBadRequest, "transport_mode required")
		}
		session, err := svc.StartSession(c.Context(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	r.Post("/sessions/:id/samples", authMiddleware, func(c *fiber.Ctx) error {
		samples, err := parseSamples(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		queued, err := svc.PushSamples(c.Context(), auth.UserID(c), c.Params("id"), samples)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": queued})
	})

	r.Post("/sessions/:id/telemetry", authMiddleware, func(c *fiber.Ctx) error {
		readings, err := parseTelemetry(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		applied, err := svc.PushTelemetry(c.Context(), auth.UserID(c), c.Params("id"), readings)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": applied})
	})

	r.Post("/sessions/:id/stop", authMiddleware, func(c *fiber.Ctx) error {
		session, err := svc.StopSession(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil && session.ID == "" {
			return httpError(err)
		}
		res := StopResult{Session: session}
		if err != nil {
			res.Warning = err.Error()
		}
		return c.JSON(res)
	})

	r.Delete("/sessions/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.ResetSession(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		session, err := svc.GetSession(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(session)
	})
}

// parseSamples accepts a single sample object or an array of them.
func parseSamples(body []byte) ([]movement.GeoSample, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == '[' {
		var samples []movement.GeoSample
		if err := json.Unmarshal(body, &samples); err != nil {
			return nil, err
		}
		return samples, nil
	}
	var s movement.GeoSample
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return []movement.GeoSample{s}, nil
}

// parseTelemetry accepts one reading, an array, or a {"data": [...]} batch.
func parseTelemetry(body []byte) ([]movement.Telemetry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == '[' {
		var readings []movement.Telemetry
		if err := json.Unmarshal(body, &readings); err != nil {
			return nil, err
		}
		return readings, nil
	}
	var batch struct {
		Data []movement.Telemetry `json:"data"`
	}
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	if batch.Data != nil {
		return batch.Data, nil
	}
	var r movement.Telemetry
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return []movement.Telemetry{r}, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidStateTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, location.ErrLocationUnavailable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, emission.ErrUnknownMode):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
