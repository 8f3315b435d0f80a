package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-inspect/pkg/status"
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns the projected status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(status.Project(s.ctrl.Snapshot()))
}

// handleStart starts scanning and returns the resulting status.
func (s *Server) handleStart(c *fiber.Ctx) error {
	s.ctrl.Start()
	return c.JSON(status.Project(s.ctrl.Snapshot()))
}

// handleStop stops scanning and returns the resulting status.
func (s *Server) handleStop(c *fiber.Ctx) error {
	s.ctrl.Stop()
	return c.JSON(status.Project(s.ctrl.Snapshot()))
}

// handleLatest returns the most recent scan or 404.
func (s *Server) handleLatest(c *fiber.Ctx) error {
	entry, ok := s.ctrl.Latest()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no scans yet")
	}
	return c.JSON(entry)
}

// handleScans returns logged scans, newest first.
func (s *Server) handleScans(c *fiber.Ctx) error {
	limit := DefaultScanLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	return c.JSON(s.ctrl.Scans(limit))
}

// handleScan returns one scan by id.
func (s *Server) handleScan(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid scan id")
	}
	entry, ok := s.ctrl.Scan(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "scan not found")
	}
	return c.JSON(entry)
}
