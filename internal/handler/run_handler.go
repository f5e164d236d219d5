package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/profiles"
	"github.com/kursadbilgin/outreach-engine/internal/service"
)

type RunService interface {
	Start(ctx context.Context, cfg domain.RunConfig, targets []domain.ProfileTarget) (string, error)
	Current() (service.RunStatus, bool)
	Cancel() error
}

type RunHandler struct {
	service RunService
}

func NewRunHandler(service RunService) (*RunHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("run service is required")
	}
	return &RunHandler{service: service}, nil
}

func RegisterRunRoutes(router fiber.Router, service RunService) error {
	h, err := NewRunHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/runs", h.StartRun)
	v1.Get("/runs/current", h.CurrentRun)
	v1.Post("/runs/current/cancel", h.CancelRun)

	return nil
}

// StartRun accepts the multipart form the UI posts: a profile spreadsheet
// under "file" plus the run settings.
func (h *RunHandler) StartRun(c *fiber.Ctx) error {
	cfg, err := runConfigFromForm(c)
	if err != nil {
		return toHTTPError(err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "profile file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to open profile file")
	}
	defer file.Close()

	targets, err := profiles.Load(file, fileHeader.Filename)
	if err != nil {
		return toHTTPError(err)
	}
	if len(targets) == 0 {
		return toHTTPError(fmt.Errorf("%w: no profile URLs found in the file", domain.ErrValidation))
	}

	runID, err := h.service.Start(c.UserContext(), cfg, targets)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"runId":    runID,
		"profiles": len(targets),
	})
}

func (h *RunHandler) CurrentRun(c *fiber.Ctx) error {
	status, ok := h.service.Current()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no run has been started")
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *RunHandler) CancelRun(c *fiber.Ctx) error {
	if err := h.service.Cancel(); err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "cancelling",
	})
}

func runConfigFromForm(c *fiber.Ctx) (domain.RunConfig, error) {
	cfg := domain.DefaultRunConfig()
	cfg.Credentials = domain.Credentials{
		Username: strings.TrimSpace(c.FormValue("username")),
		Password: c.FormValue("password"),
	}
	cfg.Message = c.FormValue("message")

	maxMessages, err := formInt(c, "maxMessages")
	if err != nil {
		return domain.RunConfig{}, err
	}
	if maxMessages != nil {
		cfg.MaxMessages = *maxMessages
	}

	batchInterval, err := formInt(c, "batchIntervalSec")
	if err != nil {
		return domain.RunConfig{}, err
	}
	if batchInterval != nil {
		cfg.BatchInterval = time.Duration(*batchInterval) * time.Second
	}

	cooldownMin, err := formInt(c, "cooldownMinMin")
	if err != nil {
		return domain.RunConfig{}, err
	}
	if cooldownMin != nil {
		cfg.CooldownMin = time.Duration(*cooldownMin) * time.Minute
	}

	cooldownMax, err := formInt(c, "cooldownMaxMin")
	if err != nil {
		return domain.RunConfig{}, err
	}
	if cooldownMax != nil {
		cfg.CooldownMax = time.Duration(*cooldownMax) * time.Minute
	}

	if err := cfg.Validate(); err != nil {
		return domain.RunConfig{}, err
	}
	return cfg, nil
}

func formInt(c *fiber.Ctx, field string) (*int, error) {
	raw := strings.TrimSpace(c.FormValue(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, field)
	}
	return &v, nil
}
