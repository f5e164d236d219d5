package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

type ScheduleService interface {
	Add(ctx context.Context, triggerTime string, profileSource string, cfg domain.RunConfig) (domain.ScheduleEntry, error)
	List(ctx context.Context) ([]domain.ScheduleEntry, error)
	Remove(ctx context.Context, id string) error
}

type ScheduleHandler struct {
	service ScheduleService
}

func NewScheduleHandler(service ScheduleService) (*ScheduleHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("schedule service is required")
	}
	return &ScheduleHandler{service: service}, nil
}

func RegisterScheduleRoutes(router fiber.Router, service ScheduleService) error {
	h, err := NewScheduleHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/schedules", h.CreateSchedule)
	v1.Get("/schedules", h.ListSchedules)
	v1.Delete("/schedules/:id", h.DeleteSchedule)

	return nil
}

type scheduleConfigRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Message          string `json:"message"`
	MaxMessages      *int   `json:"maxMessages,omitempty"`
	BatchIntervalSec *int   `json:"batchIntervalSec,omitempty"`
	CooldownMinMin   *int   `json:"cooldownMinMin,omitempty"`
	CooldownMaxMin   *int   `json:"cooldownMaxMin,omitempty"`
}

type createScheduleRequest struct {
	Time          string                `json:"time"`
	ProfileSource string                `json:"profileSource"`
	Config        scheduleConfigRequest `json:"config"`
}

type scheduleResponse struct {
	ID               string    `json:"id"`
	Time             string    `json:"time"`
	ProfileSource    string    `json:"profileSource"`
	Username         string    `json:"username"`
	MessagePreview   string    `json:"messagePreview"`
	MaxMessages      int       `json:"maxMessages"`
	BatchIntervalSec int       `json:"batchIntervalSec"`
	CooldownMinMin   int       `json:"cooldownMinMin"`
	CooldownMaxMin   int       `json:"cooldownMaxMin"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
}

func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	var req createScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cfg := requestToRunConfig(req.Config)
	entry, err := h.service.Add(c.Context(), req.Time, strings.TrimSpace(req.ProfileSource), cfg)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toScheduleResponse(entry))
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	entries, err := h.service.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]scheduleResponse, 0, len(entries))
	for _, e := range entries {
		data = append(data, toScheduleResponse(e))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": data,
	})
}

func (h *ScheduleHandler) DeleteSchedule(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Remove(c.Context(), id); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func requestToRunConfig(req scheduleConfigRequest) domain.RunConfig {
	cfg := domain.DefaultRunConfig()
	cfg.Credentials = domain.Credentials{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	}
	cfg.Message = req.Message
	if req.MaxMessages != nil {
		cfg.MaxMessages = *req.MaxMessages
	}
	if req.BatchIntervalSec != nil {
		cfg.BatchInterval = time.Duration(*req.BatchIntervalSec) * time.Second
	}
	if req.CooldownMinMin != nil {
		cfg.CooldownMin = time.Duration(*req.CooldownMinMin) * time.Minute
	}
	if req.CooldownMaxMin != nil {
		cfg.CooldownMax = time.Duration(*req.CooldownMaxMin) * time.Minute
	}
	return cfg
}

// toScheduleResponse never echoes the password.
func toScheduleResponse(e domain.ScheduleEntry) scheduleResponse {
	return scheduleResponse{
		ID:               e.ID,
		Time:             e.TriggerTime,
		ProfileSource:    e.ProfileSource,
		Username:         e.Config.Credentials.Username,
		MessagePreview:   e.MessagePreview(),
		MaxMessages:      e.Config.MaxMessages,
		BatchIntervalSec: int(e.Config.BatchInterval / time.Second),
		CooldownMinMin:   int(e.Config.CooldownMin / time.Minute),
		CooldownMaxMin:   int(e.Config.CooldownMax / time.Minute),
		CreatedAt:        e.CreatedAt,
	}
}
