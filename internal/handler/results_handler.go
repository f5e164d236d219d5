package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/outreach-engine/internal/domain"
	"github.com/kursadbilgin/outreach-engine/internal/ledger"
)

const ExportFilename = "instagram_message_results.csv"

type ResultsReader interface {
	ReadAll(ctx context.Context) ([]domain.MessageAttemptRecord, error)
}

type ResultsHandler struct {
	reader ResultsReader
	loc    *time.Location
}

func NewResultsHandler(reader ResultsReader, loc *time.Location) (*ResultsHandler, error) {
	if reader == nil {
		return nil, fmt.Errorf("results reader is required")
	}
	if loc == nil {
		loc = time.Local
	}
	return &ResultsHandler{reader: reader, loc: loc}, nil
}

func RegisterResultsRoutes(router fiber.Router, reader ResultsReader, loc *time.Location) error {
	h, err := NewResultsHandler(reader, loc)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/results", h.ListResults)
	v1.Get("/results/export", h.ExportResults)

	return nil
}

type resultResponse struct {
	ProfileURL string `json:"profileUrl"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

type listResultsResponse struct {
	Data    []resultResponse `json:"data"`
	Total   int              `json:"total"`
	Warning string           `json:"warning,omitempty"`
}

// ListResults returns the ledger rows. Malformed rows are left out and
// reported as a warning.
func (h *ResultsHandler) ListResults(c *fiber.Ctx) error {
	records, warning, err := h.read(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]resultResponse, 0, len(records))
	for _, r := range records {
		data = append(data, resultResponse{
			ProfileURL: r.Profile.String(),
			Status:     r.Outcome.String(),
			Outcome:    r.Outcome.Label(),
			Message:    r.Message,
			Timestamp:  r.Timestamp.In(h.loc).Format(ledger.TimestampLayout),
		})
	}

	return c.Status(fiber.StatusOK).JSON(listResultsResponse{
		Data:    data,
		Total:   len(data),
		Warning: warning,
	})
}

func (h *ResultsHandler) ExportResults(c *fiber.Ctx) error {
	records, _, err := h.read(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	var buf bytes.Buffer
	if err := ledger.WriteCSV(&buf, records, h.loc); err != nil {
		return fmt.Errorf("failed to render export: %w", err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Attachment(ExportFilename)
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

func (h *ResultsHandler) read(ctx context.Context) ([]domain.MessageAttemptRecord, string, error) {
	records, err := h.reader.ReadAll(ctx)
	switch {
	case err == nil:
		return records, "", nil
	case errors.Is(err, ledger.ErrMalformedRecord):
		return records, err.Error(), nil
	default:
		return nil, "", err
	}
}
