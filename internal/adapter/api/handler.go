package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"

	"answer-engine/internal/domain/entity"

	"github.com/gofiber/fiber/v2"
)

type AnswerService interface {
	Execute(ctx context.Context, clientID string, req entity.AnswerRequest) (*entity.AnswerResult, entity.Outcome)
}

type StreamService interface {
	Run(ctx context.Context, clientID string, req entity.AnswerRequest) <-chan entity.Event
}

type AnswerHandler struct {
	orchestrator AnswerService
	streamer     StreamService
	logger       *slog.Logger
}

func NewAnswerHandler(orch AnswerService, streamer StreamService) *AnswerHandler {
	return &AnswerHandler{
		orchestrator: orch,
		streamer:     streamer,
		logger:       slog.Default().With("component", "api"),
	}
}

func (h *AnswerHandler) HandleAnswer(c *fiber.Ctx) error {
	req := entity.DefaultAnswerRequest()
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if req.Stream {
		return h.handleStream(c, req)
	}

	result, outcome := h.orchestrator.Execute(c.UserContext(), c.IP(), req)

	// The delivery layer maps the outcome to a status code; the body is
	// always an AnswerResult.
	status := fiber.StatusOK
	if outcome == entity.OutcomeQuotaExceeded {
		status = fiber.StatusTooManyRequests
	}
	c.Set("X-Cache-Hit", "false")
	if outcome == entity.OutcomeCached {
		c.Set("X-Cache-Hit", "true")
	}
	return c.Status(status).JSON(result)
}

// handleStream writes events as they arrive. The pipeline is started inside
// the body writer so it only runs while a client is attached; a failed flush
// means the client left and cancels the pipeline.
func (h *AnswerHandler) handleStream(c *fiber.Ctx, req entity.AnswerRequest) error {
	clientID := c.IP()
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := h.streamer.Run(ctx, clientID, req)
		for ev := range events {
			if err := writeEvent(w, ev); err != nil {
				h.logger.Info("client disconnected mid-stream", "client", clientID, "err", err)
				cancel()
				for range events {
				}
				return
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, ev entity.Event) error {
	frame, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := w.WriteString(frame); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errors.Join(errClientGone, err)
	}
	return nil
}
