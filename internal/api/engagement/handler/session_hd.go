package engagementHandler

import (
	"time"

	"github.com/demonstrikkk/HoneyCatcher/internal/api/engagement"
	"github.com/demonstrikkk/HoneyCatcher/internal/entity"
	contextPkg "github.com/demonstrikkk/HoneyCatcher/pkg/context"
	"github.com/demonstrikkk/HoneyCatcher/pkg/handlerUtil"
	"github.com/demonstrikkk/HoneyCatcher/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/net/context"
)

func (h *EngagementHandler) StartSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req engagement.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	session, err := h.engagementService.CreateSession(c, sessionID, entity.EngagementMode(req.Mode), req.VoiceCloneID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": session.SessionID,
			"mode":       session.Mode,
		}).Info("Session started")
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, engagement.StartSessionResponse{
			SessionID: session.SessionID,
			Mode:      string(session.Mode),
			Status:    string(session.Status),
			StartedAt: session.StartedAt.Format(time.RFC3339),
		})
	}
}

func (h *EngagementHandler) SwitchMode(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req engagement.SwitchModeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	switched, err := h.engagementService.SwitchMode(c, req.SessionID, entity.EngagementMode(req.Mode))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "switch_mode")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, engagement.SwitchModeResponse{
			SessionID: req.SessionID,
			Mode:      req.Mode,
			Switched:  switched,
		})
	}
}

func (h *EngagementHandler) EndSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	sessionID := ctx.Params("session_id")

	if err := h.engagementService.EndSession(c, sessionID, "operator_request"); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "end_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"session_id": sessionID,
		}).Info("Session ended by request")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, engagement.EndSessionResponse{
			SessionID: sessionID,
			Status:    string(entity.StatusEnded),
		})
	}
}

func (h *EngagementHandler) SessionStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)

	errHandler := handlerUtil.New(h.log)
	sessionID := ctx.Params("session_id")

	status, err := h.engagementService.SessionStatus(sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "session_status")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
}

func (h *EngagementHandler) SessionReport(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 15*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	sessionID := ctx.Params("session_id")

	report, err := h.engagementService.SessionReport(c, sessionID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "session_report")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, report)
	}
}
