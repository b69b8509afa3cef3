package engagementHandler

import (
	engagementService "github.com/demonstrikkk/HoneyCatcher/internal/api/engagement/service"
	"github.com/demonstrikkk/HoneyCatcher/internal/middleware"
	"github.com/demonstrikkk/HoneyCatcher/pkg/utils"
	websocketPkg "github.com/demonstrikkk/HoneyCatcher/pkg/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type EngagementHandler struct {
	log               *logrus.Logger
	validator         *validator.Validate
	middleware        middleware.Middleware
	engagementService engagementService.IEngagementService
	registry          websocketPkg.IRegistry
	utils             utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	es engagementService.IEngagementService,
	registry websocketPkg.IRegistry,
	utils utils.IUtils,
) *EngagementHandler {
	return &EngagementHandler{
		log:               log,
		validator:         validator,
		middleware:        middleware,
		engagementService: es,
		registry:          registry,
		utils:             utils,
	}
}

func (h *EngagementHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	live := srv.Group("/live")
	live.Use("/ws", wsMiddleware)
	live.Get("/ws/:session_id", websocket.New(h.handleLiveWebSocket))

	live.Post("/start", h.middleware.NewAPIKeyMiddleware, h.middleware.NewRateLimiter, h.StartSession)
	live.Post("/switch-mode", h.middleware.NewAPIKeyMiddleware, h.SwitchMode)
	live.Post("/end/:session_id", h.middleware.NewAPIKeyMiddleware, h.EndSession)
	live.Get("/status/:session_id", h.middleware.NewAPIKeyMiddleware, h.SessionStatus)
	live.Get("/report/:session_id", h.middleware.NewAPIKeyMiddleware, h.SessionReport)
}
