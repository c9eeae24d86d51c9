package handlers

import (
	"errors"

	"tournament-report-bot/middleware"
	"tournament-report-bot/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ReportHandler exposes report sessions over HTTP.
type ReportHandler struct {
	Reports *services.ReportService
	Logger  *zap.Logger
}

func NewReportHandler(reports *services.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{Reports: reports, Logger: logger.Named("http")}
}

func SetupReportRoutes(app *fiber.App, h *ReportHandler) {
	app.Get("/healthz", h.Health)

	// 🔐 Report sessions: gateway identity attached
	secured := app.Group("/reports", middleware.UserContextMiddleware())
	secured.Post("", h.Start)
	secured.Get("/:key", h.Snapshot)
	secured.Post("/:key/actions", h.Action)
}

func (h *ReportHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Start opens a report session. The player defaults to the gateway identity.
func (h *ReportHandler) Start(c *fiber.Ctx) error {
	var req services.StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key is required"})
	}
	if req.TournamentID == "" && req.ChatID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tournament_id or chat_id is required"})
	}
	if req.UserID == "" && req.TelegramID == 0 {
		req.UserID = middleware.UserID(c)
		req.TelegramID = middleware.TelegramID(c)
	}
	if req.UserID == "" && req.TelegramID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id or telegram_id is required"})
	}

	view, err := h.Reports.Start(c.UserContext(), req)
	if err != nil {
		return h.fail(c, nil, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (h *ReportHandler) Snapshot(c *fiber.Ctx) error {
	view, err := h.Reports.Snapshot(c.UserContext(), c.Params("key"))
	if err != nil {
		return h.fail(c, nil, err)
	}
	return c.JSON(view)
}

func (h *ReportHandler) Action(c *fiber.Ctx) error {
	var action services.Action
	if err := c.BodyParser(&action); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	actor := services.Actor{UserID: middleware.UserID(c), TelegramID: middleware.TelegramID(c)}
	view, err := h.Reports.HandleAction(c.UserContext(), c.Params("key"), actor, action)
	if err != nil {
		return h.fail(c, view, err)
	}
	return c.JSON(view)
}

// fail maps service errors: stranger 403, key clash 409, other soft 422, collaborator 503, anything else 500.
func (h *ReportHandler) fail(c *fiber.Ctx, view *services.View, err error) error {
	switch {
	case errors.Is(err, services.ErrNotYourReport):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSessionExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session key already in use"})
	case services.IsSoft(err):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error(), "view": view})
	case services.IsCollaborator(err):
		h.Logger.Warn("[REPORT] collaborator failure", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "service temporarily unavailable, try again",
			"view":  view,
		})
	default:
		h.Logger.Error("[REPORT] internal error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
