package sync

import (
	"context"
	"strconv"

	"calbridge/core/logger"
	"calbridge/feature/sync/state"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSessionLimit = 20

// StatusStore is the read-only slice of the state store the status
// endpoints need. *state.Store satisfies it.
type StatusStore interface {
	Stats(ctx context.Context) (state.Stats, error)
	ListSessions(ctx context.Context, limit int) ([]state.Session, error)
}

// StatusHandler serves the read-only status endpoints exposed while
// continuous sync runs.
type StatusHandler struct {
	store  StatusStore
	logger *zap.Logger
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(store StatusStore, log *zap.Logger) *StatusHandler {
	return &StatusHandler{store: store, logger: log}
}

// NewStatusApp builds the Fiber app with the status routes registered.
func NewStatusApp(store StatusStore, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(requestID())

	h := NewStatusHandler(store, log)
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes registers the status routes.
func (h *StatusHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/status", h.HandleStatus)
	app.Get("/sessions", h.HandleSessions)
}

// HandleStatus returns aggregate store counts and the last successful
// sync time.
func (h *StatusHandler) HandleStatus(c *fiber.Ctx) error {
	l := logger.WithRequestID(h.logger, c)

	stats, err := h.store.Stats(c.Context())
	if err != nil {
		l.Error("Status check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(stats)
}

// HandleSessions returns the most recent sync sessions. The limit query
// parameter caps the list, defaulting to 20.
func (h *StatusHandler) HandleSessions(c *fiber.Ctx) error {
	l := logger.WithRequestID(h.logger, c)

	limit := defaultSessionLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}

	sessions, err := h.store.ListSessions(c.Context(), limit)
	if err != nil {
		l.Error("Session list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(sessions)
}

// requestID tags every request with a fresh id for log correlation.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := uuid.NewString()
		c.Locals("request_id", id)
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}
