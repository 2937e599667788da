package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/mansoorceksport/generic-avatar/internal/config"
	"github.com/mansoorceksport/generic-avatar/internal/domain"
	"github.com/mansoorceksport/generic-avatar/internal/handler"
	"github.com/mansoorceksport/generic-avatar/internal/middleware"
	"github.com/mansoorceksport/generic-avatar/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	Gateway     domain.AvatarGateway
	Translator  domain.Translator
	RedisClient *redis.Client // idempotency store; nil disables replay
	Logger      *slog.Logger
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	avatarHandler := handler.NewAvatarHandler(deps.Gateway, deps.Translator)

	app := fiber.New(fiber.Config{
		AppName:      "Generic Avatar API",
		BodyLimit:    int(deps.Config.Server.BodyLimitMB * 1024 * 1024),
		ErrorHandler: customErrorHandler(deps.Translator, log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Accept-Language, " + middleware.HeaderCorrelationID,
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: handler.HeaderIsCustomAvatar + ", " + middleware.HeaderIdempotentReplay,
	}))
	app.Use(telemetry.FiberMiddleware())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "generic-avatar",
		})
	})

	// Public avatar endpoints, no authentication
	avatar := app.Group("/avatar")
	avatar.Get("/:avatarType/:avatarId/:size", avatarHandler.GetAvatar)
	avatar.Delete("/:avatarType/:avatarId", avatarHandler.DeleteAvatar)

	if deps.RedisClient != nil {
		ttl := deps.Config.Server.IdempotencyTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		avatar.Post("/:avatarType/:avatarId",
			middleware.IdempotencyMiddleware(deps.RedisClient, ttl),
			avatarHandler.SetAvatar,
		)
	} else {
		avatar.Post("/:avatarType/:avatarId", avatarHandler.SetAvatar)
	}

	return app
}

// customErrorHandler answers errors that escaped a handler without echoing them.
// An oversized body is reported like any other too-big upload.
func customErrorHandler(translator domain.Translator, log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}

		if code == fiber.StatusRequestEntityTooLarge {
			return handler.WriteError(c, translator, domain.ErrFileTooLarge)
		}

		if code >= fiber.StatusInternalServerError {
			log.ErrorContext(c.UserContext(), "unhandled request error",
				"method", c.Method(), "path", c.Path(), "error", err)
			return c.Status(code).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
		return c.Status(code).JSON(fiber.Map{
			"error": utils.StatusMessage(code),
		})
	}
}
