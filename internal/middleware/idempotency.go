package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// HeaderCorrelationID identifies a client retry of the same upload
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderIdempotentReplay marks a response served from the idempotency store
	HeaderIdempotentReplay = "X-Idempotent-Replay"

	idempotencyKeyPrefix = "idempotency:"
)

// IdempotencyMiddleware replays successful POST/PATCH/PUT responses for a repeated X-Correlation-ID.
// Keys are scoped to method and path so one id cannot replay another avatar's response.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(HeaderCorrelationID)
		if correlationID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("%s%s:%s:%s", idempotencyKeyPrefix, c.Method(), c.Path(), correlationID)
		ctx := c.UserContext()

		cached, err := redisClient.Get(ctx, key).Bytes()
		if err == nil && len(cached) > 0 {
			c.Set(HeaderIdempotentReplay, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// Only 2xx responses are remembered
		statusCode := c.Response().StatusCode()
		if statusCode >= 200 && statusCode < 300 {
			body := c.Response().Body()
			if len(body) > 0 {
				setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				// a failed write only costs the replay, never the request
				_ = redisClient.Set(setCtx, key, append([]byte(nil), body...), ttl).Err()
			}
		}

		return nil
	}
}
