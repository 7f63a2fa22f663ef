package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/estacaoterapia/estacao_backend/config"
)

// NewLimiterWithRedis shares the sliding window across instances through redis.
func NewLimiterWithRedis(rdb *redis.Client, rl config.RateLimit) fiber.Handler {
	limit, window := rl.Max, time.Duration(rl.WindowSeconds)*time.Second
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Storage:           fiberredis.NewFromConnection(rdb),
		Max:               limit,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}
