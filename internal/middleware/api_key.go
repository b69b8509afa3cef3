package middleware

import (
	"crypto/subtle"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const APIKeyHeader = "X-API-Key"

type apiKeyMiddleware struct {
	key string
}

func newAPIKeyMiddleware() *apiKeyMiddleware {
	return &apiKeyMiddleware{
		key: os.Getenv("API_KEY"),
	}
}

// NewAPIKeyMiddleware authorizes control-plane requests. When no key is
// configured the check is disabled, which keeps local development simple.
func (m *middleware) NewAPIKeyMiddleware(ctx *fiber.Ctx) error {
	if m.apiKey.key == "" {
		return ctx.Next()
	}

	provided := ctx.Get(APIKeyHeader)
	if provided == "" {
		m.log.WithFields(logrus.Fields{
			"path":      ctx.Path(),
			"client_ip": ctx.IP(),
		}).Warn("API key header is missing")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, API key missing or invalid",
		})
	}

	if subtle.ConstantTimeCompare([]byte(provided), []byte(m.apiKey.key)) != 1 {
		m.log.WithFields(logrus.Fields{
			"path":      ctx.Path(),
			"client_ip": ctx.IP(),
		}).Warn("API key rejected")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, API key missing or invalid",
		})
	}

	return ctx.Next()
}
