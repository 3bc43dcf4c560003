package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS - middleware для настройки Cross-Origin Resource Sharing; origins через запятую
func CORS(origins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  "GET,POST,PUT,OPTIONS",
		AllowHeaders:  "Content-Type,Accept,Accept-Language,X-Request-ID",
		ExposeHeaders: "X-Request-ID,X-Cache,X-Classification,X-Features",
	})
}
