// utils/response.go
package utils

import (
	"errors"
	"log"
	"os"

	"bounty-publish-system/models"
	"github.com/gofiber/fiber/v2"
)

// DevMode reports whether detailed internal error text may be echoed to
// clients. Production responses carry only the user-safe message.
func DevMode() bool {
	return os.Getenv("APP_ENV") == "development"
}

// RespondError writes a taxonomy-aware JSON error response. Unclassified
// errors become opaque 500s so infrastructure details never leak.
func RespondError(c *fiber.Ctx, err error) error {
	var app *models.AppError
	if errors.As(err, &app) {
		body := fiber.Map{"message": app.Message}
		if DevMode() && app.Err != nil {
			body["error"] = app.Err.Error()
		}
		return c.Status(app.HTTPStatus()).JSON(body)
	}

	log.Printf("[ERROR] unclassified: %v", err)
	body := fiber.Map{"message": "Internal server error"}
	if DevMode() {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(body)
}
