package handlers

import (
	"bounty-publish-system/services"
	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, profileService *services.ProfileService) {
	app.Get("/profiles/:address", profileService.GetProfile)
	app.Post("/profile", profileService.UpsertProfile)
}
