package handlers

import (
	"bounty-publish-system/services"
	"github.com/gofiber/fiber/v2"
)

func SetupPayoutRoutes(app *fiber.App, payoutService *services.PayoutService) {
	app.Post("/payout", payoutService.ExecutePayout)
}
