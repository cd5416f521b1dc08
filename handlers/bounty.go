package handlers

import (
	"bounty-publish-system/middleware"
	"bounty-publish-system/services"
	"github.com/gofiber/fiber/v2"
)

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService) {
	bounties := app.Group("/bounties", middleware.WalletContextMiddleware())

	bounties.Post("/", bountyService.CreateBounty)
	bounties.Get("/", bountyService.ListBounties)
	bounties.Post("/cancel", bountyService.CancelBounty)
	bounties.Get("/:id", bountyService.GetBounty)
}
