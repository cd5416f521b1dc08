package handlers

import (
	"bounty-publish-system/middleware"
	"bounty-publish-system/services"
	"github.com/gofiber/fiber/v2"
)

func SetupSubmissionRoutes(app *fiber.App, submissionService *services.SubmissionService) {
	submissions := app.Group("/submissions", middleware.WalletContextMiddleware())

	submissions.Post("/", submissionService.CreateSubmission)
	submissions.Get("/", submissionService.ListSubmissions)
	submissions.Post("/:id/attachments", submissionService.UploadAttachment)
}
