package services

import (
	"errors"
	"fmt"
	"math/big"
	"path/filepath"

	"bounty-publish-system/chain"
	"bounty-publish-system/middleware"
	"bounty-publish-system/models"
	"bounty-publish-system/utils"
	"bounty-publish-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionService struct {
	DB       *gorm.DB
	Chain    *chain.Client
	Reviewer *workers.ReviewWorker
	Notifier *workers.Notifier
}

func NewSubmissionService(db *gorm.DB, chainClient *chain.Client, reviewer *workers.ReviewWorker, notifier *workers.Notifier) *SubmissionService {
	return &SubmissionService{DB: db, Chain: chainClient, Reviewer: reviewer, Notifier: notifier}
}

// CreateSubmission accepts a hunter's work on an open bounty. The payload is
// anchored (content hash + best-effort chain height) at insert time and never
// edited afterwards. Scoring and notification happen in the background after
// the response is sent.
func (s *SubmissionService) CreateSubmission(c *fiber.Ctx) error {
	var req struct {
		BountyID      string `json:"bounty_id"`
		HunterAddress string `json:"hunter_address"`
		Content       string `json:"content"`
		Contact       string `json:"contact"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondError(c, models.NewValidationError("invalid request body"))
	}
	if req.BountyID == "" || req.HunterAddress == "" || req.Content == "" || req.Contact == "" {
		return utils.RespondError(c, models.NewValidationError("bounty_id, hunter_address, content and contact are required"))
	}

	var bounty models.Bounty
	err := s.DB.First(&bounty, "id = ?", req.BountyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("bounty not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounty", err))
	}

	if bounty.Status != models.BountyStatusOpen {
		return utils.RespondError(c, models.NewConflictError("bounty is not open for submissions"))
	}

	hunter := models.NormalizeAddress(req.HunterAddress)
	if bounty.IsCreator(hunter) {
		return utils.RespondError(c, models.NewValidationError("you cannot submit to your own bounty"))
	}

	var existing int64
	if err := s.DB.Model(&models.Submission{}).
		Where("bounty_id = ? AND hunter_address = ?", bounty.ID, hunter).
		Count(&existing).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to check existing submissions", err))
	}
	if existing > 0 {
		return utils.RespondError(c, models.NewConflictError("you have already submitted to this bounty"))
	}

	submission := &models.Submission{
		ID:            uuid.NewString(),
		BountyID:      bounty.ID,
		HunterAddress: hunter,
		Content:       req.Content,
		Contact:       req.Contact,
		ContentHash:   models.HashContent(req.Content, req.Contact),
		BlockNumber:   s.Chain.CurrentBlock(c.Context()),
	}

	if err := s.DB.Create(submission).Error; err != nil {
		// The unique (bounty_id, hunter_address) index backstops the
		// read-then-insert above under concurrency.
		if isUniqueViolation(err) {
			return utils.RespondError(c, models.NewConflictError("you have already submitted to this bounty"))
		}
		return utils.RespondError(c, models.NewUpstreamError("failed to create submission", err))
	}

	s.Reviewer.Trigger(submission.ID, submission.Content, bounty.Title, bounty.Description)
	go s.Notifier.NotifyNewSubmission(bounty.Title, bounty.ID, hunter, bountyDisplayPrize(&bounty))

	return c.Status(fiber.StatusCreated).JSON(submission)
}

// ListSubmissions returns submissions newest first, filtered by bounty_id or
// hunter (at least one required). Bodies are redacted for viewers the
// visibility policy does not admit; existence and metadata stay listed.
func (s *SubmissionService) ListSubmissions(c *fiber.Ctx) error {
	bountyID := c.Query("bounty_id")
	hunter := c.Query("hunter")
	if bountyID == "" && hunter == "" {
		return utils.RespondError(c, models.NewValidationError("provide bounty_id or hunter address"))
	}

	query := s.DB.Preload("Attachments").Order("created_at DESC")
	if bountyID != "" {
		query = query.Where("bounty_id = ?", bountyID)
	}
	if hunter != "" {
		query = query.Where("hunter_address = ?", models.NormalizeAddress(hunter))
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch submissions", err))
	}

	bounties, err := s.bountiesFor(submissions)
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounties for visibility check", err))
	}

	viewer := middleware.ViewerAddress(c)
	out := make([]models.Submission, 0, len(submissions))
	for _, sub := range submissions {
		if sub.VisibleTo(viewer, bounties[sub.BountyID]) {
			out = append(out, sub)
		} else {
			out = append(out, sub.Redacted())
		}
	}
	return c.JSON(out)
}

// UploadAttachment stores a proof file for a submission in R2. Only the
// submission's author may attach, and only while the bounty is still open.
func (s *SubmissionService) UploadAttachment(c *fiber.Ctx) error {
	submissionID := c.Params("id")

	var submission models.Submission
	err := s.DB.First(&submission, "id = ?", submissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("submission not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch submission", err))
	}

	viewer := middleware.ViewerAddress(c)
	if viewer == "" || viewer != models.NormalizeAddress(submission.HunterAddress) {
		return utils.RespondError(c, models.NewAuthorizationError("only the submission author can attach files"))
	}

	var bounty models.Bounty
	if err := s.DB.First(&bounty, "id = ?", submission.BountyID).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounty", err))
	}
	if bounty.Status != models.BountyStatusOpen {
		return utils.RespondError(c, models.NewConflictError("bounty is no longer open"))
	}

	file, err := c.FormFile("file")
	if err != nil || file.Size == 0 {
		return utils.RespondError(c, models.NewValidationError("a non-empty 'file' form field is required"))
	}
	if !utils.StorageConfigured() {
		return utils.RespondError(c, models.NewUpstreamError("attachment storage not configured", nil))
	}

	ext := filepath.Ext(file.Filename)
	key := fmt.Sprintf("submissions/%s/%s%s", submission.ID, uuid.NewString(), ext)
	url, err := utils.UploadAttachment(file, key)
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to store attachment", err))
	}

	attachment := &models.SubmissionAttachment{
		ID:           uuid.NewString(),
		SubmissionID: submission.ID,
		FileName:     file.Filename,
		URL:          url,
	}
	if err := s.DB.Create(attachment).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to record attachment", err))
	}

	return c.Status(fiber.StatusCreated).JSON(attachment)
}

// bountiesFor loads the distinct bounties behind a submission list so the
// visibility policy can consult creator and status.
func (s *SubmissionService) bountiesFor(submissions []models.Submission) (map[string]*models.Bounty, error) {
	ids := make([]string, 0, len(submissions))
	seen := make(map[string]bool)
	for _, sub := range submissions {
		if !seen[sub.BountyID] {
			seen[sub.BountyID] = true
			ids = append(ids, sub.BountyID)
		}
	}
	result := make(map[string]*models.Bounty, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var bounties []models.Bounty
	if err := s.DB.Where("id IN ?", ids).Find(&bounties).Error; err != nil {
		return nil, err
	}
	for i := range bounties {
		result[bounties[i].ID] = &bounties[i]
	}
	return result, nil
}

// bountyDisplayPrize renders the total prize pool for notifications.
func bountyDisplayPrize(b *models.Bounty) string {
	if b.IsMultiPrize() {
		total, _ := chain.RequiredAmount(new(big.Int), b.Prizes)
		return chain.FormatUnits(total)
	}
	return b.Prize
}
