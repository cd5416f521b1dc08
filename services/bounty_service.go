package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"bounty-publish-system/chain"
	"bounty-publish-system/models"
	"bounty-publish-system/utils"
	"bounty-publish-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type BountyService struct {
	DB       *gorm.DB
	Chain    *chain.Client
	Verifier *chain.Verifier
	Notifier *workers.Notifier
}

func NewBountyService(db *gorm.DB, chainClient *chain.Client, verifier *chain.Verifier, notifier *workers.Notifier) *BountyService {
	return &BountyService{DB: db, Chain: chainClient, Verifier: verifier, Notifier: notifier}
}

// paymentRequirement is the x402 "accepts" entry returned with a 402. The
// amount is recomputed per request from the server-sanitized tier list —
// a client-supplied total is never trusted.
type paymentRequirement struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	PayTo             string `json:"payTo"`
	Asset             string `json:"asset"`
}

// CreateBounty implements the payment-gated creation flow. Without an
// X-Payment header the response is 402 carrying the dynamic requirement
// (creation fee + sum of prize tiers, pre-funding model). With a header, the
// referenced transaction must be an exact transfer of that amount to the
// platform wallet; only then is the bounty persisted, keyed by the now-spent
// transaction hash.
func (s *BountyService) CreateBounty(c *fiber.Ctx) error {
	var req struct {
		Title          string             `json:"title"`
		Description    string             `json:"description"`
		Prizes         []models.PrizeTier `json:"prizes"`
		Prize          string             `json:"prize"`
		CreatorAddress string             `json:"creator_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondError(c, models.NewValidationError("invalid request body"))
	}
	if req.Title == "" || req.Description == "" || req.CreatorAddress == "" {
		return utils.RespondError(c, models.NewValidationError("title, description and creator_address are required"))
	}
	if len(req.Prizes) == 0 && req.Prize == "" {
		return utils.RespondError(c, models.NewValidationError("at least one prize tier (or a legacy prize amount) is required"))
	}

	cfg := s.Chain.Config
	required, sanitized := chain.RequiredAmount(cfg.CreationFee, req.Prizes)

	legacyPrize := ""
	if len(sanitized) == 0 {
		// Legacy single-prize mode: one unranked amount, no tier list.
		units, err := chain.ParseUnits(req.Prize)
		if err != nil {
			return utils.RespondError(c, models.NewValidationError("no valid prize amounts in request"))
		}
		required.Add(required, units)
		legacyPrize = req.Prize
	}

	paymentHeader := c.Get("X-Payment")
	if paymentHeader == "" {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"x402Version": 1,
			"error":       "Payment Required",
			"accepts": []paymentRequirement{{
				Scheme:            "exact",
				Network:           cfg.Network,
				MaxAmountRequired: required.String(),
				PayTo:             cfg.PlatformWallet.Hex(),
				Asset:             cfg.AssetAddress.Hex(),
			}},
		})
	}

	proof, err := s.Verifier.VerifyCreationPayment(c.Context(), paymentHeader, required)
	if err != nil {
		return utils.RespondError(c, err)
	}

	id := uuid.NewString()
	bounty := &models.Bounty{
		ID:             id,
		Slug:           fmt.Sprintf("%s-%s", slug.Make(req.Title), id[:8]),
		Title:          req.Title,
		Description:    req.Description,
		Prizes:         sanitized,
		Prize:          legacyPrize,
		CreatorAddress: models.NormalizeAddress(req.CreatorAddress),
		Status:         models.BountyStatusOpen,
		TxHash:         proof.TxHash,
	}

	if err := s.DB.Create(bounty).Error; err != nil {
		if isUniqueViolation(err) {
			return utils.RespondError(c, models.NewConflictError("a bounty with this transaction hash already exists"))
		}
		return utils.RespondError(c, models.NewUpstreamError("failed to create bounty", err))
	}

	log.Printf("[BOUNTY] created %s (%s) escrowing %s units, tx %s", bounty.ID, bounty.Slug, required, proof.TxHash)
	return c.Status(fiber.StatusCreated).JSON(bounty)
}

// ListBounties returns bounties newest first, optionally filtered by status
// and creator.
func (s *BountyService) ListBounties(c *fiber.Ctx) error {
	query := s.DB.Preload("Winners").Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if creator := c.Query("creator"); creator != "" {
		query = query.Where("creator_address = ?", models.NormalizeAddress(creator))
	}

	var bounties []models.Bounty
	if err := query.Find(&bounties).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounties", err))
	}
	return c.JSON(bounties)
}

// GetBounty looks a bounty up by id or slug.
func (s *BountyService) GetBounty(c *fiber.Ctx) error {
	ref := c.Params("id")
	if ref == "" {
		return utils.RespondError(c, models.NewValidationError("bounty id is required"))
	}

	var bounty models.Bounty
	err := s.DB.Preload("Winners").Where("id = ? OR slug = ?", ref, ref).First(&bounty).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("bounty not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounty", err))
	}
	return c.JSON(&bounty)
}

// CancelBounty is the creator-initiated clawback. Eligible when the bounty is
// older than 30 days, or older than one hour with zero submissions. Only the
// status flips; the actual fund return is a manual administrative action, so
// the bounty is flagged refund_pending for the sweep job to nag about.
func (s *BountyService) CancelBounty(c *fiber.Ctx) error {
	var req struct {
		BountyID       string `json:"bounty_id"`
		CreatorAddress string `json:"creator_address"`
	}
	if err := c.BodyParser(&req); err != nil || req.BountyID == "" || req.CreatorAddress == "" {
		return utils.RespondError(c, models.NewValidationError("bounty_id and creator_address are required"))
	}

	var bounty models.Bounty
	err := s.DB.First(&bounty, "id = ?", req.BountyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("bounty not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounty", err))
	}

	if !bounty.IsCreator(req.CreatorAddress) {
		return utils.RespondError(c, models.NewAuthorizationError("only the bounty creator can cancel it"))
	}
	if bounty.Status != models.BountyStatusOpen {
		return utils.RespondError(c, models.NewConflictError("bounty is not open"))
	}

	var submissionCount int64
	if err := s.DB.Model(&models.Submission{}).Where("bounty_id = ?", bounty.ID).Count(&submissionCount).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to count submissions", err))
	}

	age := time.Since(bounty.CreatedAt)
	ageDays := age.Hours() / 24

	if !cancellationAllowed(age, submissionCount) {
		return utils.RespondError(c, models.NewValidationError(fmt.Sprintf(
			"cannot cancel yet: bounty must be older than 30 days, or older than 1 hour with no submissions (age: %.1f days, submissions: %d)",
			ageDays, submissionCount)))
	}

	update := map[string]interface{}{
		"status":         models.BountyStatusCancelled,
		"refund_pending": true,
	}
	if err := s.DB.Model(&bounty).Updates(update).Error; err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to cancel bounty", err))
	}

	log.Printf("[BOUNTY] cancelled %s after %.1f days (%d submissions), refund pending", bounty.ID, ageDays, submissionCount)
	return c.JSON(fiber.Map{"message": "Bounty cancelled. Refund will be processed manually."})
}

// cancellationAllowed implements the clawback window: a bounty may be
// cancelled once older than 30 days regardless of submissions, or after one
// hour if nobody has submitted yet.
func cancellationAllowed(age time.Duration, submissionCount int64) bool {
	if age > 30*24*time.Hour {
		return true
	}
	return age > time.Hour && submissionCount == 0
}

// isUniqueViolation reports whether err is a unique-constraint failure,
// either as GORM's translated error or as a raw Postgres SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
