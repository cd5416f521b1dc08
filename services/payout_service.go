package services

import (
	"context"
	"errors"
	"log"
	"math/big"

	"bounty-publish-system/chain"
	"bounty-publish-system/models"
	"bounty-publish-system/utils"
	"bounty-publish-system/workers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenSender broadcasts a settlement-asset transfer from the custodial
// wallet. *chain.PayoutExecutor is the production implementation.
type TokenSender interface {
	SendToken(ctx context.Context, to common.Address, amount *big.Int) (string, error)
}

type PayoutService struct {
	DB       *gorm.DB
	Executor TokenSender
	Notifier *workers.Notifier
}

func NewPayoutService(db *gorm.DB, executor TokenSender, notifier *workers.Notifier) *PayoutService {
	return &PayoutService{DB: db, Executor: executor, Notifier: notifier}
}

// ExecutePayout awards a prize rank to a submission and pays the hunter from
// the custodial wallet.
//
// The award runs inside a single store transaction: the winner row is
// reserved first (the unique (bounty_id, rank) index rejects a concurrent
// award for the same rank before any funds move), then the on-chain transfer
// is broadcast, then status and visibility are recomputed. A failed transfer
// rolls the whole transaction back, so from the ledger's perspective a failed
// award never happened.
func (s *PayoutService) ExecutePayout(c *fiber.Ctx) error {
	var req struct {
		BountyID       string `json:"bounty_id"`
		SubmissionID   string `json:"submission_id"`
		WinnerAddress  string `json:"winner_address"`
		CreatorAddress string `json:"creator_address"`
		Rank           int    `json:"rank"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondError(c, models.NewValidationError("invalid request body"))
	}
	if req.BountyID == "" || req.SubmissionID == "" || req.WinnerAddress == "" || req.CreatorAddress == "" {
		return utils.RespondError(c, models.NewValidationError("bounty_id, submission_id, winner_address and creator_address are required"))
	}
	if !common.IsHexAddress(req.WinnerAddress) {
		return utils.RespondError(c, models.NewValidationError("winner_address is not a valid address"))
	}

	var bounty models.Bounty
	err := s.DB.Preload("Winners").First(&bounty, "id = ?", req.BountyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("bounty not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch bounty", err))
	}

	if !bounty.IsCreator(req.CreatorAddress) {
		return utils.RespondError(c, models.NewAuthorizationError("only the bounty creator can select a winner"))
	}

	// PAID and CANCELLED are terminal: no rank on a cancelled bounty is ever
	// payable, whatever the ledger says about remaining tiers.
	if bounty.Status != models.BountyStatusOpen {
		return utils.RespondError(c, models.NewConflictError("bounty is not open"))
	}

	// Resolve the amount owed for this award.
	rank := req.Rank
	var amount string
	if bounty.IsMultiPrize() {
		if rank == 0 {
			return utils.RespondError(c, models.NewValidationError("rank is required for multi-prize bounties"))
		}
		tier, ok := bounty.TierForRank(rank)
		if !ok {
			return utils.RespondError(c, models.NewValidationError("invalid prize rank"))
		}
		if models.RankAwarded(bounty.Winners, rank) {
			return utils.RespondError(c, models.NewConflictError("this prize rank has already been awarded"))
		}
		amount = tier.Amount
	} else {
		rank = 1
		amount = bounty.Prize
	}

	amountUnits, err := chain.ParseUnits(amount)
	if err != nil {
		return utils.RespondError(c, models.NewExecutionError("declared prize amount is not payable", err))
	}

	winner := models.NormalizeAddress(req.WinnerAddress)

	var submission models.Submission
	err = s.DB.Where("id = ? AND bounty_id = ?", req.SubmissionID, req.BountyID).First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("submission not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch submission", err))
	}
	if models.NormalizeAddress(submission.HunterAddress) != winner {
		return utils.RespondError(c, models.NewValidationError("winner address does not match submission"))
	}

	if s.Executor == nil {
		return utils.RespondError(c, models.NewExecutionError("payout system not configured", nil))
	}

	var txHash string
	var resolved bool
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		record := &models.BountyWinner{
			ID:            uuid.NewString(),
			BountyID:      bounty.ID,
			Rank:          rank,
			SubmissionID:  submission.ID,
			HunterAddress: winner,
			Amount:        amount,
		}
		if err := tx.Create(record).Error; err != nil {
			if isUniqueViolation(err) {
				return models.NewConflictError("this prize rank has already been awarded")
			}
			return models.NewUpstreamError("failed to record winner", err)
		}

		// Funds move only after the rank reservation held. A broadcast
		// failure aborts the transaction, leaving the ledger untouched.
		hash, err := s.Executor.SendToken(c.Context(), common.HexToAddress(winner), amountUnits)
		if err != nil {
			return models.NewExecutionError("payout transaction failed: platform wallet may have insufficient funds or gas", err)
		}
		txHash = hash

		var winners []models.BountyWinner
		if err := tx.Where("bounty_id = ?", bounty.ID).Find(&winners).Error; err != nil {
			return models.NewUpstreamError("failed to load winners", err)
		}

		// Status is derived fresh from the winners set, never incremented.
		status := models.BountyStatusOpen
		resolved = bounty.AllRanksAwarded(winners)
		if resolved {
			status = models.BountyStatusPaid
		}

		bountyUpdate := map[string]interface{}{"status": status}
		if rank == 1 {
			bountyUpdate["winner_address"] = winner
		}
		if err := tx.Model(&models.Bounty{}).Where("id = ?", bounty.ID).Updates(bountyUpdate).Error; err != nil {
			return models.NewUpstreamError("failed to update bounty", err)
		}

		subUpdate := map[string]interface{}{
			"is_public": true,
			"prize_won": amount,
			"rank":      rank,
		}
		if err := tx.Model(&models.Submission{}).Where("id = ?", submission.ID).Updates(subUpdate).Error; err != nil {
			return models.NewUpstreamError("failed to update winning submission", err)
		}

		// Transparency on resolution: every submission goes public once the
		// last rank is filled, winners and losers alike.
		if resolved {
			if err := tx.Model(&models.Submission{}).Where("bounty_id = ?", bounty.ID).Update("is_public", true).Error; err != nil {
				return models.NewUpstreamError("failed to publish submissions", err)
			}
		}
		return nil
	})
	if err != nil {
		return utils.RespondError(c, err)
	}

	log.Printf("[PAYOUT] bounty %s rank %d awarded to %s for %s (tx %s, resolved=%t)",
		bounty.ID, rank, winner, amount, txHash, resolved)
	go s.Notifier.NotifyPayout(bounty.Title, winner, amount, txHash)

	return c.JSON(fiber.Map{
		"success": true,
		"txHash":  txHash,
		"winner":  winner,
		"prize":   amount,
	})
}
