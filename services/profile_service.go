package services

import (
	"errors"

	"bounty-publish-system/models"
	"bounty-publish-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// GetProfile returns the profile for a wallet address.
func (s *ProfileService) GetProfile(c *fiber.Ctx) error {
	address := models.NormalizeAddress(c.Params("address"))
	if address == "" {
		return utils.RespondError(c, models.NewValidationError("wallet address is required"))
	}

	var profile models.Profile
	err := s.DB.First(&profile, "wallet_address = ?", address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.RespondError(c, models.NewNotFoundError("profile not found"))
	}
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to fetch profile", err))
	}
	return c.JSON(&profile)
}

// UpsertProfile creates or updates the caller's profile.
func (s *ProfileService) UpsertProfile(c *fiber.Ctx) error {
	var req struct {
		WalletAddress string `json:"wallet_address"`
		Username      string `json:"username"`
		Bio           string `json:"bio"`
		Twitter       string `json:"twitter"`
		Discord       string `json:"discord"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.RespondError(c, models.NewValidationError("invalid request body"))
	}
	if req.WalletAddress == "" {
		return utils.RespondError(c, models.NewValidationError("wallet address is required"))
	}

	profile := &models.Profile{
		WalletAddress: models.NormalizeAddress(req.WalletAddress),
		Username:      req.Username,
		Bio:           req.Bio,
		Twitter:       req.Twitter,
		Discord:       req.Discord,
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "bio", "twitter", "discord"}),
	}).Create(profile).Error
	if err != nil {
		return utils.RespondError(c, models.NewUpstreamError("failed to update profile", err))
	}

	return c.JSON(profile)
}
