package models

import (
	"strings"
	"time"
)

// Bounty status values. OPEN is the only non-terminal state.
const (
	BountyStatusOpen      = "OPEN"
	BountyStatusPaid      = "PAID"
	BountyStatusCancelled = "CANCELLED"
)

// PrizeTier is one ranked reward slot within a bounty.
// Amount is a decimal string in display units (e.g., "10" or "0.5" USDC).
type PrizeTier struct {
	Rank   int    `json:"rank"`
	Amount string `json:"amount"`
}

// Bounty is a funded task posting. It becomes a row only after the creation
// payment has been verified on-chain, so an OPEN bounty is always escrowed.
type Bounty struct {
	ID             string      `json:"id" gorm:"primaryKey"`
	Slug           string      `json:"slug" gorm:"index"`
	Title          string      `json:"title" gorm:"not null"`
	Description    string      `json:"description" gorm:"type:text"`
	CreatorAddress string      `json:"creator_address" gorm:"not null;index"`
	Status         string      `json:"status" gorm:"default:'OPEN';index"`
	Prizes         []PrizeTier `json:"prizes" gorm:"serializer:json"`
	// Prize is the legacy single-prize amount, used when Prizes is empty.
	Prize         string `json:"prize"`
	WinnerAddress string `json:"winner_address,omitempty"`
	// TxHash is the creation payment transaction. Unique: a payment can fund
	// exactly one bounty.
	TxHash        string    `json:"tx_hash" gorm:"uniqueIndex;not null"`
	RefundPending bool      `json:"refund_pending" gorm:"default:false"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Winners []BountyWinner `json:"winners,omitempty" gorm:"foreignKey:BountyID"`
}

// BountyWinner records one awarded prize rank. The unique index over
// (bounty_id, rank) is what makes a concurrent double-award for the same rank
// fail at the store instead of racing the read-check-write in the service.
type BountyWinner struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	BountyID      string    `json:"bounty_id" gorm:"not null;uniqueIndex:idx_bounty_winner_rank"`
	Rank          int       `json:"rank" gorm:"not null;uniqueIndex:idx_bounty_winner_rank"`
	SubmissionID  string    `json:"submission_id" gorm:"not null"`
	HunterAddress string    `json:"hunter_address" gorm:"not null"`
	Amount        string    `json:"amount"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// IsMultiPrize reports whether the bounty uses ranked prize tiers rather than
// the legacy single-prize mode.
func (b *Bounty) IsMultiPrize() bool {
	return len(b.Prizes) > 0
}

// TierForRank returns the declared tier for a rank, if any.
func (b *Bounty) TierForRank(rank int) (PrizeTier, bool) {
	for _, t := range b.Prizes {
		if t.Rank == rank {
			return t, true
		}
	}
	return PrizeTier{}, false
}

// RankAwarded reports whether a winner has already been recorded for rank.
func RankAwarded(winners []BountyWinner, rank int) bool {
	for _, w := range winners {
		if w.Rank == rank {
			return true
		}
	}
	return false
}

// AllRanksAwarded reports whether every declared tier has a recorded winner.
// Legacy single-prize bounties resolve with their first (only) winner.
func (b *Bounty) AllRanksAwarded(winners []BountyWinner) bool {
	if !b.IsMultiPrize() {
		return len(winners) > 0
	}
	for _, t := range b.Prizes {
		if !RankAwarded(winners, t.Rank) {
			return false
		}
	}
	return true
}

// IsCreator compares an address against the bounty creator, case-insensitive.
func (b *Bounty) IsCreator(address string) bool {
	return NormalizeAddress(address) == NormalizeAddress(b.CreatorAddress)
}

// NormalizeAddress lowercases and trims a chain address so comparisons and
// stored values never disagree on casing.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
