package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Submission is a hunter's answer to a bounty. Content and contact are hidden
// from third parties until the submission wins or the bounty resolves.
type Submission struct {
	ID            string `json:"id" gorm:"primaryKey"`
	BountyID      string `json:"bounty_id" gorm:"not null;index;uniqueIndex:idx_submission_bounty_hunter"`
	HunterAddress string `json:"hunter_address" gorm:"not null;index;uniqueIndex:idx_submission_bounty_hunter"`
	Content       string `json:"content" gorm:"type:text"`
	Contact       string `json:"contact"`
	// ContentHash anchors the payload at creation time. It is never
	// recomputed; submissions are immutable after insert.
	ContentHash string `json:"content_hash"`
	// BlockNumber is the chain height observed at submission time. Zero when
	// the RPC call failed; it is an ordering hint, not a correctness field.
	BlockNumber uint64     `json:"block_number"`
	AIScore     *int       `json:"ai_score,omitempty"`
	AINotes     string     `json:"ai_notes,omitempty" gorm:"type:text"`
	IsPublic    bool       `json:"is_public" gorm:"default:false"`
	PrizeWon    *string    `json:"prize_won,omitempty"`
	Rank        *int       `json:"rank,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime;index"`

	Attachments []SubmissionAttachment `json:"attachments,omitempty" gorm:"foreignKey:SubmissionID"`
}

// SubmissionAttachment is a proof file uploaded by the hunter, stored in R2.
type SubmissionAttachment struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	SubmissionID string    `json:"submission_id" gorm:"not null;index"`
	FileName     string    `json:"file_name"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// HashContent computes the tamper-evidence digest over content and contact.
// The canonical form is a JSON object so field boundaries survive.
func HashContent(content, contact string) string {
	payload, _ := json.Marshal(struct {
		Content string `json:"content"`
		Contact string `json:"contact"`
	}{content, contact})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// VisibleTo reports whether viewer may read the submission body. The creator
// and the author always can; everyone else only once the submission is public
// or the bounty has fully paid out.
func (s *Submission) VisibleTo(viewer string, bounty *Bounty) bool {
	v := NormalizeAddress(viewer)
	if v != "" && v == NormalizeAddress(s.HunterAddress) {
		return true
	}
	if bounty == nil {
		return s.IsPublic
	}
	if v != "" && bounty.IsCreator(v) {
		return true
	}
	return s.IsPublic || bounty.Status == BountyStatusPaid
}

// Redacted returns a copy with the body withheld. Metadata (existence, hunter,
// timestamps, score) stays readable.
func (s Submission) Redacted() Submission {
	s.Content = ""
	s.Contact = ""
	s.Attachments = nil
	return s
}
