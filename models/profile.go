package models

import "time"

// Profile is optional display metadata keyed by wallet address.
type Profile struct {
	WalletAddress string    `json:"wallet_address" gorm:"primaryKey"`
	Username      string    `json:"username,omitempty"`
	Bio           string    `json:"bio,omitempty" gorm:"type:text"`
	Twitter       string    `json:"twitter,omitempty"`
	Discord       string    `json:"discord,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
