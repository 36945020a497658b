package model

import (
	"time"
)

// Account is the wallet that escrow payouts and refunds are credited to.
// Contributions never debit it: their value arrives with the request.
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Identity  string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"identity"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"version"` // bumped on every credit
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
