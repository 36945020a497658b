package model

import (
	"time"
)

// ============================================================================
// Escrow transfer kinds
// ============================================================================

const (
	TransferKindPayout = "PAYOUT" // goal met, escrow -> owner
	TransferKindRefund = "REFUND" // goal missed, escrow -> contributor
)

// Transfer is one outgoing movement of escrowed funds. It is the last step of
// a withdrawal or refund and is never retried; TransferNo makes a repeated
// delivery a no-op.
type Transfer struct {
	TransferNo string
	CampaignID int64
	Recipient  string
	Amount     int64
	Kind       string
}

// AccountTransaction is the append-only wallet journal. Every credit records
// the balance before and after so balances can be reconciled.
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	Identity      string    `gorm:"type:varchar(128);index;not null" json:"identity"`
	CampaignID    int64     `gorm:"index;not null" json:"campaign_id"`
	TransferNo    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
