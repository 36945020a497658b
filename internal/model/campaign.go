package model

import (
	"time"
)

type CampaignStatus string

const (
	CampaignStatusActive     CampaignStatus = "ACTIVE"
	CampaignStatusSuccessful CampaignStatus = "SUCCESSFUL"
	CampaignStatusFailed     CampaignStatus = "FAILED"
)

// ValidStatusTransitions lists the only legal moves. Terminal states have no entry.
var ValidStatusTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusActive: {CampaignStatusSuccessful, CampaignStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus CampaignStatus) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusSuccessful || s == CampaignStatusFailed
}

// Campaign is one funding campaign.
// Amounts are in the smallest currency unit, Deadline is unix seconds.
// TotalContributions always equals the sum of the contribution balances;
// refunds move value from it to RefundedAmount.
type Campaign struct {
	ID                 int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Owner              string         `gorm:"type:varchar(128);index;not null" json:"owner"`
	Title              string         `gorm:"type:varchar(256);not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	ImageURL           string         `gorm:"type:varchar(1024)" json:"image_url"`
	GoalAmount         int64          `gorm:"not null" json:"goal_amount"`
	Deadline           int64          `gorm:"not null;index" json:"deadline"`
	TotalContributions int64          `gorm:"not null;default:0" json:"total_contributions"`
	RefundedAmount     int64          `gorm:"not null;default:0" json:"refunded_amount"`
	ContributorCount   int64          `gorm:"not null;default:0" json:"contributor_count"`
	Status             CampaignStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Settlement         Settlement     `gorm:"embedded;embeddedPrefix:settlement_" json:"-"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaign"
}

// NewCampaign validates creation input and returns an Active campaign without an id.
func NewCampaign(owner, title, description, imageURL string, goalAmount, deadline int64, now time.Time) (*Campaign, error) {
	if goalAmount <= 0 {
		return nil, ErrInvalidGoal
	}
	if deadline <= now.Unix() {
		return nil, ErrInvalidDeadline
	}
	return &Campaign{
		Owner:       owner,
		Title:       title,
		Description: description,
		ImageURL:    imageURL,
		GoalAmount:  goalAmount,
		Deadline:    deadline,
		Status:      CampaignStatusActive,
	}, nil
}

func (c *Campaign) GoalReached() bool {
	return c.TotalContributions >= c.GoalAmount
}

// Raised is everything ever contributed, refunded or not.
func (c *Campaign) Raised() int64 {
	return c.TotalContributions + c.RefundedAmount
}

func (c *Campaign) DeadlinePassed(now time.Time) bool {
	return now.Unix() >= c.Deadline
}

// Settlement is a payout or refund whose state change has committed but whose
// transfer is not confirmed yet. A campaign has at most one open settlement;
// while it is open every other mutation of the campaign is rejected.
type Settlement struct {
	TransferNo  string         `gorm:"type:varchar(64);not null;default:'';index" json:"transfer_no,omitempty"`
	Kind        string         `gorm:"type:varchar(20);not null;default:''" json:"kind,omitempty"`
	Recipient   string         `gorm:"type:varchar(128);not null;default:''" json:"recipient,omitempty"`
	Amount      int64          `gorm:"not null;default:0" json:"amount,omitempty"`
	PriorStatus CampaignStatus `gorm:"type:varchar(20);not null;default:''" json:"prior_status,omitempty"`
	StartedAt   int64          `gorm:"not null;default:0;index" json:"started_at,omitempty"` // unix seconds
}

// OpenSettlement records t as in flight. prior is the status to restore if
// the transfer fails.
func OpenSettlement(t *Transfer, prior CampaignStatus, now time.Time) Settlement {
	return Settlement{
		TransferNo:  t.TransferNo,
		Kind:        t.Kind,
		Recipient:   t.Recipient,
		Amount:      t.Amount,
		PriorStatus: prior,
		StartedAt:   now.Unix(),
	}
}

func (s Settlement) Open() bool {
	return s.TransferNo != ""
}

func (s Settlement) Transfer(campaignID int64) *Transfer {
	return &Transfer{
		TransferNo: s.TransferNo,
		CampaignID: campaignID,
		Recipient:  s.Recipient,
		Amount:     s.Amount,
		Kind:       s.Kind,
	}
}

// Contribution is the cumulative amount of one contributor in one campaign.
type Contribution struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	CampaignID  int64     `gorm:"uniqueIndex:uk_campaign_contributor;not null" json:"campaign_id"`
	Contributor string    `gorm:"type:varchar(128);uniqueIndex:uk_campaign_contributor;not null" json:"contributor"`
	Amount      int64     `gorm:"not null;default:0" json:"amount"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Contribution) TableName() string {
	return "contribution"
}
