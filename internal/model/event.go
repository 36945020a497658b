package model

import (
	"encoding/json"
	"strconv"
	"time"
)

type EventType string

const (
	EventCampaignCreated       EventType = "CampaignCreated"
	EventContributed           EventType = "Contributed"
	EventFundWithdrawn         EventType = "FundWithdrawn"
	EventRefundIssued          EventType = "RefundIssued"
	EventCampaignStatusUpdated EventType = "CampaignStatusUpdated"
)

// Event is a domain event. Only the fields listed for its Type are set.
type Event struct {
	Type        EventType      `json:"type"`
	CampaignID  int64          `json:"campaign_id"`
	Owner       string         `json:"owner,omitempty"`
	Contributor string         `json:"contributor,omitempty"`
	Amount      int64          `json:"amount,omitempty"`
	GoalAmount  int64          `json:"goal_amount,omitempty"`
	Deadline    int64          `json:"deadline,omitempty"`
	Status      CampaignStatus `json:"status,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func CampaignCreated(c *Campaign, at time.Time) Event {
	return Event{
		Type:       EventCampaignCreated,
		CampaignID: c.ID,
		Owner:      c.Owner,
		GoalAmount: c.GoalAmount,
		Deadline:   c.Deadline,
		OccurredAt: at,
	}
}

func Contributed(campaignID int64, contributor string, amount int64, at time.Time) Event {
	return Event{Type: EventContributed, CampaignID: campaignID, Contributor: contributor, Amount: amount, OccurredAt: at}
}

func FundWithdrawn(campaignID, amount int64, at time.Time) Event {
	return Event{Type: EventFundWithdrawn, CampaignID: campaignID, Amount: amount, OccurredAt: at}
}

func RefundIssued(campaignID int64, contributor string, amount int64, at time.Time) Event {
	return Event{Type: EventRefundIssued, CampaignID: campaignID, Contributor: contributor, Amount: amount, OccurredAt: at}
}

func StatusUpdated(campaignID int64, status CampaignStatus, at time.Time) Event {
	return Event{Type: EventCampaignStatusUpdated, CampaignID: campaignID, Status: status, OccurredAt: at}
}

// OutboxMessage wraps the event for relay. Messages are keyed by campaign so
// a partitioned topic keeps per-campaign order.
func (e Event) OutboxMessage(topic string) (*OutboxMessage, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		MessageKey: strconv.FormatInt(e.CampaignID, 10),
		Topic:      topic,
		Payload:    string(payload),
		Status:     OutboxStatusPending,
	}, nil
}
