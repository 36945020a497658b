package model

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindInvalidGoal             ErrorKind = "InvalidGoal"
	KindInvalidDeadline         ErrorKind = "InvalidDeadline"
	KindContributionNotPositive ErrorKind = "ContributionMustBeGreaterThanZero"
	KindContributionOverflow    ErrorKind = "ContributionOverflow"
	KindCampaignNotFound        ErrorKind = "CampaignNotFound"
	KindNotCampaignOwner        ErrorKind = "NotCampaignOwner"
	KindCampaignNotActive       ErrorKind = "CampaignNotActive"
	KindCampaignExpired         ErrorKind = "CampaignExpired"
	KindAlreadyFinalized        ErrorKind = "AlreadyFinalized"
	KindGoalNotReached          ErrorKind = "GoalNotReached"
	KindDeadlineNotPassed       ErrorKind = "DeadlineNotPassed"
	KindGoalWasReached          ErrorKind = "GoalWasReached"
	KindNoContribution          ErrorKind = "NoContribution"
	KindSettlementPending       ErrorKind = "SettlementPending"
)

type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassNotFound      ErrorClass = "not_found"
	ClassAuthorization ErrorClass = "authorization"
	ClassStateConflict ErrorClass = "state_conflict"
	ClassInternal      ErrorClass = "internal"
)

func (k ErrorKind) Class() ErrorClass {
	switch k {
	case KindInvalidGoal, KindInvalidDeadline, KindContributionNotPositive, KindContributionOverflow:
		return ClassValidation
	case KindCampaignNotFound:
		return ClassNotFound
	case KindNotCampaignOwner:
		return ClassAuthorization
	default:
		return ClassStateConflict
	}
}

// Error is a typed, recoverable domain failure. CampaignID is zero for
// input validation errors that are not tied to a stored campaign.
type Error struct {
	Kind       ErrorKind
	CampaignID int64
}

func (e *Error) Error() string {
	if e.CampaignID == 0 {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s(%d)", e.Kind, e.CampaignID)
}

// Is matches on Kind. A target without a campaign id matches any campaign.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.CampaignID == 0 || t.CampaignID == e.CampaignID)
}

// For returns a copy of the sentinel bound to a campaign.
func (e *Error) For(campaignID int64) *Error {
	return &Error{Kind: e.Kind, CampaignID: campaignID}
}

var (
	ErrInvalidGoal          = &Error{Kind: KindInvalidGoal}
	ErrInvalidDeadline      = &Error{Kind: KindInvalidDeadline}
	ErrContributionZero     = &Error{Kind: KindContributionNotPositive}
	ErrContributionOverflow = &Error{Kind: KindContributionOverflow}
	ErrCampaignNotFound     = &Error{Kind: KindCampaignNotFound}
	ErrNotCampaignOwner     = &Error{Kind: KindNotCampaignOwner}
	ErrCampaignNotActive    = &Error{Kind: KindCampaignNotActive}
	ErrCampaignExpired      = &Error{Kind: KindCampaignExpired}
	ErrAlreadyFinalized     = &Error{Kind: KindAlreadyFinalized}
	ErrGoalNotReached       = &Error{Kind: KindGoalNotReached}
	ErrDeadlineNotPassed    = &Error{Kind: KindDeadlineNotPassed}
	ErrGoalWasReached       = &Error{Kind: KindGoalWasReached}
	ErrNoContribution       = &Error{Kind: KindNoContribution}
	ErrSettlementPending    = &Error{Kind: KindSettlementPending}
)

// ClassOf reports the taxonomy class of err. Anything that is not a domain
// error is internal.
func ClassOf(err error) ErrorClass {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind.Class()
	}
	return ClassInternal
}
