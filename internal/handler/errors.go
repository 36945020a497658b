package handler

import (
	"net/http"

	"crowdfund/internal/model"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var kindCodes = map[model.ErrorKind]int{
	model.KindInvalidGoal:             response.CodeInvalidGoal,
	model.KindInvalidDeadline:         response.CodeInvalidDeadline,
	model.KindContributionNotPositive: response.CodeContributionZero,
	model.KindContributionOverflow:    response.CodeContributionOverflow,
	model.KindCampaignNotFound:        response.CodeCampaignNotFound,
	model.KindNotCampaignOwner:        response.CodeNotCampaignOwner,
	model.KindCampaignNotActive:       response.CodeCampaignNotActive,
	model.KindCampaignExpired:         response.CodeCampaignExpired,
	model.KindAlreadyFinalized:        response.CodeAlreadyFinalized,
	model.KindGoalNotReached:          response.CodeGoalNotReached,
	model.KindDeadlineNotPassed:       response.CodeDeadlineNotPassed,
	model.KindGoalWasReached:          response.CodeGoalWasReached,
	model.KindNoContribution:          response.CodeNoContribution,
	model.KindSettlementPending:       response.CodeSettlementPending,
}

var classStatus = map[model.ErrorClass]int{
	model.ClassValidation:    http.StatusBadRequest,
	model.ClassNotFound:      http.StatusNotFound,
	model.ClassAuthorization: http.StatusForbidden,
	model.ClassStateConflict: http.StatusConflict,
}

// renderError writes a domain error with its own code; anything else is
// logged and reported as an opaque server error.
func renderError(c *gin.Context, err error) {
	var de *model.Error
	if errors.As(err, &de) {
		code, ok := kindCodes[de.Kind]
		if !ok {
			code = response.CodeBusinessError
		}
		response.BusinessError(c, classStatus[de.Kind.Class()], code, de.Error())
		return
	}

	log.WithError(err).WithFields(log.Fields{
		"request_id": c.GetString(ctxRequestID),
		"path":       c.FullPath(),
	}).Error("[Handler] request failed")
	response.ServerError(c, "internal server error")
}
