package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeConflict      = 409
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// Campaign error codes, one per domain error kind.
const (
	CodeInvalidGoal          = 1001
	CodeInvalidDeadline      = 1002
	CodeContributionZero     = 1003
	CodeContributionOverflow = 1004
	CodeCampaignNotFound     = 1005
	CodeNotCampaignOwner     = 1006
	CodeCampaignNotActive    = 1007
	CodeCampaignExpired      = 1008
	CodeAlreadyFinalized     = 1009
	CodeGoalNotReached       = 1010
	CodeDeadlineNotPassed    = 1011
	CodeGoalWasReached       = 1012
	CodeNoContribution       = 1013
	CodeSettlementPending    = 1014
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageData is the data of every list endpoint.
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Page(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

func BusinessError(c *gin.Context, httpStatus, code int, message string) {
	Error(c, httpStatus, code, message)
}
