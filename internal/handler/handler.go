package handler

import (
	"strconv"
	"time"

	"crowdfund/internal/model"
	"crowdfund/internal/service"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	campaignService *service.CampaignService
	accountService  *service.AccountService
	now             func() time.Time
}

func NewHandler(campaignService *service.CampaignService, accountService *service.AccountService) *Handler {
	return &Handler{
		campaignService: campaignService,
		accountService:  accountService,
		now:             time.Now,
	}
}

// campaignView adds the lazily evaluated conditions to the stored record.
// Status stays the stored one: a campaign past its deadline is still ACTIVE
// until somebody withdraws or refunds.
type campaignView struct {
	*model.Campaign
	Raised         int64 `json:"raised"`
	GoalReached    bool  `json:"goal_reached"`
	DeadlinePassed bool  `json:"deadline_passed"`
	Settling       bool  `json:"settling"`
}

func (h *Handler) view(c *model.Campaign) campaignView {
	return campaignView{
		Campaign:       c,
		Raised:         c.Raised(),
		GoalReached:    c.GoalReached(),
		DeadlinePassed: c.DeadlinePassed(h.now()),
		Settling:       c.Settlement.Open(),
	}
}

func campaignID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid campaign id")
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}

// ============================================================
// Campaigns
// ============================================================

type CreateCampaignRequest struct {
	Title           string `json:"title" binding:"required,max=256"`
	Description     string `json:"description"`
	GoalAmount      int64  `json:"goal_amount"`
	DurationSeconds int64  `json:"duration_seconds"`
	ImageURL        string `json:"image_url" binding:"max=1024"`
}

// CreateCampaign
// POST /api/v1/campaigns
//
// goal_amount and duration_seconds are validated by the service so the
// client gets InvalidGoal / InvalidDeadline rather than a binding error.
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	campaign, err := h.campaignService.CreateCampaign(c.Request.Context(), callerOf(c), &service.CreateCampaignRequest{
		Title:           req.Title,
		Description:     req.Description,
		GoalAmount:      req.GoalAmount,
		DurationSeconds: req.DurationSeconds,
		ImageURL:        req.ImageURL,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	response.Success(c, h.view(campaign))
}

// GET /api/v1/campaigns?page=1&page_size=10
func (h *Handler) ListCampaigns(c *gin.Context) {
	page, pageSize := pageParams(c)

	campaigns, total, err := h.campaignService.ListCampaigns(c.Request.Context(), page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}

	views := make([]campaignView, 0, len(campaigns))
	for _, campaign := range campaigns {
		views = append(views, h.view(campaign))
	}
	response.Page(c, views, total, page, pageSize)
}

// GET /api/v1/campaigns/count
func (h *Handler) CampaignCount(c *gin.Context) {
	count, err := h.campaignService.CampaignCount(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// GET /api/v1/campaigns/:id
func (h *Handler) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	campaign, err := h.campaignService.GetCampaignDetails(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, h.view(campaign))
}

type ContributeRequest struct {
	Amount int64 `json:"amount"`
}

// POST /api/v1/campaigns/:id/contributions
func (h *Handler) Contribute(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	receipt, err := h.campaignService.Contribute(c.Request.Context(), id, callerOf(c), req.Amount)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, receipt)
}

// GET /api/v1/campaigns/:id/contributions
func (h *Handler) ListContributions(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	list, err := h.campaignService.ListContributions(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, gin.H{"list": list, "total": len(list)})
}

// GET /api/v1/campaigns/:id/contributions/:contributor
func (h *Handler) GetContribution(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	contributor := c.Param("contributor")

	amount, err := h.campaignService.GetUserContribution(c.Request.Context(), id, contributor)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, gin.H{
		"campaign_id": id,
		"contributor": contributor,
		"amount":      amount,
	})
}

// POST /api/v1/campaigns/:id/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	result, err := h.campaignService.WithdrawFunds(c.Request.Context(), id, callerOf(c))
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, result)
}

// POST /api/v1/campaigns/:id/refund
func (h *Handler) Refund(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	result, err := h.campaignService.Refund(c.Request.Context(), id, callerOf(c))
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// Account
// ============================================================

// GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	caller := callerOf(c)
	balance, err := h.accountService.GetBalance(c.Request.Context(), caller)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, gin.H{
		"identity": caller,
		"balance":  balance,
	})
}

// GET /api/v1/account/transactions?page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	page, pageSize := pageParams(c)

	list, total, err := h.accountService.ListTransactions(c.Request.Context(), callerOf(c), page, pageSize)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Page(c, list, total, page, pageSize)
}
