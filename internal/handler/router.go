package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		campaigns := api.Group("/campaigns")
		{
			campaigns.GET("", h.ListCampaigns)
			campaigns.GET("/count", h.CampaignCount)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.GET("/:id/contributions", h.ListContributions)
			campaigns.GET("/:id/contributions/:contributor", h.GetContribution)

			signed := campaigns.Group("", CallerMiddleware())
			signed.POST("", h.CreateCampaign)
			signed.POST("/:id/contributions", h.Contribute)
			signed.POST("/:id/withdraw", h.Withdraw)
			signed.POST("/:id/refund", h.Refund)
		}

		account := api.Group("/account", CallerMiddleware())
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/transactions", h.ListTransactions)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
