package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/internal/service"
	"crowdfund/internal/wallet"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type testServer struct {
	router *gin.Engine
	clock  *testClock
	wallet *wallet.MemoryWallet
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	w := wallet.NewMemoryWallet()
	repo := repository.NewMemoryRepository("events")

	h := NewHandler(
		service.NewCampaignService(repo, w, service.WithClock(clock)),
		service.NewAccountService(w),
	)
	h.now = clock.Now
	return &testServer{router: SetupRouter(h), clock: clock, wallet: w}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, caller string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(HeaderCallerID, caller)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func (s *testServer) createCampaign(t *testing.T, goal, duration int64) int64 {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/campaigns", "0xowner", gin.H{
		"title":            "Community garden",
		"description":      "Seeds and tools",
		"goal_amount":      goal,
		"duration_seconds": duration,
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	var c struct {
		ID int64 `json:"id"`
	}
	decode(t, env.Data, &c)
	return c.ID
}

func TestCampaignLifecycle_Withdraw(t *testing.T) {
	s := newTestServer(t)
	id := s.createCampaign(t, 200000, 3600)
	assert.Equal(t, int64(1), id)

	status, env := s.do(t, http.MethodPost, "/api/v1/campaigns/1/contributions", "0xalice", gin.H{"amount": 200000})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(t, http.MethodGet, "/api/v1/campaigns/1", "", nil)
	require.Equal(t, http.StatusOK, status)
	var details struct {
		Owner              string `json:"owner"`
		TotalContributions int64  `json:"total_contributions"`
		GoalReached        bool   `json:"goal_reached"`
		Status             string `json:"status"`
	}
	decode(t, env.Data, &details)
	assert.Equal(t, "0xowner", details.Owner)
	assert.Equal(t, int64(200000), details.TotalContributions)
	assert.True(t, details.GoalReached)
	assert.Equal(t, "ACTIVE", details.Status)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns/1/withdraw", "0xalice", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, response.CodeNotCampaignOwner, env.Code)
	assert.Equal(t, "NotCampaignOwner(1)", env.Message)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns/1/withdraw", "0xowner", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var result service.WithdrawResult
	decode(t, env.Data, &result)
	assert.Equal(t, int64(200000), result.Amount)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns/1/withdraw", "0xowner", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodeAlreadyFinalized, env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/account/balance", "0xowner", nil)
	require.Equal(t, http.StatusOK, status)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	decode(t, env.Data, &balance)
	assert.Equal(t, int64(200000), balance.Balance)
}

func TestCampaignLifecycle_Refund(t *testing.T) {
	s := newTestServer(t)
	s.createCampaign(t, 200000, 3600)

	status, _ := s.do(t, http.MethodPost, "/api/v1/campaigns/1/contributions", "0xalice", gin.H{"amount": 100000})
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodPost, "/api/v1/campaigns/1/refund", "0xalice", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, response.CodeDeadlineNotPassed, env.Code)

	s.clock.now = s.clock.now.Add(2 * time.Hour)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns/1/refund", "0xalice", nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(t, http.MethodGet, "/api/v1/campaigns/1/contributions/0xalice", "", nil)
	require.Equal(t, http.StatusOK, status)
	var contribution struct {
		Amount int64 `json:"amount"`
	}
	decode(t, env.Data, &contribution)
	assert.Zero(t, contribution.Amount)

	status, env = s.do(t, http.MethodGet, "/api/v1/account/transactions", "0xalice", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Total int64 `json:"total"`
	}
	decode(t, env.Data, &page)
	assert.Equal(t, int64(1), page.Total)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodPost, "/api/v1/campaigns", "0xowner", gin.H{"title": "x", "goal_amount": 0, "duration_seconds": 60})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.CodeInvalidGoal, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns", "0xowner", gin.H{"title": "x", "goal_amount": 0, "duration_seconds": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.CodeInvalidGoal, env.Code)

	s.createCampaign(t, 100, 60)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns/1/contributions", "0xalice", gin.H{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.CodeContributionZero, env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/campaigns/9", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, response.CodeCampaignNotFound, env.Code)
	assert.Equal(t, "CampaignNotFound(9)", env.Message)

	status, env = s.do(t, http.MethodGet, "/api/v1/campaigns/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.CodeParamError, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/campaigns/1/contributions", "", gin.H{"amount": 5})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, response.CodeUnauthorized, env.Code)
}

func TestRenderError_SettlementPending(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	renderError(c, errors.Wrap(model.ErrSettlementPending.For(3), "refund"))

	assert.Equal(t, http.StatusConflict, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, response.CodeSettlementPending, env.Code)
	assert.Equal(t, "SettlementPending(3)", env.Message)
}

func TestListAndCount(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.createCampaign(t, 100, 60)
	}

	status, env := s.do(t, http.MethodGet, "/api/v1/campaigns/count", "", nil)
	require.Equal(t, http.StatusOK, status)
	var count struct {
		Count int64 `json:"count"`
	}
	decode(t, env.Data, &count)
	assert.Equal(t, int64(3), count.Count)

	status, env = s.do(t, http.MethodGet, "/api/v1/campaigns?page=1&page_size=2", "", nil)
	require.Equal(t, http.StatusOK, status)
	var page struct {
		List []struct {
			ID int64 `json:"id"`
		} `json:"list"`
		Total int64 `json:"total"`
	}
	decode(t, env.Data, &page)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.List, 2)
	assert.Equal(t, int64(3), page.List[0].ID)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, http.MethodGet, "/api/v1/campaigns/count", "", nil)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crowdfund_http_request_duration_seconds")
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}
