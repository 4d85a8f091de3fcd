package webapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/amirasaad/splitsync/pkg/config"
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/webapi/syncapi"
	"github.com/amirasaad/splitsync/webapi/testutils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type APITestSuite struct {
	suite.Suite
	env *testutils.Env
}

func (s *APITestSuite) SetupTest() {
	s.env = testutils.NewEnv(s.T())
}

func (s *APITestSuite) request(method, path, body string) *http.Response {
	return testutils.MakeRequest(s.T(), s.env.Fiber, method, path, body)
}

func (s *APITestSuite) TestRoot() {
	resp := s.request(fiber.MethodGet, "/", "")
	defer resp.Body.Close() //nolint:errcheck
	s.Equal(fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	s.Contains(string(body), "splitsync")
}

func (s *APITestSuite) TestSyncPassPushesPendingRows() {
	s.env.SeedPayment(s.T(), 10000, "EUR", domain.SplitEqual, map[string]int64{"a": 5000, "b": 5000})

	resp := s.request(fiber.MethodPost, "/api/sync", `{"force":true}`)
	env := testutils.Decode(s.T(), resp)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Detail)

	var state syncapi.StateResponse
	s.Require().NoError(json.Unmarshal(env.Data, &state))
	s.Equal("completed", state.State)
	s.Contains(s.env.Server.Writes(), "POST /api/v1/payments")
	s.Contains(s.env.Server.Writes(), "POST /api/v1/payment_splits")

	resp = s.request(fiber.MethodGet, "/api/sync/metadata", "")
	env = testutils.Decode(s.T(), resp)
	var rows []domain.SyncMetadata
	s.Require().NoError(json.Unmarshal(env.Data, &rows))
	s.Len(rows, 8)
	for _, row := range rows {
		s.Equal(domain.StatusSynced, row.SyncStatus, row.EntityType)
	}

	resp = s.request(fiber.MethodGet, "/api/sync/metadata/failed", "")
	env = testutils.Decode(s.T(), resp)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.JSONEq(`[]`, string(env.Data))
}

func (s *APITestSuite) TestSyncOffline() {
	s.env.Server.SetOffline(true)

	resp := s.request(fiber.MethodPost, "/api/sync?force=true", "")
	env := testutils.Decode(s.T(), resp)
	s.Equal(fiber.StatusServiceUnavailable, resp.StatusCode)
	s.Equal("Sync pass failed", env.Title)

	resp = s.request(fiber.MethodGet, "/api/sync/state", "")
	env = testutils.Decode(s.T(), resp)
	var state syncapi.StateResponse
	s.Require().NoError(json.Unmarshal(env.Data, &state))
	s.Equal("failed", state.State)
	s.True(state.Offline)
}

func (s *APITestSuite) TestSplitPreview() {
	resp := s.request(fiber.MethodPost, "/api/splits/preview", `{
		"mode":"EQUAL","total":"100.00","currency":"USD",
		"participants":[{"participant_id":"c"},{"participant_id":"a"},{"participant_id":"b"}]
	}`)
	env := testutils.Decode(s.T(), resp)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Detail)

	var preview struct {
		Total  int64 `json:"total"`
		Shares []struct {
			ParticipantID string `json:"participant_id"`
			Amount        int64  `json:"amount"`
			Display       string `json:"display"`
		} `json:"shares"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &preview))
	s.Equal(int64(10000), preview.Total)
	s.Require().Len(preview.Shares, 3)
	s.Equal("c", preview.Shares[0].ParticipantID)
	s.Equal(int64(3333), preview.Shares[0].Amount)
	s.Equal(int64(3334), preview.Shares[1].Amount, "the lowest participant id takes the extra cent")
	s.Equal("33.34", preview.Shares[1].Display)
}

func (s *APITestSuite) TestSplitPreviewRejects() {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"no participants", `{"mode":"EQUAL","total":"1","currency":"USD","participants":[]}`, fiber.StatusBadRequest},
		{"unknown mode", `{"mode":"RANDOM","total":"1","currency":"USD","participants":[{"participant_id":"a"}]}`, fiber.StatusBadRequest},
		{"too many decimals", `{"mode":"EQUAL","total":"1.001","currency":"USD","participants":[{"participant_id":"a"}]}`, fiber.StatusUnprocessableEntity},
		{"missing percentage", `{"mode":"PERCENTAGE","total":"10","currency":"USD","participants":[
			{"participant_id":"a","percentage":"50"},{"participant_id":"b"}]}`, fiber.StatusUnprocessableEntity},
		{"malformed", `{"mode":`, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp := s.request(fiber.MethodPost, "/api/splits/preview", tt.body)
			env := testutils.Decode(s.T(), resp)
			s.Equal(tt.status, resp.StatusCode, env.Detail)
		})
	}
}

func (s *APITestSuite) TestConvertPayment() {
	p := s.env.SeedPayment(s.T(), 10000, "EUR", domain.SplitEqual, map[string]int64{"a": 3334, "b": 3333, "c": 3333})

	resp := s.request(fiber.MethodPost, "/api/payments/"+p.ID+"/convert",
		`{"from":"EUR","to":"USD","amount":"100.00","rate":"1.17","actor":"alice","source":"ecb"}`)
	env := testutils.Decode(s.T(), resp)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Detail)

	var out map[string]any
	s.Require().NoError(json.Unmarshal(env.Data, &out))
	s.EqualValues(11700, out["final_amount"])
	s.Equal("USD", out["final_currency"])

	// the stored payment no longer matches the request
	resp = s.request(fiber.MethodPost, "/api/payments/"+p.ID+"/convert",
		`{"from":"EUR","to":"USD","amount":"100.00","rate":"1.17","actor":"alice"}`)
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)
	_ = resp.Body.Close()

	resp = s.request(fiber.MethodPost, "/api/payments/missing/convert",
		`{"from":"EUR","to":"USD","amount":"1","rate":"1.17","actor":"alice"}`)
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp = s.request(fiber.MethodPost, "/api/payments/"+p.ID+"/convert",
		`{"from":"USD","to":"USD","amount":"117","rate":"1","actor":"alice"}`)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = s.request(fiber.MethodPost, "/api/payments/"+p.ID+"/convert",
		`{"from":"USD","to":"EUR","amount":"117","rate":"0","actor":"alice"}`)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func (s *APITestSuite) TestFeedRefresh() {
	resp := s.request(fiber.MethodPost, "/api/feeds/transactions/refresh", `{"consumer":"alice","mode":"manual"}`)
	env := testutils.Decode(s.T(), resp)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Detail)
	s.Equal(1, s.env.Server.FeedCalls())

	resp = s.request(fiber.MethodPost, "/api/feeds/transactions/refresh", `{"consumer":"alice"}`)
	env = testutils.Decode(s.T(), resp)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("Feed refresh not admitted", env.Message)
	s.JSONEq(`{"refreshed":false,"shared":false,"reason":"cooldown"}`, string(env.Data))
	s.Equal(1, s.env.Server.FeedCalls())

	resp = s.request(fiber.MethodGet, "/api/feeds/transactions/alice", "")
	env = testutils.Decode(s.T(), resp)
	var status struct {
		State struct {
			CallsUsed int `json:"calls_used"`
		} `json:"state"`
		Allowed   bool `json:"allowed"`
		CanManual bool `json:"can_manual"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &status))
	s.Equal(1, status.State.CallsUsed)
	s.False(status.Allowed)
	s.True(status.CanManual)

	resp = s.request(fiber.MethodPost, "/api/feeds/transactions/refresh", `{"consumer":"alice","mode":"weekly"}`)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func (s *APITestSuite) TestFeedUpstreamFailure() {
	s.env.Server.FailFeed(true)
	resp := s.request(fiber.MethodPost, "/api/feeds/transactions/refresh", `{"consumer":"bob","mode":"manual"}`)
	env := testutils.Decode(s.T(), resp)
	s.Equal(fiber.StatusServiceUnavailable, resp.StatusCode)
	s.Equal("Feed refresh failed", env.Title)
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func TestRateLimit(t *testing.T) {
	env := testutils.NewEnv(t, func(cfg *config.App) {
		cfg.RateLimit.MaxRequests = 2
	})
	for i := range 3 {
		resp := testutils.MakeRequest(t, env.Fiber, fiber.MethodGet, "/", "")
		_ = resp.Body.Close()
		if i < 2 {
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		} else {
			require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		}
	}
}
