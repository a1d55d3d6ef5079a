package engine_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txgate/internal/engine"
	"txgate/internal/queue"
	"txgate/internal/risk"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/testutil"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func (f *fixture) queueItems(t *testing.T) []*queue.Item {
	t.Helper()
	items, err := f.queue.List(context.Background(), queue.ListFilter{})
	require.NoError(t, err)
	return items
}

func newEvaluateRouter(t *testing.T, scorer engine.Scorer, resolver engine.ConfigResolver) (chi.Router, *fixture) {
	t.Helper()
	fx := newFixture(t, scorer, resolver)
	r := chi.NewRouter()
	engine.NewHandler(fx.service, discardLogger()).Register(r)
	return r, fx
}

func evaluateBody() map[string]any {
	return map[string]any{
		"transaction_id":  uuid.NewString(),
		"organization_id": uuid.NewString(),
		"country":         "NL",
		"amount":          1_000,
		"currency":        "EUR",
		"submitter_id":    uuid.NewString(),
		"submitter_role":  "accountant",
		"vendor_id":       "vendor-7",
	}
}

type evaluateResponseBody struct {
	AutoApproved    bool      `json:"auto_approved"`
	Reason          string    `json:"reason"`
	Priority        string    `json:"priority"`
	RiskScore       int       `json:"risk_score"`
	FraudConfidence int       `json:"fraud_confidence"`
	ConfigVersion   int64     `json:"config_version"`
	Degraded        bool      `json:"degraded"`
	ItemID          string    `json:"item_id"`
	SLADeadline     time.Time `json:"sla_deadline"`
}

func TestHandleEvaluate(t *testing.T) {
	testutil.Given(t, "a compliant low-risk transaction", func(t *testing.T) {
		router, _ := newEvaluateRouter(t,
			stubScorer{result: risk.Result{RiskScore: 20, FraudConfidence: 10}},
			stubResolver{cfg: enabledConfig()},
		)

		testutil.When(t, "it is submitted for evaluation", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/decisions/evaluate", evaluateBody())
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is auto-approved", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[evaluateResponseBody](t, rr)
				assert.True(t, resp.AutoApproved)
				assert.Equal(t, "auto_approved", resp.Reason)
				assert.Equal(t, int64(5), resp.ConfigVersion)
				assert.Empty(t, resp.ItemID)
			})
		})
	})

	testutil.Given(t, "a transaction over the risk threshold", func(t *testing.T) {
		router, fx := newEvaluateRouter(t,
			stubScorer{result: risk.Result{RiskScore: 80, FraudConfidence: 10}},
			stubResolver{cfg: enabledConfig()},
		)

		testutil.When(t, "it is submitted for evaluation", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/decisions/evaluate", evaluateBody())
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is queued with an SLA deadline", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[evaluateResponseBody](t, rr)
				assert.False(t, resp.AutoApproved)
				assert.Equal(t, "high_risk", resp.Reason)
				assert.Equal(t, "high", resp.Priority)
				assert.NotEmpty(t, resp.ItemID)
				assert.False(t, resp.SLADeadline.IsZero())

				items := fx.queueItems(t)
				assert.Len(t, items, 1)
			})
		})
	})
}

func TestHandleEvaluateValidation(t *testing.T) {
	router, _ := newEvaluateRouter(t,
		stubScorer{result: risk.Result{RiskScore: 20}},
		stubResolver{cfg: enabledConfig()},
	)

	t.Run("malformed JSON", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/decisions/evaluate", "{not json")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	t.Run("missing currency", func(t *testing.T) {
		body := evaluateBody()
		delete(body, "currency")
		req := testutil.NewJSONRequest(t, http.MethodPost, "/decisions/evaluate", body)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("negative amount", func(t *testing.T) {
		body := evaluateBody()
		body["amount"] = -1
		req := testutil.NewJSONRequest(t, http.MethodPost, "/decisions/evaluate", body)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	t.Run("bad transaction id", func(t *testing.T) {
		body := evaluateBody()
		body["transaction_id"] = "not-a-uuid"
		req := testutil.NewJSONRequest(t, http.MethodPost, "/decisions/evaluate", body)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

type transactionHistoryResponseBody struct {
	History []struct {
		ItemID      string `json:"item_id"`
		Action      string `json:"action"`
		AfterStatus string `json:"after_status"`
	} `json:"history"`
}

func TestHandleTransactionHistory(t *testing.T) {
	router, _ := newEvaluateRouter(t,
		stubScorer{result: risk.Result{RiskScore: 20, FraudConfidence: 10}},
		stubResolver{cfg: enabledConfig()},
	)

	body := evaluateBody()
	evalReq := testutil.NewJSONRequest(t, http.MethodPost, "/decisions/evaluate", body)
	testutil.AssertStatusOK(t, testutil.DoRequest(router, evalReq))

	txnID := body["transaction_id"].(string)
	req := testutil.NewRequest(t, http.MethodGet, "/decisions/"+txnID+"/history")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	resp := testutil.UnmarshalResponse[transactionHistoryResponseBody](t, rr)
	require.Len(t, resp.History, 1)
	assert.Equal(t, "auto_approved", resp.History[0].Action)
	assert.Equal(t, "approved", resp.History[0].AfterStatus)
	// Auto-approved transactions never had a queue item.
	assert.Empty(t, resp.History[0].ItemID)
}

func TestHandleTransactionHistoryBadID(t *testing.T) {
	router, _ := newEvaluateRouter(t,
		stubScorer{result: risk.Result{RiskScore: 20}},
		stubResolver{cfg: enabledConfig()},
	)

	req := testutil.NewRequest(t, http.MethodGet, "/decisions/not-a-uuid/history")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
