// Package ml is the HTTP client for the external anomaly inference service
// backing the statistical risk layer.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"txgate/internal/risk"
	id "txgate/pkg/domain"
)

// Client calls the inference service over HTTP. It implements
// risk.InferenceClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs an inference client. timeout bounds each request end to end.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// predictRequest is the feature vector the model consumes. Keep feature names
// in sync with the model's training pipeline.
type predictRequest struct {
	TransactionID string `json:"transaction_id"`
	Organization  string `json:"organization_id"`
	Country       string `json:"country"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	SubmitterRole string `json:"submitter_role"`
	VendorID      string `json:"vendor_id"`
	VendorIsNew   bool   `json:"vendor_is_new"`
}

type predictResponse struct {
	AnomalyScore    int `json:"anomaly_score"`
	FraudConfidence int `json:"fraud_confidence"`
}

// Predict sends the transaction features to the model and returns its scores.
func (c *Client) Predict(ctx context.Context, txn id.TransactionContext) (risk.Prediction, error) {
	payload, err := json.Marshal(predictRequest{
		TransactionID: txn.ID.String(),
		Organization:  txn.OrganizationID.String(),
		Country:       txn.Country,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		SubmitterRole: txn.SubmitterRole.String(),
		VendorID:      txn.VendorID,
		VendorIsNew:   txn.VendorIsNew,
	})
	if err != nil {
		return risk.Prediction{}, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict", bytes.NewReader(payload))
	if err != nil {
		return risk.Prediction{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return risk.Prediction{}, fmt.Errorf("call inference service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return risk.Prediction{}, fmt.Errorf("inference service returned status %d", resp.StatusCode)
	}

	var body predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return risk.Prediction{}, fmt.Errorf("decode predict response: %w", err)
	}

	return risk.Prediction{
		AnomalyScore:    body.AnomalyScore,
		FraudConfidence: body.FraudConfidence,
	}, nil
}
