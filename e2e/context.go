package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TestContext holds shared state for a scenario: the HTTP client, the
// last response, and identifiers saved by earlier steps.
type TestContext struct {
	baseURL     string
	client      *http.Client
	accessToken string
	adminToken  string

	lastStatus int
	lastBody   map[string]interface{}

	itemID string
	txnID  string
	orgID  string
}

// NewTestContext builds a context pointed at the gateway under test.
// Tokens are provisioned out of band and passed via environment.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:     os.Getenv("TXGATE_E2E_URL"),
		accessToken: os.Getenv("TXGATE_E2E_TOKEN"),
		adminToken:  os.Getenv("TXGATE_E2E_ADMIN_TOKEN"),
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Reset clears per-scenario state so scenarios stay independent.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.itemID = ""
	tc.txnID = ""
}

func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, tc.accessToken)
}

func (tc *TestContext) POSTAsAdmin(path string, body interface{}) error {
	return tc.do(http.MethodPut, path, body, tc.adminToken)
}

func (tc *TestContext) PUTAsAdmin(path string, body interface{}) error {
	return tc.do(http.MethodPut, path, body, tc.adminToken)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tc.accessToken)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.send(req)
}

func (tc *TestContext) do(method, path string, body interface{}, token string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return tc.send(req)
}

func (tc *TestContext) send(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		var parsed map[string]interface{}
		if err := json.Unmarshal(raw, &parsed); err == nil {
			tc.lastBody = parsed
		}
	}
	return nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// GetResponseField looks up a top-level field in the last JSON response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no JSON body in last response")
	}
	v, ok := tc.lastBody[field]
	if !ok {
		return nil, fmt.Errorf("field %q not present in response", field)
	}
	return v, nil
}

// ResponseContains reports whether the last JSON response has the field.
func (tc *TestContext) ResponseContains(field string) bool {
	_, ok := tc.lastBody[field]
	return ok
}

func (tc *TestContext) GetAccessToken() string      { return tc.accessToken }
func (tc *TestContext) SetAccessToken(token string) { tc.accessToken = token }

func (tc *TestContext) GetItemID() string   { return tc.itemID }
func (tc *TestContext) SetItemID(id string) { tc.itemID = id }

func (tc *TestContext) GetTransactionID() string   { return tc.txnID }
func (tc *TestContext) SetTransactionID(id string) { tc.txnID = id }

func (tc *TestContext) GetOrganizationID() string   { return tc.orgID }
func (tc *TestContext) SetOrganizationID(id string) { tc.orgID = id }
