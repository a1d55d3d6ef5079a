// A stand-in for the anomaly inference service, used in local development
// and e2e runs. Scores are deterministic functions of the feature vector so
// scenarios can rely on them.
package main

import (
	"encoding/json"
	"hash/fnv"
	"log"
	"net/http"
	"os"
)

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

func main() {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":9200"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/predict", handlePredict)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("mock inference service listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp := score(req)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// score derives stable scores from the transaction features. Vendors whose
// id hashes high look anomalous; new vendors and large amounts add a bump.
func score(req predictRequest) predictResponse {
	h := fnv.New32a()
	h.Write([]byte(req.VendorID))
	base := int(h.Sum32() % 40)

	anomaly := base
	fraud := base / 2
	if req.VendorIsNew {
		anomaly += 20
		fraud += 15
	}
	if req.Amount > 1_000_000 {
		anomaly += 25
		fraud += 20
	}
	if anomaly > 100 {
		anomaly = 100
	}
	if fraud > 100 {
		fraud = 100
	}
	return predictResponse{AnomalyScore: anomaly, FraudConfidence: fraud}
}
