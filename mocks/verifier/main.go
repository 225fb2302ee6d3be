package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort         = "8082"
	defaultAPIKey       = "verifier-secret-key"
	defaultLOBID        = "lob-local"
	defaultLatencyMs    = "50"
	defaultVerifyPolls  = "3"
	defaultPublicOrigin = "http://localhost:8082"
)

type DefineRequest struct {
	ProofName string           `json:"proofName"`
	Requested []map[string]any `json:"requestedAttributes"`
}

type DefineResponse struct {
	DefineID int `json:"defineId"`
}

type URLRequest struct {
	DefineID      json.Number `json:"defineId"`
	CorrelationID string      `json:"correlationId"`
	Protocol      string      `json:"protocol"`
}

type URLResponse struct {
	ShortURL string `json:"shortUrl"`
	LongURL  string `json:"longUrl"`
}

type StatusResponse struct {
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var (
	apiKey       = getEnv("API_KEY", defaultAPIKey)
	lobID        = getEnv("LOB_ID", defaultLOBID)
	publicOrigin = strings.TrimRight(getEnv("PUBLIC_ORIGIN", defaultPublicOrigin), "/")
	latencyMs    = getEnvInt("LATENCY_MS", defaultLatencyMs)
	verifyPolls  = getEnvInt("VERIFY_AFTER_POLLS", defaultVerifyPolls)
	failURLs     = os.Getenv("FAIL_REQUEST_URL") == "true"
)

// state tracks issued define ids and how often each reference was polled.
var state = struct {
	sync.Mutex
	nextID int
	polls  map[string]int
}{nextID: 100, polls: map[string]int{}}

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("GET /health", handleHealth)
	http.HandleFunc("POST /v1/proofs/define", withAuth(handleDefine))
	http.HandleFunc("POST /v1/proofs/request-url", withAuth(handleRequestURL))
	http.HandleFunc("GET /v1/proofs/{ref}/status", withAuth(handleStatus))
	http.HandleFunc("GET /v1/proofs/{ref}/request", handleRequestPage)

	log.Printf("🪪  Mock verifier starting on port %s", port)
	log.Printf("📝 API Key: %s, LOB: %s", apiKey, lobID)
	log.Printf("⏱️  Simulated latency: %dms, verified after %d polls", latencyMs, verifyPolls)
	if failURLs {
		log.Printf("⚠️  request-url always fails; clients should fall back")
	}

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "verifier",
		"version": "1.0.0",
	})
}

func withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(latencyMs) * time.Millisecond)
		log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		if r.Header.Get("X-API-Key") != apiKey {
			sendError(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("X-LOB-ID") != lobID {
			sendError(w, "Unknown line of business", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func handleDefine(w http.ResponseWriter, r *http.Request) {
	var req DefineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Requested) == 0 {
		sendError(w, "requestedAttributes is required", http.StatusUnprocessableEntity)
		return
	}

	state.Lock()
	state.nextID++
	id := state.nextID
	state.Unlock()

	writeJSON(w, http.StatusOK, DefineResponse{DefineID: id})
	log.Printf("✅ Proof defined: %q -> %d", req.ProofName, id)
}

func handleRequestURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DefineID == "" || req.CorrelationID == "" {
		sendError(w, "defineId and correlationId are required", http.StatusBadRequest)
		return
	}
	if failURLs {
		sendError(w, "URL service unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, URLResponse{
		ShortURL: fmt.Sprintf("%s/s/%s", publicOrigin, req.CorrelationID),
		LongURL:  fmt.Sprintf("%s/v1/proofs/%s/request?c=%s", publicOrigin, req.DefineID, req.CorrelationID),
	})
	log.Printf("✅ URL issued for define %s (correlation %s)", req.DefineID, req.CorrelationID)
}

// handleStatus reports request_sent until the reference has been polled
// VERIFY_AFTER_POLLS times. References starting with "expired" or
// "rejected" end that way immediately.
func handleStatus(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	switch {
	case strings.HasPrefix(ref, "expired"):
		writeJSON(w, http.StatusOK, StatusResponse{Status: "abandoned"})
		return
	case strings.HasPrefix(ref, "rejected"):
		writeJSON(w, http.StatusOK, StatusResponse{Status: "rejected"})
		return
	}

	state.Lock()
	state.polls[ref]++
	n := state.polls[ref]
	state.Unlock()

	if n < verifyPolls {
		writeJSON(w, http.StatusOK, StatusResponse{Status: "request_sent"})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status: "presentation_verified",
		Attributes: map[string]string{
			"given_names": "Test",
			"family_name": "Holder",
			"birthdate":   "1990-01-01",
		},
	})
	log.Printf("🔐 Proof %s verified after %d polls", ref, n)
}

func handleRequestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>Proof request %s</h1></body></html>", r.PathValue("ref"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
	log.Printf("❌ Error response: %d - %s", code, message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
