// Package verifier is the HTTP client for the external proof verifier.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"formproof/internal/proof/payload"
)

const (
	headerAPIKey = "X-API-Key"
	headerLOBID  = "X-LOB-ID"

	// ProtocolOOB requests a connectionless, out-of-band presentation.
	ProtocolOOB = "OOB"

	maxResponseBytes = 1 << 20
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the verifier's define, request-url and status endpoints.
type Client struct {
	cfg    Config
	http   HTTPDoer
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger sets the logger for call outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New validates cfg and creates a client. Missing credentials fail here,
// before any request can be attempted.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DefineID is the provider's proof definition identifier. Verifiers
// return it either as a JSON number or a string.
type DefineID string

// UnmarshalJSON accepts numbers and strings.
func (d *DefineID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*d = DefineID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("defineId: %w", err)
	}
	*d = DefineID(strings.TrimSpace(s))
	return nil
}

// MarshalJSON emits numeric ids as numbers.
func (d DefineID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(d), 10, 64); err == nil {
		return []byte(d), nil
	}
	return json.Marshal(string(d))
}

// DefineResult is the define-proof response.
type DefineResult struct {
	DefineID   string
	StatusCode int
}

// URLRequest asks the verifier for a shareable proof URL.
type URLRequest struct {
	DefineID      string
	CorrelationID string
}

// URLResult carries the issued URLs. ShortURL is always set on success.
type URLResult struct {
	ShortURL   string
	LongURL    string
	StatusCode int
}

// Provider statuses, normalised.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusExpired  = "expired"
	StatusFailed   = "failed"
)

// StatusResult is the normalised proof status.
type StatusResult struct {
	Status     string
	Attributes map[string]string
	StatusCode int
}

type defineResponse struct {
	DefineID DefineID `json:"defineId"`
}

type urlRequestBody struct {
	DefineID      DefineID `json:"defineId"`
	CorrelationID string   `json:"correlationId"`
	Protocol      string   `json:"protocol"`
	AutoVerify    bool     `json:"autoVerify"`
}

type urlResponse struct {
	ShortURL string `json:"shortUrl"`
	LongURL  string `json:"longUrl"`
}

type statusResponse struct {
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes"`
}

// DefineProof registers the proof shape and returns the define id.
// A non-2xx response or a response without an id is an error.
func (c *Client) DefineProof(ctx context.Context, p payload.DefinePayload) (*DefineResult, error) {
	status, body, err := c.do(ctx, OpDefine, http.MethodPost, "/v1/proofs/define", p)
	if err != nil {
		c.logCall(ctx, OpDefine, status, err)
		return nil, err
	}

	var resp defineResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = NewProviderError(ErrorContractMismatch, OpDefine, status, "failed to parse response", err)
		c.logCall(ctx, OpDefine, status, err)
		return nil, err
	}
	if resp.DefineID == "" {
		err := NewProviderError(ErrorContractMismatch, OpDefine, status, "response missing defineId", nil)
		c.logCall(ctx, OpDefine, status, err)
		return nil, err
	}

	c.logCall(ctx, OpDefine, status, nil, "define_id", string(resp.DefineID))
	return &DefineResult{DefineID: string(resp.DefineID), StatusCode: status}, nil
}

// RequestProofURL asks for a connectionless presentation URL. A response
// without shortUrl is an error.
func (c *Client) RequestProofURL(ctx context.Context, req URLRequest) (*URLResult, error) {
	reqBody := urlRequestBody{
		DefineID:      DefineID(req.DefineID),
		CorrelationID: req.CorrelationID,
		Protocol:      ProtocolOOB,
		AutoVerify:    false,
	}
	attrs := []any{"define_id", req.DefineID, "correlation_id", req.CorrelationID}

	status, body, err := c.do(ctx, OpRequestURL, http.MethodPost, "/v1/proofs/request-url", reqBody)
	if err != nil {
		c.logCall(ctx, OpRequestURL, status, err, attrs...)
		return nil, err
	}

	var resp urlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = NewProviderError(ErrorContractMismatch, OpRequestURL, status, "failed to parse response", err)
		c.logCall(ctx, OpRequestURL, status, err, attrs...)
		return nil, err
	}
	if strings.TrimSpace(resp.ShortURL) == "" {
		err := NewProviderError(ErrorContractMismatch, OpRequestURL, status, "response missing shortUrl", nil)
		c.logCall(ctx, OpRequestURL, status, err, attrs...)
		return nil, err
	}

	c.logCall(ctx, OpRequestURL, status, nil, attrs...)
	return &URLResult{ShortURL: resp.ShortURL, LongURL: resp.LongURL, StatusCode: status}, nil
}

// ProofStatus fetches the current status of the proof identified by ref.
func (c *Client) ProofStatus(ctx context.Context, ref string) (*StatusResult, error) {
	path := "/v1/proofs/" + url.PathEscape(ref) + "/status"
	status, body, err := c.do(ctx, OpStatus, http.MethodGet, path, nil)
	if err != nil {
		c.logCall(ctx, OpStatus, status, err, "provider_ref", ref)
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = NewProviderError(ErrorContractMismatch, OpStatus, status, "failed to parse response", err)
		c.logCall(ctx, OpStatus, status, err, "provider_ref", ref)
		return nil, err
	}

	result := &StatusResult{
		Status:     normalizeStatus(resp.Status),
		StatusCode: status,
	}
	if result.Status == StatusVerified {
		result.Attributes = resp.Attributes
	}
	c.logger.DebugContext(ctx, "verifier status checked",
		"provider_ref", ref,
		"status", result.Status,
		"status_code", status,
	)
	return result, nil
}

// FallbackURL is the provider's proof-request-by-id page for defineID.
func (c *Client) FallbackURL(defineID string) string {
	return c.cfg.FallbackBaseURL + "/v1/proofs/" + url.PathEscape(defineID) + "/request"
}

// do sends one authenticated request bounded by the configured timeout and
// returns the status and body of a 2xx response.
func (c *Client) do(ctx context.Context, op Operation, method, path string, body any) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, NewProviderError(ErrorBadData, op, 0, "failed to marshal request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, NewProviderError(ErrorInternal, op, 0, "failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerAPIKey, c.cfg.APIKey)
	req.Header.Set(headerLOBID, c.cfg.LOBID)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, NewProviderError(ErrorTimeout, op, 0, "request timeout", err)
		}
		return 0, nil, NewProviderError(ErrorProviderOutage, op, 0, "failed to execute request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, NewProviderError(ErrorBadData, op, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "verifier returned error body",
			"operation", string(op),
			"status_code", resp.StatusCode,
			"body", truncate(string(respBody), 512),
		)
		return resp.StatusCode, nil, NewProviderError(categorize(resp.StatusCode), op, resp.StatusCode,
			fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) logCall(ctx context.Context, op Operation, status int, err error, attrs ...any) {
	attrs = append(attrs, "operation", string(op), "status_code", status)
	if err != nil {
		attrs = append(attrs, "category", string(GetCategory(err)), "error", err)
		c.logger.WarnContext(ctx, "verifier call failed", attrs...)
		return
	}
	c.logger.InfoContext(ctx, "verifier call succeeded", attrs...)
}

// normalizeStatus folds provider-specific status names into the four the
// API exposes. Anything unrecognised is still in progress.
func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verified", "valid", "presentation_verified", "done":
		return StatusVerified
	case "expired", "abandoned", "timeout":
		return StatusExpired
	case "failed", "invalid", "rejected", "declined":
		return StatusFailed
	default:
		return StatusPending
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ HTTPDoer = (*http.Client)(nil)
