// Package proofclient is a Go client for the formproof HTTP API.
package proofclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Client calls /api/proofs endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proofclient: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InitRequest identifies the form. Set exactly one field.
type InitRequest struct {
	FormID     *int64 `json:"formId,omitempty"`
	PublicSlug string `json:"publicSlug,omitempty"`
}

type InitResponse struct {
	Success              bool   `json:"success"`
	ProofID              string `json:"proofId"`
	InvitationURL        string `json:"invitationUrl,omitempty"`
	SVG                  string `json:"svg,omitempty"`
	Status               string `json:"status"`
	RequiresVerification bool   `json:"requiresVerification"`
}

type StatusResponse struct {
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Fields     []FieldState      `json:"fields,omitempty"`
}

// FieldState reports whether a mapped form field was filled from a
// verified credential attribute.
type FieldState struct {
	FieldKey      string `json:"fieldKey"`
	AttributeName string `json:"attributeName"`
	Verified      bool   `json:"verified"`
	Value         string `json:"value,omitempty"`
}

type QRResponse struct {
	SVG           string `json:"svg"`
	InvitationURL string `json:"invitationUrl"`
}

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("formproof api: %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("formproof api: %d %s", e.StatusCode, e.Code)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Init starts a proof.
func (c *Client) Init(ctx context.Context, req InitRequest) (*InitResponse, error) {
	var out InitResponse
	if err := c.do(ctx, http.MethodPost, "/api/proofs/init", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the polling status of a proof.
func (c *Client) Status(ctx context.Context, proofID string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/proofs/"+url.PathEscape(proofID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QR fetches the QR code of a proof.
func (c *Client) QR(ctx context.Context, proofID string) (*QRResponse, error) {
	var out QRResponse
	if err := c.do(ctx, http.MethodGet, "/api/proofs/"+url.PathEscape(proofID)+"/qr", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
