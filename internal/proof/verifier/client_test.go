package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"formproof/internal/proof/payload"
	dErrors "formproof/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ClientSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	client, err := New(Config{
		BaseURL: s.server.URL,
		APIKey:  "test-key",
		LOBID:   "lob-7",
		Timeout: time.Second,
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.client = client
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestDefineProof() {
	s.Run("sends payload with auth headers and parses numeric id", func() {
		s.mux.HandleFunc("POST /v1/proofs/define", func(w http.ResponseWriter, r *http.Request) {
			s.Equal("test-key", r.Header.Get("X-API-Key"))
			s.Equal("lob-7", r.Header.Get("X-LOB-ID"))
			var body payload.DefinePayload
			s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
			s.Equal("Intake proof", body.ProofName)
			s.Equal("ANONCREDS", body.ProofCredFormat)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"defineId": 42}`))
		})

		res, err := s.client.DefineProof(context.Background(), payload.DefinePayload{
			ProofName:       "Intake proof",
			ProofCredFormat: payload.CredentialFormat,
		})
		s.Require().NoError(err)
		s.Equal("42", res.DefineID)
		s.Equal(http.StatusOK, res.StatusCode)
	})
}

func (s *ClientSuite) TestDefineProofFailures() {
	s.Run("non-2xx", func() {
		s.mux.HandleFunc("POST /v1/proofs/define", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"schema unknown"}`, http.StatusUnprocessableEntity)
		})
		_, err := s.client.DefineProof(context.Background(), payload.DefinePayload{})
		s.Require().Error(err)
		s.Equal(ErrorBadData, GetCategory(err))
		s.Equal(http.StatusUnprocessableEntity, StatusCodeOf(err))
		s.NotContains(err.Error(), "schema unknown", "provider bodies stay out of errors")
	})
}

func (s *ClientSuite) TestDefineProofMissingID() {
	s.mux.HandleFunc("POST /v1/proofs/define", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true}`))
	})
	_, err := s.client.DefineProof(context.Background(), payload.DefinePayload{})
	s.Equal(ErrorContractMismatch, GetCategory(err))
}

func (s *ClientSuite) TestRequestProofURL() {
	s.mux.HandleFunc("POST /v1/proofs/request-url", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal(float64(42), body["defineId"])
		s.Equal("corr-1", body["correlationId"])
		s.Equal("OOB", body["protocol"])
		s.Equal(false, body["autoVerify"])
		_, _ = w.Write([]byte(`{"shortUrl":"https://v.example/s/abc","longUrl":"https://v.example/long/abc"}`))
	})

	res, err := s.client.RequestProofURL(context.Background(), URLRequest{DefineID: "42", CorrelationID: "corr-1"})
	s.Require().NoError(err)
	s.Equal("https://v.example/s/abc", res.ShortURL)
	s.Equal("https://v.example/long/abc", res.LongURL)
}

func (s *ClientSuite) TestRequestProofURLMissingShortURL() {
	s.mux.HandleFunc("POST /v1/proofs/request-url", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"longUrl":"https://v.example/long/abc"}`))
	})

	_, err := s.client.RequestProofURL(context.Background(), URLRequest{DefineID: "42", CorrelationID: "c"})
	s.Equal(ErrorContractMismatch, GetCategory(err))
}

func (s *ClientSuite) TestRequestProofURLOutage() {
	s.mux.HandleFunc("POST /v1/proofs/request-url", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := s.client.RequestProofURL(context.Background(), URLRequest{DefineID: "42", CorrelationID: "c"})
	s.Equal(ErrorProviderOutage, GetCategory(err))
	s.True(IsRetryable(err))
}

func (s *ClientSuite) TestProofStatus() {
	s.mux.HandleFunc("GET /v1/proofs/{ref}/status", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("ref") {
		case "done":
			_, _ = w.Write([]byte(`{"status":"Verified","attributes":{"given_name":"Ada"}}`))
		case "waiting":
			_, _ = w.Write([]byte(`{"status":"request_sent","attributes":{"leak":"x"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := s.client.ProofStatus(context.Background(), "done")
	s.Require().NoError(err)
	s.Equal(StatusVerified, res.Status)
	s.Equal(map[string]string{"given_name": "Ada"}, res.Attributes)

	res, err = s.client.ProofStatus(context.Background(), "waiting")
	s.Require().NoError(err)
	s.Equal(StatusPending, res.Status)
	s.Nil(res.Attributes, "attributes only surface once verified")

	_, err = s.client.ProofStatus(context.Background(), "missing")
	s.Equal(ErrorNotFound, GetCategory(err))
}

func (s *ClientSuite) TestTimeout() {
	s.mux.HandleFunc("POST /v1/proofs/define", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	client, err := New(Config{BaseURL: s.server.URL, APIKey: "k", LOBID: "l", Timeout: 50 * time.Millisecond})
	s.Require().NoError(err)

	_, err = client.DefineProof(context.Background(), payload.DefinePayload{})
	s.Equal(ErrorTimeout, GetCategory(err))
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing api key", Config{BaseURL: "https://v.example", LOBID: "l"}, "VERIFIER_API_KEY"},
		{"missing lob id", Config{BaseURL: "https://v.example", APIKey: "k"}, "VERIFIER_LOB_ID"},
		{"missing base url", Config{APIKey: "k", LOBID: "l"}, "VERIFIER_BASE_URL"},
		{"bad fallback url", Config{BaseURL: "https://v.example", APIKey: "k", LOBID: "l", FallbackBaseURL: "::"}, "VERIFIER_FALLBACK_BASE_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFallbackURL(t *testing.T) {
	c, err := New(Config{BaseURL: "https://verifier.example/", APIKey: "k", LOBID: "l"})
	require.NoError(t, err)
	assert.Equal(t, "https://verifier.example/v1/proofs/42/request", c.FallbackURL("42"))

	c, err = New(Config{BaseURL: "https://verifier.example", APIKey: "k", LOBID: "l", FallbackBaseURL: "https://proofs.example"})
	require.NoError(t, err)
	assert.Equal(t, "https://proofs.example/v1/proofs/42/request", c.FallbackURL("42"))
}

func TestDefineIDJSON(t *testing.T) {
	var resp defineResponse
	require.NoError(t, json.Unmarshal([]byte(`{"defineId":"abc-1"}`), &resp))
	assert.Equal(t, DefineID("abc-1"), resp.DefineID)

	require.NoError(t, json.Unmarshal([]byte(`{"defineId":7}`), &resp))
	assert.Equal(t, DefineID("7"), resp.DefineID)

	assert.Error(t, json.Unmarshal([]byte(`{"defineId":{}}`), &resp))

	raw, err := json.Marshal(urlRequestBody{DefineID: "abc"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"defineId":"abc"`)
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestTransportErrorIsOutage(t *testing.T) {
	c, err := New(Config{BaseURL: "https://v.example", APIKey: "k", LOBID: "l"}, WithHTTPClient(failingDoer{}))
	require.NoError(t, err)

	_, err = c.ProofStatus(context.Background(), "x")
	assert.Equal(t, ErrorProviderOutage, GetCategory(err))
}
