package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formproof/internal/platform/config"
)

func TestRunWatch(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/proofs/init", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"proofId":"p-1","invitationUrl":"https://v.example/s/abc","status":"success","requiresVerification":true}`))
	})
	mux.HandleFunc("GET /api/proofs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"pending"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"verified","attributes":{"given_name":"Ada","family_name":"Lovelace"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	err := runWatch(context.Background(), &out, &watchOptions{
		api:      srv.URL,
		slug:     "intake",
		interval: time.Millisecond,
		timeout:  time.Minute,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "proof p-1 (success)")
	assert.Contains(t, text, "https://v.example/s/abc")
	assert.Contains(t, text, "attempt 1: pending")
	assert.Contains(t, text, "result: verified")
	assert.Contains(t, text, "family_name = Lovelace\n  given_name = Ada")
}

func TestRunWatchWithoutVerification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/proofs/init", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"proofId":"p-2","status":"no-verification-needed","requiresVerification":false}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	formID := int64(4)
	require.NoError(t, runWatch(context.Background(), &out, &watchOptions{api: srv.URL, formID: formID, noQR: true}))
	assert.Contains(t, out.String(), "needs no credential verification")
}

func TestTerminalQR(t *testing.T) {
	art, err := terminalQR("https://v.example/s/abc")
	require.NoError(t, err)
	assert.NotEmpty(t, art)

	again, err := terminalQR("https://v.example/s/abc")
	require.NoError(t, err)
	assert.Equal(t, art, again)
}

func TestRunWatchStopsOnUnknownProof(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/proofs/init", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"proofId":"p-gone","invitationUrl":"https://v.example/s/abc","status":"success","requiresVerification":true}`))
	})
	mux.HandleFunc("GET /api/proofs/{id}", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","error_description":"proof not found"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := runWatch(ctx, &out, &watchOptions{
		api:      srv.URL,
		slug:     "intake",
		interval: time.Millisecond,
		timeout:  time.Hour,
		noQR:     true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "result: failed")
	assert.Equal(t, int32(1), polls.Load())
}

func TestWatchCmdDefaultsFromConfig(t *testing.T) {
	cmd := newWatchCmd(&config.Watch{API: "https://forms.example", PollInterval: 750 * time.Millisecond})

	interval, err := cmd.Flags().GetDuration(intervalFlagName)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, interval)

	api, err := cmd.Flags().GetString(apiFlagName)
	require.NoError(t, err)
	assert.Equal(t, "https://forms.example", api)
}
