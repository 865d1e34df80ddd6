package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhearth/passgate/internal/auth"
	"github.com/openhearth/passgate/internal/models"
	"github.com/openhearth/passgate/internal/storage"
)

type stubVerifier struct {
	registration   *auth.RegistrationResult
	authentication *auth.AuthenticationResult
	err            error
}

func (s *stubVerifier) VerifyRegistration(ctx context.Context, proof []byte, challenge string, user models.User) (*auth.RegistrationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.registration, nil
}

func (s *stubVerifier) VerifyAuthentication(ctx context.Context, proof []byte, challenge string, credential models.Credential) (*auth.AuthenticationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.authentication, nil
}

func newTestServer(verifier auth.Verifier) *httptest.Server {
	store := storage.NewMemoryStorage()
	challenges := auth.NewChallengeManager(store, 5*time.Minute)
	sessions := auth.NewSessionIssuer(store, 24*time.Hour)
	rp := auth.RelyingParty{Name: "My WebAuthn App", ID: "localhost", Origin: "http://localhost:8000"}
	engine := auth.NewCeremonyEngine(rp, store, challenges, sessions, verifier)
	server := NewServer(engine, sessions)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/attestation/option", server.AttestationOptionHandler)
	mux.HandleFunc("POST /auth/attestation/result", server.AttestationResultHandler)
	mux.HandleFunc("GET /auth/assertion/option", server.AssertionOptionHandler)
	mux.HandleFunc("POST /auth/assertion/result", server.AssertionResultHandler)
	mux.HandleFunc("GET /restricted", server.RestrictedHandler)
	mux.HandleFunc("GET /health", server.HealthHandler)

	return httptest.NewServer(LoggingMiddleware(CORSMiddleware(mux)))
}

func decodeOptions(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var body struct {
		Status  string         `json:"status"`
		Options map[string]any `json:"options"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "success", body.Status)
	return body.Options
}

func TestFullCeremonyFlow(t *testing.T) {
	t.Parallel()

	verifier := &stubVerifier{
		registration:   &auth.RegistrationResult{CredentialID: "cred-A", PublicKey: []byte{0x01}, SignCount: 0},
		authentication: &auth.AuthenticationResult{NewSignCount: 1},
	}
	ts := newTestServer(verifier)
	defer ts.Close()

	// Registration options
	resp, err := http.Get(ts.URL + "/auth/attestation/option?userName=alice")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	options := decodeOptions(t, resp)
	resp.Body.Close()
	assert.NotEmpty(t, options["challenge"])
	assert.Empty(t, options["excludeCredentials"])

	// Complete registration
	resp, err = http.Post(ts.URL+"/auth/attestation/result", "application/json",
		strings.NewReader(`{"userName":"alice","body":{"id":"cred-A"}}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var verified struct {
		Verified bool `json:"verified"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verified))
	resp.Body.Close()
	assert.True(t, verified.Verified)

	// Authentication options list the new credential
	resp, err = http.Get(ts.URL + "/auth/assertion/option?userName=alice")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	options = decodeOptions(t, resp)
	resp.Body.Close()
	allowed, ok := options["allowCredentials"].([]any)
	require.True(t, ok)
	require.Len(t, allowed, 1)

	// Complete authentication, capture the session cookie
	resp, err = http.Post(ts.URL+"/auth/assertion/result", "application/json",
		strings.NewReader(`{"userName":"alice","body":{"id":"cred-A"}}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var authResult struct {
		Verified  bool   `json:"verified"`
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authResult))
	resp.Body.Close()
	assert.True(t, authResult.Verified)
	require.NotEmpty(t, authResult.SessionID)

	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "session_id" {
			sessionCookie = cookie
		}
	}
	require.NotNil(t, sessionCookie)
	assert.Equal(t, authResult.SessionID, sessionCookie.Value)
	assert.True(t, sessionCookie.HttpOnly)

	// The session admits alice to the protected resource
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/restricted", nil)
	require.NoError(t, err)
	req.AddCookie(sessionCookie)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	greeting, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "Welcome, alice!", string(greeting))
}

func TestAttestationResult_WithoutBegin(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&stubVerifier{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/auth/attestation/result", "application/json",
		strings.NewReader(`{"userName":"alice","body":{"id":"cred-A"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var verified struct {
		Verified bool `json:"verified"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verified))
	assert.False(t, verified.Verified)
}

func TestAssertionResult_RejectionIsGeneric(t *testing.T) {
	t.Parallel()

	// Unknown credential and failed verification must be indistinguishable
	// to the client.
	ts := newTestServer(&stubVerifier{err: auth.ErrNotVerified})
	defer ts.Close()

	for _, body := range []string{
		`{"userName":"alice","body":{"id":"cred-unknown"}}`,
		`{"userName":"alice","body":{}}`,
	} {
		resp, err := http.Get(ts.URL + "/auth/assertion/option?userName=alice")
		require.NoError(t, err)
		resp.Body.Close()

		resp, err = http.Post(ts.URL+"/auth/assertion/result", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var verified struct {
			Verified bool `json:"verified"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&verified))
		resp.Body.Close()
		assert.False(t, verified.Verified)
	}
}

func TestRestricted_WithoutSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&stubVerifier{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/restricted")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRestricted_BearerHeader(t *testing.T) {
	t.Parallel()

	verifier := &stubVerifier{
		registration:   &auth.RegistrationResult{CredentialID: "cred-A"},
		authentication: &auth.AuthenticationResult{NewSignCount: 1},
	}
	ts := newTestServer(verifier)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/auth/attestation/option?userName=bob")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/auth/attestation/result", "application/json",
		strings.NewReader(`{"userName":"bob","body":{"id":"cred-A"}}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/auth/assertion/option?userName=bob")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/auth/assertion/result", "application/json",
		strings.NewReader(`{"userName":"bob","body":{"id":"cred-A"}}`))
	require.NoError(t, err)
	var authResult struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authResult))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/restricted", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+authResult.SessionID)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(&stubVerifier{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
