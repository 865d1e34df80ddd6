package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openhearth/passgate/internal/auth"
)

type Server struct {
	engine   *auth.CeremonyEngine
	sessions *auth.SessionIssuer
}

func NewServer(engine *auth.CeremonyEngine, sessions *auth.SessionIssuer) *Server {
	return &Server{
		engine:   engine,
		sessions: sessions,
	}
}

// ceremonyResult is the body of a complete-ceremony request: the user the
// ceremony belongs to plus the authenticator's raw response.
type ceremonyResult struct {
	Username string          `json:"userName"`
	Body     json.RawMessage `json:"body"`
}

func (s *Server) AttestationOptionHandler(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("userName")
	if username == "" {
		http.Error(w, "userName required", http.StatusBadRequest)
		return
	}

	options, err := s.engine.BeginRegistration(r.Context(), username)
	if err != nil {
		slog.Error("Failed to begin registration", "user", username, "error", err)
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"options": options,
	})
}

func (s *Server) AttestationResultHandler(w http.ResponseWriter, r *http.Request) {
	var request ceremonyResult
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if request.Username == "" {
		http.Error(w, "userName required", http.StatusBadRequest)
		return
	}

	if err := s.engine.FinishRegistration(r.Context(), request.Username, request.Body); err != nil {
		writeCeremonyFailure(w, "registration", request.Username, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"verified": true})
}

func (s *Server) AssertionOptionHandler(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("userName")
	if username == "" {
		http.Error(w, "userName required", http.StatusBadRequest)
		return
	}

	options, err := s.engine.BeginAuthentication(r.Context(), username)
	if err != nil {
		slog.Error("Failed to begin authentication", "user", username, "error", err)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"options": options,
	})
}

func (s *Server) AssertionResultHandler(w http.ResponseWriter, r *http.Request) {
	var request ceremonyResult
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if request.Username == "" {
		http.Error(w, "userName required", http.StatusBadRequest)
		return
	}

	session, err := s.engine.FinishAuthentication(r.Context(), request.Username, request.Body)
	if err != nil {
		writeCeremonyFailure(w, "authentication", request.Username, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    session.ID,
		Path:     "/",
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"verified":  true,
		"sessionId": session.ID,
	})
}

func (s *Server) RestrictedHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFromRequest(r)
	if sessionID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	username, err := s.sessions.Resolve(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			slog.Error("Failed to resolve session", "error", err)
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fmt.Fprintf(w, "Welcome, %s!", username)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// writeCeremonyFailure maps every ceremony rejection to the same generic
// response so a caller cannot distinguish an unknown credential from a bad
// proof. The detail goes to the log only.
func writeCeremonyFailure(w http.ResponseWriter, ceremony, username string, err error) {
	switch {
	case errors.Is(err, auth.ErrNoChallenge),
		errors.Is(err, auth.ErrUnknownCredential),
		errors.Is(err, auth.ErrNotVerified):
		slog.Warn("Ceremony rejected", "ceremony", ceremony, "user", username, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]bool{"verified": false})
	default:
		slog.Error("Ceremony failed", "ceremony", ceremony, "user", username, "error", err)
		http.Error(w, fmt.Sprintf("%s failed", ceremony), http.StatusInternalServerError)
	}
}

// sessionIDFromRequest pulls the bearer token from the session cookie or the
// Authorization header.
func sessionIDFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("session_id"); err == nil {
		return cookie.Value
	}

	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}

	return ""
}
