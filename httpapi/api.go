// Package httpapi exposes the authentication engine over a JSON HTTP surface.
//
// The handler set is intentionally small: identity availability, the two
// ceremony pairs, and session refresh/verify. Applications that need a
// different shape can call the engine directly and skip this package.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	goPasskey "github.com/MrEthical07/goPasskey"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds ceremony payloads. Attestation objects from real
// authenticators stay well under this.
const maxBodyBytes = 1 << 20

// API defines a public type used by goPasskey APIs.
//
// API instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type API struct {
	engine *goPasskey.Engine
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(engine *goPasskey.Engine) *API {
	return &API{engine: engine}
}

// Router describes the router operation and its observable behavior.
//
// Router may return an error when input validation, dependency calls, or security checks fail.
// Router does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/auth", func(r chi.Router) {
		r.Post("/id", a.handleIdentityCheck)
		r.Post("/register/challenge", a.handleRegisterChallenge)
		r.Post("/register", a.handleRegisterFinish)
		r.Post("/login/challenge", a.handleLoginChallenge)
		r.Post("/login", a.handleLoginFinish)
		r.Post("/session/refresh", a.handleSessionRefresh)
		r.Get("/session/verify", a.handleSessionVerify)
	})

	return r
}

type usernameRequest struct {
	Username string `json:"username"`
}

type identityCheckResponse struct {
	Available bool `json:"available"`
}

type registerFinishRequest struct {
	Challenge  string          `json:"challenge"`
	Username   string          `json:"username"`
	Credential json.RawMessage `json:"credential"`
}

type ceremonyResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) handleIdentityCheck(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	exists, err := a.engine.UsernameExists(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, identityCheckResponse{Available: !exists})
}

func (a *API) handleRegisterChallenge(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	creation, err := a.engine.BeginRegistration(clientContext(r), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, creation.Response)
}

func (a *API) handleRegisterFinish(w http.ResponseWriter, r *http.Request) {
	var req registerFinishRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := a.engine.FinishRegistration(clientContext(r), req.Challenge, req.Username, req.Credential)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ceremonyResponse{
		Token:    result.Token,
		UserID:   result.UserID,
		Username: result.Username,
	})
}

func (a *API) handleLoginChallenge(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	assertion, err := a.engine.BeginLogin(clientContext(r), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assertion.Response)
}

// handleLoginFinish takes the raw assertion JSON as the request body. The
// challenge is recovered from the signed client data, so no envelope is
// needed.
func (a *API) handleLoginFinish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := a.engine.FinishLogin(clientContext(r), body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ceremonyResponse{
		Token:    result.Token,
		UserID:   result.UserID,
		Username: result.Username,
	})
}

func (a *API) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}

	refreshed, err := a.engine.RefreshSession(clientContext(r), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{Token: refreshed})
}

func (a *API) handleSessionVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}

	info, err := a.engine.ValidateSession(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		UserID:   info.UserID,
		Username: info.Username,
	})
}

func clientContext(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return goPasskey.WithClientIP(r.Context(), host)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goPasskey.ErrUsernameRequired),
		errors.Is(err, goPasskey.ErrCredentialRequired),
		errors.Is(err, goPasskey.ErrUsernameTaken),
		errors.Is(err, goPasskey.ErrInvalidChallenge),
		errors.Is(err, goPasskey.ErrCeremonyFailed),
		errors.Is(err, goPasskey.ErrReplayDetected):
		return http.StatusBadRequest
	case errors.Is(err, goPasskey.ErrIdentityNotFound),
		errors.Is(err, goPasskey.ErrUnknownCredential):
		return http.StatusNotFound
	case errors.Is(err, goPasskey.ErrTokenExpired),
		errors.Is(err, goPasskey.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, goPasskey.ErrRegistrationRateLimited),
		errors.Is(err, goPasskey.ErrLoginRateLimited),
		errors.Is(err, goPasskey.ErrRefreshRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goPasskey.ErrChallengeUnavailable),
		errors.Is(err, goPasskey.ErrRateLimiterUnavailable),
		errors.Is(err, goPasskey.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
