/*
 * file: handlers.go
 * package: handlers
 * description:
 *     HTTP adapters for the auth surface (register/login/refresh/me/logout),
 *     the healthz probe, and the socket upgrade. Translates between the
 *     wire JSON shapes and the core services' Go types.
 */
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/fiveinarow/server/internal/core/services"
)

// AuthHandler exposes the /api/v1/auth/* HTTP surface.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// WebSocketHandler upgrades /ws requests into a Socket Session.
type WebSocketHandler struct {
	hub   *services.Hub
	rooms *services.RoomService
	auth  *services.AuthService
}

func NewWebSocketHandler(hub *services.Hub, rooms *services.RoomService, auth *services.AuthService) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, rooms: rooms, auth: auth}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// wireError is the uniform {ok:false, error:{code,message}} error shape
// used across the HTTP surface.
type wireError struct {
	OK    bool `json:"ok"`
	Error struct {
		Code    services.Kind `json:"code"`
		Message string        `json:"message"`
	} `json:"error"`
}

func respondWithError(w http.ResponseWriter, err error) {
	apiErr := services.AsError(err)
	resp := wireError{OK: false}
	resp.Error.Code = apiErr.Kind
	resp.Error.Message = apiErr.Message
	respondWithJSON(w, services.HTTPStatus(apiErr.Kind), resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, services.NewError(services.BadRequest, "malformed request body"))
		return false
	}
	return true
}

// Healthz answers GET /healthz with a bare 200 "ok".
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

/*
 * Register handles POST /api/v1/auth/register.
 *
 * Parameters:
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The incoming request; body is {username, password}.
 *
 * Returns:
 *   - None. Writes {username} on success or a wireError on failure.
 */
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.auth.Register(req.Username, req.Password); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"username": strings.TrimSpace(req.Username)})
}

/*
 * Login handles POST /api/v1/auth/login.
 *
 * Parameters:
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The incoming request; body is {username, password}.
 *
 * Returns:
 *   - None. Writes the token pair on success or a wireError on failure. A
 *     successful login also evicts any prior live socket for the username.
 */
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tokens, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"username":              strings.TrimSpace(req.Username),
		"accessToken":           tokens.AccessToken,
		"accessTokenExpiresIn":  tokens.AccessTokenExpiresIn,
		"refreshToken":          tokens.RefreshToken,
		"refreshTokenExpiresIn": tokens.RefreshTokenExpiresIn,
	})
}

/*
 * Refresh handles POST /api/v1/auth/refresh.
 *
 * Parameters:
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The incoming request; body is {refreshToken}.
 *
 * Returns:
 *   - None. Writes the new token pair (username omitted) on success.
 */
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	tokens, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"accessToken":           tokens.AccessToken,
		"accessTokenExpiresIn":  tokens.AccessTokenExpiresIn,
		"refreshToken":          tokens.RefreshToken,
		"refreshTokenExpiresIn": tokens.RefreshTokenExpiresIn,
	})
}

/*
 * Me handles GET /api/v1/auth/me, identifying the caller from the Bearer
 * access token.
 *
 * Parameters:
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The incoming request; identity carried in the
 *     Authorization header.
 *
 * Returns:
 *   - None. Writes {username} on success or Unauthorized on a missing or
 *     invalid token.
 */
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondWithError(w, services.NewError(services.Unauthorized, "missing bearer token"))
		return
	}
	claims, err := h.auth.VerifyAccessToken(token)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"username": claims.Username})
}

/*
 * Logout handles POST /api/v1/auth/logout. Idempotent: unknown or already
 * revoked tokens still succeed.
 *
 * Parameters:
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The incoming request; body is {refreshToken}.
 *
 * Returns:
 *   - None. Writes {ok: true} on success.
 */
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.Logout(req.RefreshToken); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}

/*
 * HandleConnection upgrades GET /ws into a socket session, delegating
 * token extraction and verification to services.ServeWs.
 *
 * Parameters:
 *   - w (http.ResponseWriter): The HTTP response writer.
 *   - r (*http.Request): The upgrade request.
 *
 * Returns:
 *   - None.
 */
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	services.ServeWs(h.hub, h.rooms, h.auth, w, r)
}
