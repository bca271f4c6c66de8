package handler

import (
	"net/http"
	"time"

	"github.com/tanishtirpathi/Playlistr/internal/service"
)

// CookieConfig controls the auth cookies set alongside token responses.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthHandler struct {
	svc     *service.AuthService
	cookies CookieConfig
}

func NewAuthHandler(s *service.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{svc: s, cookies: cookies}
}

func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	}
	if h.cookies.Secure {
		c.SameSite = http.SameSiteNoneMode
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, h.cookie(accessTokenCookie, access, h.cookies.AccessTTL))
	http.SetCookie(w, h.cookie(refreshTokenCookie, refresh, h.cookies.RefreshTTL))
}

// refreshTokenFrom prefers the body and falls back to the refreshToken cookie.
func refreshTokenFrom(r *http.Request, body string) string {
	if body != "" {
		return body
	}
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary Register
// @Description Creates a user and returns a fresh token pair
// @Tags users
// @Accept json
// @Produce json
// @Param body body registerRequest true "new user"
// @Success 201 {object} envelope{data=service.Session}
// @Failure 400 {object} envelope
// @Failure 409 {object} envelope
// @Failure 429 {object} envelope
// @Router /api/users/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.svc.Register(r.Context(), service.RegisterUserData{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setTokenCookies(w, sess.AccessToken, sess.RefreshToken)
	writeJSON(w, http.StatusCreated, "User registered successfully", sess)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary Login
// @Tags users
// @Accept json
// @Produce json
// @Param body body loginRequest true "credentials"
// @Success 200 {object} envelope{data=service.Session}
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Failure 429 {object} envelope
// @Router /api/users/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setTokenCookies(w, sess.AccessToken, sess.RefreshToken)
	writeJSON(w, http.StatusOK, "Login successful", sess)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// @Summary Refresh tokens
// @Description Rotates the refresh token. The token may come from the body or the refreshToken cookie.
// @Tags users
// @Accept json
// @Produce json
// @Param body body refreshRequest false "refresh token"
// @Success 200 {object} envelope{data=service.TokenPair}
// @Failure 401 {object} envelope
// @Failure 429 {object} envelope
// @Router /api/users/refresh-token [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), refreshTokenFrom(r, req.RefreshToken))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setTokenCookies(w, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, "Token refreshed", pair)
}

// @Summary Logout
// @Description Invalidates the refresh token. Succeeds when already logged out.
// @Tags users
// @Accept json
// @Produce json
// @Param body body refreshRequest false "refresh token"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Router /api/users/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cleared, err := h.svc.Logout(r.Context(), refreshTokenFrom(r, req.RefreshToken))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setTokenCookies(w, "", "")
	if !cleared {
		writeJSON(w, http.StatusOK, "Already logged out", nil)
		return
	}
	writeJSON(w, http.StatusOK, "Logout successful", nil)
}

// @Summary Current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} envelope{data=models.UserDoc}
// @Failure 401 {object} envelope
// @Router /api/users/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "User fetched successfully", UserFromContext(r.Context()))
}
