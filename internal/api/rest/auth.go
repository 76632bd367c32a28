package rest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/valkyrieosint/valkyrie-backend/internal/auth"
	"github.com/valkyrieosint/valkyrie-backend/internal/models"
	"github.com/valkyrieosint/valkyrie-backend/internal/pkg/validate"
)

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// currentUser resolves the authenticated user from request claims, or nil.
func (h *Handler) currentUser(r *http.Request) *models.User {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return nil
	}
	user, err := h.repo.User.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		return nil
	}
	return user
}

// isPremium reports whether the user unlocks premium-only tools: a paid tier,
// or an operator email from explicit configuration.
func (h *Handler) isPremium(user *models.User) bool {
	if user == nil {
		return false
	}
	return user.IsPremiumTier() || h.cfg.IsOperatorEmail(user.Email)
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		respondError(w, http.StatusUnprocessableEntity, "A valid email is required")
		return
	}
	if len(req.Password) < validate.PasswordMinLen {
		respondError(w, http.StatusUnprocessableEntity, "Password must be at least 6 characters")
		return
	}

	if _, err := h.repo.User.GetUserByEmail(r.Context(), req.Email); err == nil {
		respondError(w, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to register")
		return
	}
	user := &models.User{Email: req.Email, PasswordHash: hash}
	if err := h.repo.User.CreateUser(r.Context(), user); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.repo.User.GetUserByEmail(r.Context(), req.Email)
	if err != nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := auth.IssueAccessToken(h.cfg.AuthJWTSecret, user.ID, user.Email, user.Tier)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
