package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/kubarr/kubarr/internal/apperrors"
	"github.com/kubarr/kubarr/internal/db"
	"github.com/kubarr/kubarr/internal/validate"
)

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserInfo is the public user representation returned in auth responses.
type UserInfo struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions"`
}

// AuthConfigResponse tells the frontend which auth methods are available.
type AuthConfigResponse struct {
	TrustedProxyEnabled bool `json:"trusted_proxy_enabled"`
	LocalEnabled        bool `json:"local_enabled"`
}

// LoginHandler handles local email/password login, session introspection
// and logout.
type LoginHandler struct {
	sessions  *SessionManager
	queries   *db.Queries
	logger    *slog.Logger
	limiter   *RateLimiter
	cookieTTL int // seconds, mirrors DefaultSessionTTL for the Set-Cookie MaxAge
}

func NewLoginHandler(sm *SessionManager, q *db.Queries, logger *slog.Logger, limiter *RateLimiter) *LoginHandler {
	return &LoginHandler{
		sessions:  sm,
		queries:   q,
		logger:    logger,
		limiter:   limiter,
		cookieTTL: int(DefaultSessionTTL.Seconds()),
	}
}

// HandleLogin authenticates a user with email/password and issues a
// session cookie.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if h.limiter != nil {
		result, err := h.limiter.Check(r.Context(), ip)
		if err != nil {
			h.logger.Error("login: rate limit check failed", "error", err)
		} else if !result.Allowed {
			apperrors.Write(w, apperrors.Unauthorized("too many login attempts, try again later"))
			return
		}
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.Write(w, apperrors.BadRequest("invalid JSON body"))
		return
	}
	if errs := validate.Struct(req); len(errs) > 0 {
		apperrors.Write(w, apperrors.BadRequest(errs[0].Field+": "+errs[0].Message))
		return
	}

	u, err := h.queries.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.recordFailure(r.Context(), ip)
		apperrors.Write(w, apperrors.Unauthorized("invalid email or password"))
		return
	}
	if !u.IsActive || !u.IsApproved {
		h.recordFailure(r.Context(), ip)
		apperrors.Write(w, apperrors.Unauthorized("invalid email or password"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		h.recordFailure(r.Context(), ip)
		apperrors.Write(w, apperrors.Unauthorized("invalid email or password"))
		return
	}

	if h.limiter != nil {
		if err := h.limiter.Reset(r.Context(), ip); err != nil {
			h.logger.Warn("login: resetting rate limit", "error", err)
		}
	}

	sess, err := h.queries.CreateSession(r.Context(), u.ID, r.UserAgent(), ip, DefaultSessionTTL)
	if err != nil {
		h.logger.Error("login: creating session", "error", err)
		apperrors.Write(w, apperrors.Internal("failed to create session"))
		return
	}

	token, err := h.sessions.IssueToken(sess.ID)
	if err != nil {
		h.logger.Error("login: issuing token", "error", err)
		apperrors.Write(w, apperrors.Internal("failed to issue session token"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   h.cookieTTL,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	isAdmin, _ := h.queries.IsAdmin(r.Context(), u.ID)
	perms, _ := h.queries.Permissions(r.Context(), u.ID)

	respondJSON(w, http.StatusOK, UserInfo{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsAdmin:     isAdmin,
		Permissions: perms,
	})
}

func (h *LoginHandler) recordFailure(ctx context.Context, ip string) {
	if h.limiter == nil {
		return
	}
	if err := h.limiter.Record(ctx, ip); err != nil {
		h.logger.Warn("login: recording rate limit failure", "error", err)
	}
}

// HandleAuthConfig returns the available authentication methods.
func (h *LoginHandler) HandleAuthConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, AuthConfigResponse{
		TrustedProxyEnabled: true,
		LocalEnabled:        true,
	})
}

// HandleMe returns the current authenticated user, resolved by the Auth
// Gate and stored in the request context.
func (h *LoginHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := FromContext(r.Context())
	if user == nil {
		apperrors.Write(w, apperrors.Unauthorized("not authenticated"))
		return
	}
	respondJSON(w, http.StatusOK, UserInfo{
		ID:          user.UserID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsAdmin:     user.IsAdmin,
		Permissions: user.Permissions,
	})
}

// HandleLogout revokes the current session server-side and clears the
// cookie.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if sid, err := h.sessions.ValidateToken(cookie.Value); err == nil {
			if err := h.queries.RevokeSession(r.Context(), sid); err != nil {
				h.logger.Warn("logout: revoking session", "error", err)
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
