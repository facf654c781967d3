package auth

import (
	"context"
	cryptorand "crypto/rand"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kubarr/kubarr/internal/apperrors"
	"github.com/kubarr/kubarr/internal/db"
)

// TrustedEmailHeader and TrustedUserHeader are the headers an upstream
// auth proxy (oauth2-proxy or similar) sets once it has already verified
// the caller's identity. They're trusted only because kubarr is expected
// to sit behind such a proxy in production; they are never accepted as
// the caller's own assertion over the session cookie path.
const (
	TrustedEmailHeader = "X-Auth-Request-Email"
	TrustedUserHeader  = "X-Auth-Request-User"
)

var usernameSanitizer = regexp.MustCompile(`[^a-z0-9_]`)

// Gate is the Auth Gate middleware: it resolves the caller's identity from
// either the kubarr_session cookie or a trusted auth-proxy header, and
// attaches an *AuthenticatedUser to the request context. It never itself
// rejects requests that carry no credentials at all — that's the
// Permission Gate's job for routes that require one — except where a
// cookie or header IS present but resolves to nothing valid, which is
// always a hard 401.
type Gate struct {
	Sessions *SessionManager
	Queries  *db.Queries
	Logger   *slog.Logger
}

func NewGate(sm *SessionManager, q *db.Queries, logger *slog.Logger) *Gate {
	return &Gate{Sessions: sm, Queries: q, Logger: logger}
}

// Middleware authenticates the caller and stores the resulting
// AuthenticatedUser in the request context for downstream handlers and
// the Permission Gate to read via FromContext.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
			user, err := g.authenticateSession(r.Context(), cookie.Value)
			if err != nil {
				g.Logger.Warn("session authentication failed", "error", err)
				apperrors.Write(w, apperrors.Unauthorized("invalid or expired session"))
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), user)))
			return
		}

		if email := r.Header.Get(TrustedEmailHeader); email != "" {
			user, err := g.authenticateTrustedHeader(r.Context(), email)
			if err != nil {
				g.Logger.Warn("trust-header authentication failed", "email", email, "error", err)
				apperrors.Write(w, apperrors.Unauthorized("account is inactive or not yet approved"))
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), user)))
			return
		}
		if username := r.Header.Get(TrustedUserHeader); username != "" {
			user, err := g.authenticateTrustedHeader(r.Context(), username)
			if err != nil {
				g.Logger.Warn("trust-header authentication failed", "user", username, "error", err)
				apperrors.Write(w, apperrors.Unauthorized("account is inactive or not yet approved"))
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), user)))
			return
		}

		// No credentials at all. Leave the context empty; the Permission
		// Gate (or a handler calling FromContext itself) rejects this.
		next.ServeHTTP(w, r)
	})
}

// authenticateSession decodes the session token, loads the session row,
// checks revocation/expiry and the owning user's active/approved status,
// fetches permissions, and kicks off a fire-and-forget last_accessed_at
// update. There is no rolling renewal: expiry is fixed at issuance.
func (g *Gate) authenticateSession(ctx context.Context, token string) (*AuthenticatedUser, error) {
	sid, err := g.Sessions.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	sess, err := g.Queries.GetSession(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess.IsRevoked {
		return nil, &revokedError{}
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, &expiredError{}
	}

	u, err := g.Queries.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !u.IsApproved {
		return nil, &inactiveError{}
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.Queries.TouchSession(touchCtx, sid); err != nil {
			g.Logger.Warn("updating session last_accessed_at", "session_id", sid, "error", err)
		}
	}()

	return g.buildAuthenticatedUser(ctx, u, sid)
}

// authenticateTrustedHeader resolves (or auto-provisions) a user from an
// email or username asserted by a trusted upstream auth proxy.
func (g *Gate) authenticateTrustedHeader(ctx context.Context, email string) (*AuthenticatedUser, error) {
	u, err := g.Queries.GetUserByEmail(ctx, email)
	if err == nil {
		if !u.IsActive || !u.IsApproved {
			return nil, &inactiveError{}
		}
		return g.buildAuthenticatedUser(ctx, u, "")
	}
	if err != db.ErrNotFound {
		return nil, err
	}

	u, err = g.autoProvision(ctx, email)
	if err != nil {
		return nil, err
	}
	return g.buildAuthenticatedUser(ctx, u, "")
}

// autoProvision creates an active, pre-approved account for a caller the
// upstream proxy has already authenticated, deriving a unique display
// name from the local part of the email and a random password that is
// bcrypt-hashed and never exposed (local password login stays unusable
// for these accounts unless an admin later sets one explicitly).
func (g *Gate) autoProvision(ctx context.Context, email string) (db.User, error) {
	base := usernameSanitizer.ReplaceAllString(strings.ReplaceAll(strings.ToLower(localPart(email)), ".", "_"), "")
	if base == "" {
		base = "user"
	}

	name := base
	for i := 1; ; i++ {
		taken, err := g.Queries.UsernameTaken(ctx, name)
		if err != nil {
			return db.User{}, err
		}
		if !taken {
			break
		}
		name = base + "_" + strconv.Itoa(i)
	}

	randomPassword := make([]byte, 32)
	if _, err := cryptorand.Read(randomPassword); err != nil {
		return db.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword(randomPassword, bcrypt.DefaultCost)
	if err != nil {
		return db.User{}, err
	}

	return g.Queries.CreateUser(ctx, email, name, string(hash))
}

func (g *Gate) buildAuthenticatedUser(ctx context.Context, u db.User, sessionID string) (*AuthenticatedUser, error) {
	isAdmin, err := g.Queries.IsAdmin(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	perms, err := g.Queries.Permissions(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthenticatedUser{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsAdmin:     isAdmin,
		Permissions: perms,
		SessionID:   sessionID,
	}, nil
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

type revokedError struct{}

func (e *revokedError) Error() string { return "session revoked" }

type expiredError struct{}

func (e *expiredError) Error() string { return "session expired" }

type inactiveError struct{}

func (e *inactiveError) Error() string { return "account inactive or not approved" }
