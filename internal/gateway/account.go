// ABOUTME: HTTP handlers for signup, login, email verification and account management
// ABOUTME: Every state change is recorded in the audit log with the client address

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lautrek/tollgate/internal/auth"
	"github.com/lautrek/tollgate/internal/billing"
	"github.com/lautrek/tollgate/internal/gate"
	"github.com/lautrek/tollgate/internal/store"
)

// maxDeviceNameLen truncates the User-Agent stored with a session.
const maxDeviceNameLen = 200

// SignupRequest is the JSON request body for POST /api/v1/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse is the JSON response for POST /api/v1/auth/signup.
// APIKey is shown exactly once and works after the email is verified.
type SignupResponse struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	APIKey        string `json:"api_key"`
	EmailVerified bool   `json:"email_verified"`
}

// LoginRequest is the JSON request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse is the JSON response for POST /api/v1/auth/login.
type LoginResponse struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Tier      store.Tier `json:"tier"`
	ExpiresIn int64      `json:"expires_in"` // seconds
}

// AccountResponse is the JSON response for GET /api/v1/account.
type AccountResponse struct {
	UserID             string              `json:"user_id"`
	Email              string              `json:"email"`
	Tier               store.Tier          `json:"tier"`
	EmailVerified      bool                `json:"email_verified"`
	SubscriptionStatus string              `json:"subscription_status,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	LastActiveAt       *time.Time          `json:"last_active_at,omitempty"`
	Usage              *billing.UsageStats `json:"usage"`
}

// RotateAPIKeyResponse is the JSON response for POST /api/v1/account/api-key.
type RotateAPIKeyResponse struct {
	APIKey string `json:"api_key"`
}

// ChangePasswordRequest is the JSON request body for POST /api/v1/account/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// StatusResponse is a minimal acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}

// handleSignup creates an unverified free-tier account and sends the
// verification link.
func (g *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, err.Error())
		return
	}

	email := store.NormalizeEmail(req.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, "invalid email address")
		return
	}
	if ok, problems := auth.ValidatePasswordStrength(req.Password); !ok {
		writeJSON(w, http.StatusBadRequest, validationErrorBody{
			Error:   "password does not meet requirements",
			Reason:  reasonBadRequest,
			Details: problems,
		})
		return
	}

	ctx := r.Context()
	passwordHash, err := g.passwords.Hash(req.Password)
	if err != nil {
		g.internalError(w, "failed to hash password", err)
		return
	}
	apiKey, err := g.keys.Generate()
	if err != nil {
		g.internalError(w, "failed to generate api key", err)
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		APIKeyHash:   auth.Fingerprint(apiKey),
		Tier:         store.TierFree,
	}
	if err := g.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			g.sendJSONError(w, http.StatusConflict, reasonConflict, "email already registered")
			return
		}
		g.internalError(w, "failed to create user", err)
		return
	}

	g.audit(ctx, r, &store.AuditEntry{
		UserID:       user.ID,
		Action:       store.AuditSignup,
		ResourceType: "user",
		ResourceID:   user.ID,
	})
	g.sendVerification(ctx, user)

	writeJSON(w, http.StatusCreated, SignupResponse{
		UserID:        user.ID,
		Email:         user.Email,
		APIKey:        apiKey,
		EmailVerified: false,
	})
}

// sendVerification signs a verification token and hands the link to the
// mailer. Failures are logged; the user can sign up again after expiry.
func (g *Gateway) sendVerification(ctx context.Context, user *store.User) {
	token, err := g.verifier.Sign(user.ID, user.Email)
	if err != nil {
		g.logger.Error("failed to sign verification token", "user_id", user.ID, "error", err)
		return
	}
	link := g.config.PublicURL() + "/api/v1/auth/verify?token=" + url.QueryEscape(token)
	if err := g.mailer.SendVerification(ctx, user.Email, link); err != nil {
		g.logger.Error("failed to send verification email", "user_id", user.ID, "error", err)
	}
}

// handleVerifyEmail flips email_verified for the user named by the token.
// Verifying twice is harmless.
func (g *Gateway) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	claims, err := g.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		msg := "invalid verification token"
		if errors.Is(err, auth.ErrExpiredToken) {
			msg = "verification token expired"
		}
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, msg)
		return
	}

	ctx := r.Context()
	user, err := g.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, "invalid verification token")
		return
	}
	if err != nil {
		g.internalError(w, "failed to load user", err)
		return
	}
	if user.Email != store.NormalizeEmail(claims.Email) {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, "invalid verification token")
		return
	}

	if !user.EmailVerified {
		if err := g.store.SetEmailVerified(ctx, user.ID); err != nil {
			g.internalError(w, "failed to verify email", err)
			return
		}
		g.audit(ctx, r, &store.AuditEntry{
			UserID:       user.ID,
			Action:       store.AuditEmailVerified,
			ResourceType: "user",
			ResourceID:   user.ID,
		})
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "verified"})
}

// handleLogin checks a password and starts a session. Attempts are
// throttled per connection address and per email.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !g.throttle.Allow("ip:" + auth.RemoteIP(r)) {
		g.loginThrottled(w)
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, err.Error())
		return
	}
	if !g.throttle.Allow("email:" + store.NormalizeEmail(req.Email)) {
		g.loginThrottled(w)
		return
	}
	ip := auth.ClientIP(r)

	ctx := r.Context()
	user, err := g.store.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		g.internalError(w, "failed to load user", err)
		return
	}

	if user == nil || user.PasswordHash == "" {
		g.passwords.Verify(req.Password, g.loginDummyHash())
		g.loginFailed(ctx, w, r, "", req.Email)
		return
	}
	if !g.passwords.Verify(req.Password, user.PasswordHash) {
		g.loginFailed(ctx, w, r, user.ID, req.Email)
		return
	}
	if !user.EmailVerified {
		g.sendJSONError(w, http.StatusForbidden, reasonUnverified, "email not verified")
		return
	}

	if g.passwords.NeedsRehash(user.PasswordHash) {
		g.upgradePasswordHash(ctx, user.ID, req.Password)
	}

	sessionID, token, err := g.sessions.Create(ctx, user.ID, req.RememberMe, auth.SessionMeta{
		IPAddress:  ip,
		DeviceName: truncate(r.UserAgent(), maxDeviceNameLen),
	})
	if err != nil {
		g.internalError(w, "failed to create session", err)
		return
	}
	g.cookie.Set(w, token, req.RememberMe)

	if err := g.store.TouchUser(ctx, user.ID, time.Now().UTC()); err != nil {
		g.logger.Warn("failed to stamp last activity", "user_id", user.ID, "error", err)
	}
	g.audit(ctx, r, &store.AuditEntry{
		UserID:       user.ID,
		Action:       store.AuditLogin,
		ResourceType: "session",
		ResourceID:   sessionID,
		Detail:       map[string]any{"remember_me": req.RememberMe},
	})

	ttl := auth.SessionTTL
	if req.RememberMe {
		ttl = auth.RememberMeTTL
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Tier:      user.Tier,
		ExpiresIn: int64(ttl.Seconds()),
	})
}

func (g *Gateway) loginThrottled(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	g.sendJSONError(w, http.StatusTooManyRequests, reasonRateLimited, "too many login attempts")
}

// loginFailed records the attempt and writes a response that does not say
// which half of the credential was wrong.
func (g *Gateway) loginFailed(ctx context.Context, w http.ResponseWriter, r *http.Request, userID, email string) {
	g.audit(ctx, r, &store.AuditEntry{
		UserID:       userID,
		Action:       store.AuditLoginFailed,
		ResourceType: "user",
		ResourceID:   userID,
		Detail:       map[string]any{"email": store.NormalizeEmail(email)},
	})
	g.sendJSONError(w, http.StatusUnauthorized, gate.ReasonInvalidCredential, "invalid email or password")
}

// loginDummyHash returns a hash to verify against for unknown users.
func (g *Gateway) loginDummyHash() string {
	g.dummyMu.Lock()
	defer g.dummyMu.Unlock()

	if g.dummyHash != "" {
		return g.dummyHash
	}
	h, err := g.passwords.Hash(uuid.New().String())
	if err != nil {
		// Retried on the next unknown-email login.
		g.logger.Error("failed to build dummy password hash", "error", err)
		return g.passwords.Placeholder()
	}
	g.dummyHash = h
	return h
}

// upgradePasswordHash rehashes a verified password with current parameters.
func (g *Gateway) upgradePasswordHash(ctx context.Context, userID, password string) {
	h, err := g.passwords.Hash(password)
	if err != nil {
		g.logger.Warn("failed to rehash password", "user_id", userID, "error", err)
		return
	}
	if err := g.store.UpdatePasswordHash(ctx, userID, h); err != nil {
		g.logger.Warn("failed to store rehashed password", "user_id", userID, "error", err)
		return
	}
	g.logger.Info("upgraded password hash parameters", "user_id", userID)
}

func (g *Gateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.MustFromContext(ctx)

	if _, err := g.sessions.Delete(ctx, id.SessionID); err != nil {
		g.internalError(w, "failed to delete session", err)
		return
	}
	g.cookie.Clear(w)

	g.audit(ctx, r, &store.AuditEntry{
		UserID:       id.UserID,
		Action:       store.AuditLogout,
		ResourceType: "session",
		ResourceID:   id.SessionID,
	})
	writeJSON(w, http.StatusOK, StatusResponse{Status: "logged_out"})
}

func (g *Gateway) handleAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.MustFromContext(ctx)

	user, err := g.store.GetUser(ctx, id.UserID)
	if err != nil {
		g.internalError(w, "failed to load user", err)
		return
	}
	stats, err := g.ledger.Stats(ctx, user.ID, user.Tier)
	if err != nil {
		g.internalError(w, "failed to read usage", err)
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{
		UserID:             user.ID,
		Email:              user.Email,
		Tier:               user.Tier,
		EmailVerified:      user.EmailVerified,
		SubscriptionStatus: user.SubscriptionStatus,
		CreatedAt:          user.CreatedAt,
		LastActiveAt:       user.LastActiveAt,
		Usage:              stats,
	})
}

// handleRotateAPIKey replaces the caller's API key. The old key stops
// working immediately.
func (g *Gateway) handleRotateAPIKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.MustFromContext(ctx)

	key, err := g.keys.Rotate(ctx, id.UserID)
	if err != nil {
		g.internalError(w, "failed to rotate api key", err)
		return
	}

	g.audit(ctx, r, &store.AuditEntry{
		UserID:       id.UserID,
		Action:       store.AuditAPIKeyRotated,
		ResourceType: "user",
		ResourceID:   id.UserID,
	})
	writeJSON(w, http.StatusOK, RotateAPIKeyResponse{APIKey: key})
}

// handleChangePassword sets a new password and signs the user out everywhere.
func (g *Gateway) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := auth.MustFromContext(ctx)

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, reasonBadRequest, err.Error())
		return
	}

	user, err := g.store.GetUser(ctx, id.UserID)
	if err != nil {
		g.internalError(w, "failed to load user", err)
		return
	}
	if user.PasswordHash == "" || !g.passwords.Verify(req.CurrentPassword, user.PasswordHash) {
		g.sendJSONError(w, http.StatusForbidden, gate.ReasonInvalidCredential, "current password is incorrect")
		return
	}
	if ok, problems := auth.ValidatePasswordStrength(req.NewPassword); !ok {
		writeJSON(w, http.StatusBadRequest, validationErrorBody{
			Error:   "password does not meet requirements",
			Reason:  reasonBadRequest,
			Details: problems,
		})
		return
	}

	h, err := g.passwords.Hash(req.NewPassword)
	if err != nil {
		g.internalError(w, "failed to hash password", err)
		return
	}
	if err := g.store.UpdatePasswordHash(ctx, user.ID, h); err != nil {
		g.internalError(w, "failed to store password", err)
		return
	}

	revoked, err := g.sessions.DeleteAllForUser(ctx, user.ID)
	if err != nil {
		g.internalError(w, "failed to revoke sessions", err)
		return
	}
	g.cookie.Clear(w)

	g.audit(ctx, r, &store.AuditEntry{
		UserID:       user.ID,
		Action:       store.AuditPasswordChanged,
		ResourceType: "user",
		ResourceID:   user.ID,
		Detail:       map[string]any{"sessions_revoked": revoked},
	})
	writeJSON(w, http.StatusOK, StatusResponse{Status: "password_changed"})
}

// audit appends an entry stamped with the client address. The audit log is
// a side channel; failures are logged and do not fail the request.
func (g *Gateway) audit(ctx context.Context, r *http.Request, e *store.AuditEntry) {
	e.IPAddress = auth.ClientIP(r)
	if err := g.store.AppendAuditLog(ctx, e); err != nil {
		g.logger.Warn("failed to append audit log", "action", e.Action, "error", err)
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
