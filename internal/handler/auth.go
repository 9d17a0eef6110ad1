package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/config"
	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/repository"
	"github.com/iliyamo/venue-scan/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userPart struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Phone: u.Phone, Role: u.Role, Status: u.Status}
}

type authResp struct {
	Success          bool      `json:"success"`
	Message          string    `json:"message"`
	Token            string    `json:"token"`
	TokenExpires     time.Time `json:"tokenExpires"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpires"`
	User             userPart  `json:"user"`
}

// Login verifies credentials and returns an access/refresh pair.  Inactive
// operators are refused with 403.
func (h *AuthHandler) Login(c echo.Context) error {
	// Decode the JSON body into loginReq.
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	// Emails are stored lower-case; normalise before the lookup.
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	// Unknown email and wrong password get the same answer so the endpoint
	// does not reveal which accounts exist.
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		}
		return failErr(c, err, "login failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	}
	// Deactivated operators keep their row but cannot log in.
	if !u.IsActive() {
		return fail(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "account is inactive")
	}
	return h.issue(c, u, "Login successful")
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	// Only the hash of a refresh token is ever stored.
	hash := utils.HashToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := dbCtx(c)
	defer cancel()

	// Look up the token; expired or revoked tokens are rejected.
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token")
	}
	// Rotate: the presented token is revoked before a new pair is issued.
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return failErr(c, err, "refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid refresh token")
		}
		return failErr(c, err, "refresh failed")
	}
	if !u.IsActive() {
		return fail(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "account is inactive")
	}
	return h.issue(c, u, "Token refreshed")
}

// Logout revokes one refresh token, or every token of the caller when the
// body carries none and the request is authenticated.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := dbCtx(c)
	defer cancel()

	// A token in the body revokes just that session.
	if raw != "" {
		if err := h.Tokens.RevokeByHash(ctx, utils.HashToken(raw)); err != nil {
			return failErr(c, err, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}
	// Otherwise an authenticated caller is logged out everywhere.
	userID, _ := operator(c)
	if userID == "" {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return failErr(c, err, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the current operator.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := operator(c)
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return failErr(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": toUserPart(u)})
}

// issue creates an access/refresh pair for u and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, u model.User, message string) error {
	// Short-lived access token carrying sub and role.
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return failErr(c, err, "issue access token failed")
	}
	// Long-lived opaque refresh token; the raw value goes back to the
	// client once and only its hash is persisted.
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return failErr(c, err, "issue refresh token failed")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return failErr(c, err, "save refresh token failed")
	}
	return c.JSON(http.StatusOK, authResp{
		Success:          true,
		Message:          message,
		Token:            access.Token,
		TokenExpires:     access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
		User:             toUserPart(u),
	})
}
