package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/config"
	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/repository"
)

// UserHandler serves operator management for administrators.
type UserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u, Tokens: t}
}

type addUserReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

type updateUserReq struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
}

type resetPasswordReq struct {
	Password string `json:"password"`
}

const minPasswordLen = 6

func normalizeRole(r string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(r)) {
	case "", model.RoleScanner:
		return model.RoleScanner, true
	case model.RoleAdmin:
		return model.RoleAdmin, true
	}
	return "", false
}

// AddUser creates an operator.  Role defaults to SCANNER.
func (h *UserHandler) AddUser(c echo.Context) error {
	var req addUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		return badRequest(c, "a valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		return badRequest(c, "password must be at least 6 characters")
	}
	role, ok := normalizeRole(req.Role)
	if !ok {
		return badRequest(c, "role must be ADMIN or SCANNER")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.Create(ctx, repository.NewUser{
		Email: req.Email, Password: req.Password, FirstName: req.FirstName,
		LastName: req.LastName, Phone: req.Phone, Role: role,
	}, h.Cfg.BcryptCost)
	if err != nil {
		return failErr(c, err, "create user failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "User created successfully", "user": toUserPart(u)})
}

// ListUsers returns every operator.
func (h *UserHandler) ListUsers(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	users, err := h.Users.List(ctx)
	if err != nil {
		return failErr(c, err, "list users failed")
	}
	out := make([]userPart, 0, len(users))
	for _, u := range users {
		out = append(out, toUserPart(u))
	}
	return c.JSON(http.StatusOK, out)
}

// GetUser returns one operator.
func (h *UserHandler) GetUser(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load user failed")
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// UpdateUser applies a partial profile update.  Deactivating an operator
// revokes its refresh tokens.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	upd := repository.UserUpdate{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, Phone: req.Phone}
	if req.Role != nil {
		role, ok := normalizeRole(*req.Role)
		if !ok {
			return badRequest(c, "role must be ADMIN or SCANNER")
		}
		upd.Role = &role
	}
	if req.Status != nil {
		st := strings.ToLower(strings.TrimSpace(*req.Status))
		if st != model.UserActive && st != model.UserInactive {
			return badRequest(c, "status must be active or inactive")
		}
		upd.Status = &st
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	u, err := h.Users.Update(ctx, c.Param("id"), upd)
	if err != nil {
		return failErr(c, err, "update user failed")
	}
	if !u.IsActive() {
		if err := h.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
			c.Logger().Warnf("revoke tokens of %s: %v", u.ID, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User updated successfully", "user": toUserPart(u)})
}

// ResetPassword sets a new password and signs the operator out everywhere.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if len(req.Password) < minPasswordLen {
		return badRequest(c, "password must be at least 6 characters")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	id := c.Param("id")
	if err := h.Users.SetPassword(ctx, id, req.Password, h.Cfg.BcryptCost); err != nil {
		return failErr(c, err, "reset password failed")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
		c.Logger().Warnf("revoke tokens of %s: %v", id, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password reset successfully"})
}

// DeleteUser removes an operator.  Administrators cannot delete themselves.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if self, _ := operator(c); self == id {
		return fail(c, http.StatusConflict, "CONFLICT", "you cannot delete your own account")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		return failErr(c, err, "delete user failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User deleted successfully"})
}
