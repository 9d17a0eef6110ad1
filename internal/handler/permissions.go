package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/repository"
)

// PermissionHandler manages which scanners may validate an event.
type PermissionHandler struct {
	Events      *repository.EventRepo
	Users       *repository.UserRepo
	Permissions *repository.PermissionRepo
}

func NewPermissionHandler(e *repository.EventRepo, u *repository.UserRepo, p *repository.PermissionRepo) *PermissionHandler {
	return &PermissionHandler{Events: e, Users: u, Permissions: p}
}

// grantReq keeps the client's field name for the operator id.
type grantReq struct {
	TenantID string `json:"tenant_id"`
}

// List returns the scanners permitted on the event.
func (h *PermissionHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	perms, err := h.Permissions.ListByEvent(ctx, e.ID)
	if err != nil {
		return failErr(c, err, "list permissions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "permissions": perms})
}

// Grant allows one SCANNER operator to validate tickets for the event.
func (h *PermissionHandler) Grant(c echo.Context) error {
	var req grantReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.TenantID = strings.TrimSpace(req.TenantID)
	if req.TenantID == "" {
		return badRequest(c, "tenant_id is required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	e, err := h.Events.GetByID(ctx, c.Param("id"))
	if err != nil {
		return failErr(c, err, "load event failed")
	}
	u, err := h.Users.GetByID(ctx, req.TenantID)
	if err != nil {
		return failErr(c, err, "load user failed")
	}
	if u.Role != model.RoleScanner {
		return badRequest(c, "only SCANNER users need a scan permission")
	}
	adminID, _ := operator(c)
	p, err := h.Permissions.Grant(ctx, e.ID, u.ID, adminID)
	if err != nil {
		return failErr(c, err, "grant permission failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":    true,
		"message":    "Scan permission granted",
		"permission": p,
	})
}

// Revoke removes a grant.
func (h *PermissionHandler) Revoke(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Permissions.Revoke(ctx, c.Param("id"), c.Param("permissionId")); err != nil {
		return failErr(c, err, "revoke permission failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Scan permission revoked"})
}
