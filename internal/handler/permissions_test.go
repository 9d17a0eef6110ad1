package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/model"
)

func TestScanPermissions(t *testing.T) {
	env := newTestEnv(t)
	h := NewPermissionHandler(env.events, env.users, env.permissions)
	ev := env.seedEvent(t, "Gala")
	admin := env.seedUser(t, "admin@venue.test", "secret-pw", model.RoleAdmin)
	scanner := env.seedUser(t, "door@venue.test", "secret-pw", model.RoleScanner)

	grant := func(userID string) int {
		c, rec := env.jsonCtx(http.MethodPost, "/", `{"tenant_id":"`+userID+`"}`)
		withParams(c, "id", ev.ID)
		asOperator(c, admin.ID, model.RoleAdmin)
		require.NoError(t, h.Grant(c))
		return rec.Code
	}
	assert.Equal(t, http.StatusCreated, grant(scanner.ID))
	assert.Equal(t, http.StatusConflict, grant(scanner.ID))
	assert.Equal(t, http.StatusNotFound, grant("missing"))
	assert.Equal(t, http.StatusBadRequest, grant(admin.ID))

	ok, err := env.permissions.HasPermission(context.Background(), ev.ID, scanner.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	c, rec := env.jsonCtx(http.MethodGet, "/", "")
	withParams(c, "id", ev.ID)
	require.NoError(t, h.List(c))
	perms := body(t, rec)["permissions"].([]any)
	require.Len(t, perms, 1)
	p := perms[0].(map[string]any)
	assert.Equal(t, "door@venue.test", p["email"])

	c, rec = env.jsonCtx(http.MethodDelete, "/", "")
	withParams(c, "id", ev.ID, "permissionId", p["id"].(string))
	require.NoError(t, h.Revoke(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = env.jsonCtx(http.MethodDelete, "/", "")
	withParams(c, "id", ev.ID, "permissionId", p["id"].(string))
	require.NoError(t, h.Revoke(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
