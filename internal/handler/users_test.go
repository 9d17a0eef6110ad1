package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/model"
)

func TestUserManagement(t *testing.T) {
	env := newTestEnv(t)
	h := NewUserHandler(env.cfg, env.users, env.tokens)
	admin := env.seedUser(t, "admin@venue.test", "secret-pw", model.RoleAdmin)

	c, rec := env.jsonCtx(http.MethodPost, "/api/users/adduser",
		`{"email":"door@venue.test","password":"secret-pw","firstName":"Door","lastName":"One"}`)
	require.NoError(t, h.AddUser(c))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := body(t, rec)["user"].(map[string]any)
	assert.Equal(t, model.RoleScanner, created["role"])
	id := created["id"].(string)

	c, rec = env.jsonCtx(http.MethodPost, "/api/users/adduser", `{"email":"door@venue.test","password":"secret-pw"}`)
	require.NoError(t, h.AddUser(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = env.jsonCtx(http.MethodPost, "/api/users/adduser", `{"email":"x@venue.test","password":"123"}`)
	require.NoError(t, h.AddUser(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = env.jsonCtx(http.MethodGet, "/api/users", "")
	require.NoError(t, h.ListUsers(c))
	var list []userPart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	c, rec = env.jsonCtx(http.MethodPut, "/api/users/update/"+id, `{"status":"inactive","phone":"+15550199"}`)
	withParams(c, "id", id)
	require.NoError(t, h.UpdateUser(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := body(t, rec)["user"].(map[string]any)
	assert.Equal(t, model.UserInactive, updated["status"])
	assert.Equal(t, "+15550199", updated["phone"])

	c, rec = env.jsonCtx(http.MethodPut, "/api/users/update/"+id, `{"role":"OWNER"}`)
	withParams(c, "id", id)
	require.NoError(t, h.UpdateUser(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = env.jsonCtx(http.MethodPost, "/api/users/reset-password/"+id, `{"password":"another-pw"}`)
	withParams(c, "id", id)
	require.NoError(t, h.ResetPassword(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = env.jsonCtx(http.MethodDelete, "/api/users/delete/"+admin.ID, "")
	withParams(c, "id", admin.ID)
	asOperator(c, admin.ID, model.RoleAdmin)
	require.NoError(t, h.DeleteUser(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	c, rec = env.jsonCtx(http.MethodDelete, "/api/users/delete/"+id, "")
	withParams(c, "id", id)
	asOperator(c, admin.ID, model.RoleAdmin)
	require.NoError(t, h.DeleteUser(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = env.jsonCtx(http.MethodGet, "/api/users/"+id, "")
	withParams(c, "id", id)
	require.NoError(t, h.GetUser(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", body(t, rec)["code"])
}
