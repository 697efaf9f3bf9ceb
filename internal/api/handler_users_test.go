package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/conversation"
	"coffee-fleet-backend/internal/model"
)

func TestPutUser_ActivatesProvisionedOperator(t *testing.T) {
	ts := newTestServer(t, config.PolicyProvisioned)
	const staffID = 5

	// First contact provisions the operator as inactive staff.
	w := ts.do(http.MethodPost, "/api/events", jsonBody{"actor_id": staffID, "username": "ann", "action": "start"}, 0)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, conversation.TagDenied, decode[conversation.Result](t, w).Tag)

	// Staff may not administer users.
	w = ts.do(http.MethodPut, "/api/users/5", jsonBody{"role": "staff", "is_active": true}, staffID)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPut, "/api/users/5", jsonBody{"role": "staff", "is_active": true}, adminID)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[model.User](t, w)
	assert.True(t, user.IsActive)
	assert.Equal(t, "ann", user.Username)

	w = ts.do(http.MethodPost, "/api/events", jsonBody{"actor_id": staffID, "action": "start"}, 0)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[conversation.Result](t, w)
	assert.Equal(t, conversation.TagMenu, res.Tag)
	assert.Equal(t, model.RoleStaff, res.Role)
}

func TestPutUser_Validation(t *testing.T) {
	ts := newTestServer(t, config.PolicyProvisioned)

	testCases := []struct {
		name     string
		path     string
		body     jsonBody
		wantCode int
	}{
		{"Unknown role", "/api/users/1", jsonBody{"role": "owner", "is_active": true}, http.StatusBadRequest},
		{"Missing active flag", "/api/users/1", jsonBody{"role": "staff"}, http.StatusBadRequest},
		{"Bad id", "/api/users/abc", jsonBody{"role": "staff", "is_active": true}, http.StatusBadRequest},
		{"Never seen", "/api/users/77", jsonBody{"role": "staff", "is_active": true}, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(http.MethodPut, tc.path, tc.body, adminID)
			assert.Equal(t, tc.wantCode, w.Code, w.Body.String())
		})
	}
}
