package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicedesk/servicedesk/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	resolver, _ := newTestResolver(store)
	policy := NewPolicy(DefaultPolicies(), nil)
	gate := NewGate(resolver, policy, nil)
	handler := NewHandler(nil, NewService(store, resolver, policy), gate)

	r := chi.NewRouter()
	r.Route("/permissions", handler.MountPermissionRoutes)
	r.Route("/roles", handler.MountRoleRoutes)
	r.Route("/users", handler.MountUserRoleRoutes)
	return r, store
}

func serve(h http.Handler, method, target, body string, claims shared.Claims) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if claims != nil {
		req = req.WithContext(shared.ContextWithClaims(req.Context(), claims))
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHandlerMe(t *testing.T) {
	router, store := newTestRouter(t)
	store.grant(1, "alice",
		RoleRef{RoleID: RoleCreateUser, RoleName: "create_user"},
		RoleRef{RoleID: RoleReadTicket, RoleName: "read_ticket"})

	res := serve(router, http.MethodGet, "/permissions/me", "", shared.Claims{"sub": "1"})
	require.Equal(t, http.StatusOK, res.Code)

	var body permissionsResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, []int64{RoleReadTicket, RoleCreateUser}, body.RoleIDs)
	assert.Equal(t, []string{"create_user", "read_ticket"}, body.RoleNames)

	res = serve(router, http.MethodGet, "/permissions/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHandlerListActions(t *testing.T) {
	router, _ := newTestRouter(t)
	res := serve(router, http.MethodGet, "/permissions/actions", "", shared.Claims{"sub": "1"})
	require.Equal(t, http.StatusOK, res.Code)

	var body []actionResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Len(t, body, len(AllActions()))
}

func TestHandlerCheck(t *testing.T) {
	router, store := newTestRouter(t)
	store.grant(1, "alice", RoleRef{RoleID: RoleCreateUser, RoleName: "create_user"})
	claims := shared.Claims{"id": float64(1)}

	cases := []struct {
		body    string
		status  int
		allowed bool
	}{
		{`{"actions":["create_user","delete_user"]}`, http.StatusOK, true},
		{`{"actions":["create_user","delete_user"],"logic":"AND"}`, http.StatusOK, false},
		{`{"actions":["nope"]}`, http.StatusOK, false},
		{`{"actions":[]}`, http.StatusBadRequest, false},
		{`{"actions":["create_user"],"logic":"XOR"}`, http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		res := serve(router, http.MethodPost, "/permissions/check", tc.body, claims)
		require.Equal(t, tc.status, res.Code, tc.body)
		if tc.status != http.StatusOK {
			continue
		}
		var body map[string]bool
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Equal(t, tc.allowed, body["allowed"], tc.body)
	}
}

func TestHandlerRolesRequireUserAdmin(t *testing.T) {
	router, store := newTestRouter(t)
	store.roles = []Role{{ID: RoleCreateTicket, Name: "create_ticket"}}
	store.grant(1, "admin", RoleRef{RoleID: RoleUpdateUser, RoleName: "update_user"})
	store.grant(2, "agent", RoleRef{RoleID: RoleReadTicket, RoleName: "read_ticket"})

	res := serve(router, http.MethodGet, "/roles/", "", shared.Claims{"id": float64(1)})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "create_ticket")

	res = serve(router, http.MethodGet, "/roles/", "", shared.Claims{"id": float64(2)})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestHandlerAssignAndRemoveRole(t *testing.T) {
	router, store := newTestRouter(t)
	store.grant(1, "admin", RoleRef{RoleID: RoleUpdateUser, RoleName: "update_user"})
	admin := shared.Claims{"id": float64(1)}

	res := serve(router, http.MethodPost, "/users/9/roles", `{"role_id":2}`, admin)
	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, []int64{2}, store.assigned[9])

	res = serve(router, http.MethodPost, "/users/9/roles", `{"role_id":0}`, admin)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = serve(router, http.MethodDelete, "/users/9/roles/2", "", admin)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = serve(router, http.MethodDelete, "/users/9/roles/2", "", admin)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = serve(router, http.MethodPut, "/users/9/roles", `{"role_ids":[1,3,3]}`, admin)
	require.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, []int64{1, 3}, store.assigned[9])

	res = serve(router, http.MethodPost, "/users/9/roles", `{"role_id":2}`, shared.Claims{"id": float64(5)})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestHandlerUserPermissionsRoleListMode(t *testing.T) {
	router, store := newTestRouter(t)
	store.grant(1, "auditor", RoleRef{RoleID: RoleReadUser, RoleName: "read_user"})
	store.grant(2, "agent", RoleRef{RoleID: RoleReadTicket, RoleName: "read_ticket"})

	res := serve(router, http.MethodGet, "/users/2/permissions", "", shared.Claims{"id": float64(1)})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "read_ticket")

	res = serve(router, http.MethodGet, "/users/2/permissions", "", shared.Claims{"id": float64(2)})
	assert.Equal(t, http.StatusForbidden, res.Code, "ownership fallback is not modelled")
}
