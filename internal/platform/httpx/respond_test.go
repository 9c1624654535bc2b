package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: ticket 9", ErrNotFound), http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: title required", ErrValidation), http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		res := httptest.NewRecorder()
		RespondError(res, tc.err)
		assert.Equal(t, tc.status, res.Code, tc.err.Error())
		assert.Equal(t, problemContentType, res.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, fmt.Errorf("connection refused to 10.0.0.3"))
	assert.NotContains(t, res.Body.String(), "10.0.0.3")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	assert.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "a", dst.Name)
}
