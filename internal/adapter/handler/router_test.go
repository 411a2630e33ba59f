package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPattern(t *testing.T) {
	testCases := []struct {
		pattern, path string
		want          map[string]string
		ok            bool
	}{
		{"/api/products", "/api/products", map[string]string{}, true},
		{"/api/products/:id", "/api/products/abc", map[string]string{"id": "abc"}, true},
		{"/api/inventory/:id/stock", "/api/inventory/42/stock", map[string]string{"id": "42"}, true},
		{"/api/products", "/api/products/", nil, false},
		{"/api/products/:id", "/api/products", nil, false},
		{"/api/products/:id", "/api/products/", nil, false},
		{"/api/products/:id", "/api/products/a/b", nil, false},
		{"/api/inventory/:id/stock", "/api/inventory/42/stocks", nil, false},
		{"/api/products", "/api/Products", nil, false},
		{"/:a/:b", "/x/y", map[string]string{"a": "x", "b": "y"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern+" "+tc.path, func(t *testing.T) {
			params, ok := MatchPattern(tc.pattern, tc.path)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, params)
			}
		})
	}
}

type recordedCall struct {
	name   string
	params map[string]string
	body   json.RawMessage
}

func newRecordingRouter(calls *[]recordedCall) *Router {
	record := func(name string) RouteFunc {
		return func(w http.ResponseWriter, r *http.Request, params map[string]string, body json.RawMessage) {
			*calls = append(*calls, recordedCall{name: name, params: params, body: body})
			w.WriteHeader(http.StatusNoContent)
		}
	}
	return NewRouter([]Route{
		{Method: http.MethodGet, Pattern: "/items/special", Handle: record("special")},
		{Method: http.MethodGet, Pattern: "/items/:id", Handle: record("get")},
		{Method: http.MethodPost, Pattern: "/items", Handle: record("create")},
		{Method: http.MethodDelete, Pattern: "/items/:id", Handle: record("delete")},
	})
}

func TestRouter_FirstMatchWins(t *testing.T) {
	var calls []recordedCall
	router := newRecordingRouter(&calls)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/special", nil))

	require.Len(t, calls, 1)
	assert.Equal(t, "special", calls[0].name)
}

func TestRouter_MethodSelectsRoute(t *testing.T) {
	var calls []recordedCall
	router := newRecordingRouter(&calls)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/items/7", nil))

	require.Len(t, calls, 1)
	assert.Equal(t, "delete", calls[0].name)
	assert.Equal(t, "7", calls[0].params["id"])
	assert.Nil(t, calls[0].body)
}

func TestRouter_PassesBodyToWrites(t *testing.T) {
	var calls []recordedCall
	router := newRecordingRouter(&calls)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"a":1}`)))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/items", nil))

	require.Len(t, calls, 2)
	assert.JSONEq(t, `{"a":1}`, string(calls[0].body))
	assert.JSONEq(t, `{}`, string(calls[1].body))
}

func TestRouter_InvalidJSON(t *testing.T) {
	var calls []recordedCall
	router := newRecordingRouter(&calls)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"a":`)))

	assert.Empty(t, calls)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid JSON body"}`, rec.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	var calls []recordedCall
	router := newRecordingRouter(&calls)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
		httptest.NewRequest(http.MethodPut, "/items/7", nil),
		httptest.NewRequest(http.MethodGet, "/items/", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", req.Method, req.URL.Path)
		assert.JSONEq(t, `{"error":"Route not found"}`, rec.Body.String())
	}
	assert.Empty(t, calls)
}

func TestRouter_Options(t *testing.T) {
	var calls []recordedCall
	router := newRecordingRouter(&calls)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/anything/at/all", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, calls)
}
