package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rl1809/chemflo/internal/core/domain"
)

const maxBodyBytes = 1 << 20

// RouteFunc handles a matched route. body is the raw JSON request body for
// POST and PUT and nil otherwise.
type RouteFunc func(w http.ResponseWriter, r *http.Request, params map[string]string, body json.RawMessage)

type Route struct {
	Method  string
	Pattern string
	Handle  RouteFunc
}

type compiledRoute struct {
	Route
	segments []string
}

// Router dispatches requests through a fixed route table. Routes are tried
// in order and the first match wins.
type Router struct {
	routes []compiledRoute
}

func NewRouter(routes []Route) *Router {
	compiled := make([]compiledRoute, len(routes))
	for i, route := range routes {
		compiled[i] = compiledRoute{Route: route, segments: strings.Split(route.Pattern, "/")}
	}
	return &Router{routes: compiled}
}

// MatchPattern matches path against pattern segment by segment. A segment
// starting with ':' binds a non-empty path parameter; every other segment
// must match exactly.
func MatchPattern(pattern, path string) (map[string]string, bool) {
	return matchSegments(strings.Split(pattern, "/"), path)
}

func matchSegments(pattern []string, path string) (map[string]string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != len(pattern) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range pattern {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if parts[i] == "" {
				return nil, false
			}
			params[name] = parts[i]
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return params, true
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, route := range rt.routes {
		if route.Method != r.Method {
			continue
		}
		params, ok := matchSegments(route.segments, r.URL.Path)
		if !ok {
			continue
		}

		var body json.RawMessage
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			var err error
			body, err = readJSONBody(w, r)
			if err != nil {
				writeError(w, http.StatusBadRequest, msgInvalidJSON)
				return
			}
		}

		route.Handle(w, r, params, body)
		return
	}

	writeError(w, http.StatusNotFound, domain.ErrRouteNotFound.Message)
}

// readJSONBody reads the request body; an empty body reads as an empty object.
func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}
	return json.RawMessage(data), nil
}
