// Package routes names every page of the site so that links and redirects
// are built from the route table instead of from request headers.
package routes

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	Index            = "index"
	CreateRestaurant = "create_restaurant"
	AddRestaurant    = "add_restaurant"
	Details          = "details"
	AddReview        = "add_review"
	Health           = "health"
)

var patterns = map[string]string{
	Index:            "/",
	CreateRestaurant: "/create",
	AddRestaurant:    "/add",
	Details:          "/details/:id",
	AddReview:        "/review/:id",
	Health:           "/manage/health",
}

// Pattern returns the gin route pattern registered under name.
func Pattern(name string) string {
	p, ok := patterns[name]
	if !ok {
		panic(fmt.Sprintf("routes: unknown route %q", name))
	}
	return p
}

// Path builds the path of route name. params are key/value pairs, one per
// ":key" segment of the pattern.
func Path(name string, params ...any) (string, error) {
	pattern, ok := patterns[name]
	if !ok {
		return "", fmt.Errorf("unknown route %q", name)
	}
	if len(params)%2 != 0 {
		return "", fmt.Errorf("route %q: odd number of parameters", name)
	}

	values := make(map[string]string, len(params)/2)
	for i := 0; i < len(params); i += 2 {
		key, ok := params[i].(string)
		if !ok {
			return "", fmt.Errorf("route %q: parameter name %v is not a string", name, params[i])
		}
		values[key] = fmt.Sprint(params[i+1])
	}

	segments := strings.Split(pattern, "/")
	used := 0
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		key := seg[1:]
		value, ok := values[key]
		if !ok {
			return "", fmt.Errorf("route %q: missing parameter %q", name, key)
		}
		segments[i] = url.PathEscape(value)
		used++
	}
	if used != len(values) {
		return "", fmt.Errorf("route %q: unexpected parameters", name)
	}
	return strings.Join(segments, "/"), nil
}
