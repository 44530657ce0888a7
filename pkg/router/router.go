// Package router implements path dispatch over an explicit list of tagged
// route patterns.
//
// Three kinds of pattern exist:
//
//	Exact   "/health"           matches the path literally
//	Param   "/repos/:id/chat"   matches segment by segment, ":name" captures one segment
//	Prefix  "/api/"             matches any path starting with the pattern
//
// When several routes match, the most specific one wins: exact beats param
// beats prefix; between params, more literal segments win, then more
// segments; between prefixes, the longest pattern wins. Only a complete tie
// falls back to declaration order.
package router

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags how a Route pattern is matched.
type Kind int

const (
	KindExact Kind = iota + 1
	KindParam
	KindPrefix
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindParam:
		return "param"
	case KindPrefix:
		return "prefix"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Route is a named pattern.
type Route struct {
	Name    string
	Kind    Kind
	Pattern string
}

// Exact returns a route matching pattern literally.
func Exact(name, pattern string) Route {
	return Route{Name: name, Kind: KindExact, Pattern: pattern}
}

// Param returns a route with ":name" segment captures.
func Param(name, pattern string) Route {
	return Route{Name: name, Kind: KindParam, Pattern: pattern}
}

// Prefix returns a route matching every path beginning with pattern.
func Prefix(name, pattern string) Route {
	return Route{Name: name, Kind: KindPrefix, Pattern: pattern}
}

// Match is the result of a successful dispatch.
type Match struct {
	Route  Route
	Params map[string]string
}

// Param returns the captured value for name, or "".
func (m Match) Param(name string) string {
	return m.Params[name]
}

type compiled struct {
	route    Route
	segments []string
	literals int
}

// Router selects a Route for a path. It is immutable after New and safe for
// concurrent use.
type Router struct {
	routes []compiled
}

// New validates and compiles routes.
func New(routes ...Route) (*Router, error) {
	r := &Router{routes: make([]compiled, 0, len(routes))}
	names := make(map[string]struct{}, len(routes))

	for _, route := range routes {
		if route.Name == "" {
			return nil, errors.New("route name is required")
		}
		if _, dup := names[route.Name]; dup {
			return nil, fmt.Errorf("duplicate route name %q", route.Name)
		}
		names[route.Name] = struct{}{}

		if !strings.HasPrefix(route.Pattern, "/") {
			return nil, fmt.Errorf("route %q: pattern %q must start with /", route.Name, route.Pattern)
		}

		c := compiled{route: route}
		switch route.Kind {
		case KindExact, KindPrefix:
		case KindParam:
			c.segments = splitPath(route.Pattern)
			seen := map[string]struct{}{}
			for _, seg := range c.segments {
				if !strings.HasPrefix(seg, ":") {
					c.literals++
					continue
				}
				param := seg[1:]
				if param == "" {
					return nil, fmt.Errorf("route %q: empty parameter name", route.Name)
				}
				if _, dup := seen[param]; dup {
					return nil, fmt.Errorf("route %q: duplicate parameter %q", route.Name, param)
				}
				seen[param] = struct{}{}
			}
		default:
			return nil, fmt.Errorf("route %q: unknown kind %s", route.Name, route.Kind)
		}

		r.routes = append(r.routes, c)
	}

	return r, nil
}

// Match returns the most specific route matching path.
func (r *Router) Match(path string) (Match, bool) {
	var (
		best      Match
		bestScore score
		found     bool
	)

	var segments []string
	for _, c := range r.routes {
		var (
			params map[string]string
			ok     bool
		)

		switch c.route.Kind {
		case KindExact:
			ok = path == c.route.Pattern
		case KindPrefix:
			ok = strings.HasPrefix(path, c.route.Pattern)
		case KindParam:
			if segments == nil {
				segments = splitPath(path)
			}
			params, ok = c.bind(segments)
		}
		if !ok {
			continue
		}

		s := c.score()
		if !found || bestScore.less(s) {
			best = Match{Route: c.route, Params: params}
			bestScore = s
			found = true
		}
	}

	return best, found
}

func (c compiled) bind(path []string) (map[string]string, bool) {
	if len(path) != len(c.segments) {
		return nil, false
	}

	params := map[string]string{}
	for i, seg := range c.segments {
		if name, isParam := strings.CutPrefix(seg, ":"); isParam {
			if path[i] == "" {
				return nil, false
			}
			params[name] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return params, true
}

// score orders matches by specificity; larger is more specific.
type score struct {
	kind     int
	literals int
	length   int
}

func (c compiled) score() score {
	switch c.route.Kind {
	case KindExact:
		return score{kind: 3}
	case KindParam:
		return score{kind: 2, literals: c.literals, length: len(c.segments)}
	default:
		return score{kind: 1, length: len(c.route.Pattern)}
	}
}

// less reports whether s is strictly less specific than o.
func (s score) less(o score) bool {
	if s.kind != o.kind {
		return s.kind < o.kind
	}
	if s.literals != o.literals {
		return s.literals < o.literals
	}
	return s.length < o.length
}

func splitPath(p string) []string {
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}
