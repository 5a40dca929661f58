package guard

import (
	"net/url"

	"github.com/MrEthical07/authclient"
)

// ReturnURLParam is the query key carrying the originally requested path.
const ReturnURLParam = "returnUrl"

// Route declares the protection of one route.
type Route struct {
	// RequireAuth runs the authentication guard.
	RequireAuth bool
	// Roles runs the role guard when non-empty.
	Roles []string
	// RequireAll selects all-of matching. Default is any-of.
	RequireAll bool
}

// Decision is the outcome of a guard. A zero Decision allows entry.
type Decision struct {
	Redirect string
	Query    url.Values
}

// Allowed reports whether the route may be entered.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Allow is the permitting Decision.
var Allow = Decision{}

// Auth allows authenticated sessions. Anonymous sessions are sent to the
// login route with target as return URL.
func Auth(s authclient.Session, redirects authclient.RedirectsConfig, target string) Decision {
	if s.IsAuthenticated() {
		return Allow
	}
	var q url.Values
	if target != "" {
		q = url.Values{ReturnURLParam: {target}}
	}
	return Decision{Redirect: redirects.Login, Query: q}
}

// Role checks route.Roles against the session. Anonymous sessions go to the
// login route without a return URL; a failed match goes to the
// unauthorized route.
func Role(s authclient.Session, redirects authclient.RedirectsConfig, route Route) Decision {
	if !s.IsAuthenticated() {
		return Decision{Redirect: redirects.Login}
	}
	if len(route.Roles) == 0 || !s.RolesEnabled() {
		return Allow
	}

	ok := s.HasAnyRole(route.Roles...)
	if route.RequireAll {
		ok = s.HasAllRoles(route.Roles...)
	}
	if ok {
		return Allow
	}
	return Decision{Redirect: redirects.Unauthorized}
}

// Evaluate runs the guards route declares, authentication first. The first
// redirect wins.
func Evaluate(s authclient.Session, redirects authclient.RedirectsConfig, route Route, target string) Decision {
	if route.RequireAuth {
		if d := Auth(s, redirects, target); !d.Allowed() {
			return d
		}
	}
	if len(route.Roles) > 0 {
		if d := Role(s, redirects, route); !d.Allowed() {
			return d
		}
	}
	return Allow
}

// Follow navigates to the decision's redirect. It reports whether entry was
// allowed.
func Follow(nav authclient.Navigator, d Decision) bool {
	if d.Allowed() {
		return true
	}
	nav.Navigate(d.Redirect, d.Query)
	return false
}

// Enter evaluates route against the Manager's current session and follows
// the decision on its Navigator.
func Enter(m *authclient.Manager, route Route, target string) bool {
	d := Evaluate(m.Session(), m.Config().Redirects, route, target)
	return Follow(m.Navigator(), d)
}
