package guard

import (
	"net/http"
	"net/url"

	"github.com/MrEthical07/authclient"
)

// SessionSource yields the session a request is evaluated against.
// *authclient.Manager satisfies it.
type SessionSource interface {
	Session() authclient.Session
}

// Middleware protects an http.Handler with route. Denied requests get a
// 303 See Other to the decision's redirect; the request URI is the return
// URL.
func Middleware(src SessionSource, redirects authclient.RedirectsConfig, route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Redirect(w, r, redirects.Login, http.StatusSeeOther)
				return
			}

			d := Evaluate(src.Session(), redirects, route, r.URL.RequestURI())
			if d.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, location(d), http.StatusSeeOther)
		})
	}
}

func location(d Decision) string {
	if len(d.Query) == 0 {
		return d.Redirect
	}
	u := url.URL{Path: d.Redirect, RawQuery: d.Query.Encode()}
	return u.String()
}
