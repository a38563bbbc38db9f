package server

import (
	"html/template"
	"net/http"
)

// The API serves a JSON-first web client; these two pages exist so the
// access guard redirects land somewhere sensible when the SPA is not mounted.

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.AppName}}</title></head>
<body>
<h1>{{.AppName}}</h1>
<p>Signed in as {{.DisplayName}}.</p>
</body>
</html>
`))

var signInTemplate = template.Must(template.New("signin").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in - {{.AppName}}</title></head>
<body>
<h1>Sign in</h1>
<p>Use the app client or POST credentials to {{.LoginPath}}.</p>
</body>
</html>
`))

// HomeHandler renders the landing page for an authenticated user.
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		displayName := ""
		if claims != nil {
			displayName = claims.DisplayName
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = homeTemplate.Execute(w, map[string]string{
			"AppName":     s.config.GetAppName(),
			"DisplayName": displayName,
		})
	}
}

// SignInPageHandler renders the sign-in page.
func (s *Server) SignInPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = signInTemplate.Execute(w, map[string]string{
			"AppName":   s.config.GetAppName(),
			"LoginPath": RouteAPILogin,
		})
	}
}
