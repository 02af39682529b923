package web

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// VisitorCookie holds the visitor id that scopes consent storage.
const VisitorCookie = "ty_visitor"

const visitorCookieMaxAge = 400 * 24 * time.Hour

type visitorKey struct{}

// Visitor ensures every request carries a visitor id, issuing a new cookie
// when the request has none or an invalid one.
func Visitor(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(VisitorCookie); err == nil {
				if u, err := uuid.Parse(c.Value); err == nil {
					id = u.String()
				}
			}
			if id == "" {
				id = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(visitorCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey{}, id)))
		})
	}
}

// VisitorID returns the id set by the Visitor middleware.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}
