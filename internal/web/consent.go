package web

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/kalambet/tysite/internal/consent"
)

type consentResponse struct {
	HasMadeChoice bool             `json:"hasMadeChoice"`
	Consent       *consent.Details `json:"consent"`
	Analytics     bool             `json:"analytics"`
}

func consentState(deps Deps, r *http.Request) consentResponse {
	scope := VisitorID(r.Context())
	resp := consentResponse{}
	if d, ok := deps.Consent(scope).Details(); ok {
		resp.HasMadeChoice = true
		resp.Consent = &d
	}
	if deps.Gate != nil {
		resp.Analytics = deps.Gate.Enabled(scope)
	}
	return resp
}

func visitorConsent(deps Deps, r *http.Request) *consent.Store {
	return deps.Consent(VisitorID(r.Context()))
}

func handleGetConsent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, consentState(deps, r))
	}
}

func handleSetConsent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var body map[string]bool
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		partial := make(map[consent.Category]bool, len(body))
		for name, v := range body {
			c, err := consent.ParseCategory(name)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			partial[c] = v
		}

		if !visitorConsent(deps, r).Set(partial) {
			httpError(w, http.StatusServiceUnavailable, "storage_error", "consent could not be saved")
			return
		}
		writeJSON(w, http.StatusOK, consentState(deps, r))
	}
}

func handleResetConsent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitorConsent(deps, r).Reset()
		writeJSON(w, http.StatusOK, consentState(deps, r))
	}
}

func handleAcceptAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !visitorConsent(deps, r).AcceptAll() {
			httpError(w, http.StatusServiceUnavailable, "storage_error", "consent could not be saved")
			return
		}
		writeJSON(w, http.StatusOK, consentState(deps, r))
	}
}

func handleEssentialOnly(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !visitorConsent(deps, r).AcceptEssentialOnly() {
			httpError(w, http.StatusServiceUnavailable, "storage_error", "consent could not be saved")
			return
		}
		writeJSON(w, http.StatusOK, consentState(deps, r))
	}
}

// Banner form posts. Each one redirects back to the page it came from; a
// failed save leaves the banner up on that page.

func handleBannerAcceptAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitorConsent(deps, r).AcceptAll()
		redirectBack(w, r)
	}
}

func handleBannerEssentialOnly(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitorConsent(deps, r).AcceptEssentialOnly()
		redirectBack(w, r)
	}
}

func handleBannerSave(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid form: %v", err)
			return
		}
		partial := make(map[consent.Category]bool)
		for _, c := range consent.AllCategories {
			if c == consent.Essential {
				continue
			}
			partial[c] = r.PostForm.Get(c.String()) != ""
		}
		visitorConsent(deps, r).Set(partial)
		redirectBack(w, r)
	}
}

func handleBannerReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitorConsent(deps, r).Reset()
		redirectBack(w, r)
	}
}

func redirectBack(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

// returnPath picks a local redirect target from the "return" form field or
// the Referer header, falling back to the home page.
func returnPath(r *http.Request) string {
	if p := r.FormValue("return"); isLocalPath(p) {
		return p
	}
	if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Host == r.Host {
			p := u.EscapedPath()
			if u.RawQuery != "" {
				p += "?" + u.RawQuery
			}
			if isLocalPath(p) {
				return p
			}
		}
	}
	return "/"
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
