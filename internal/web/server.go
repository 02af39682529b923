// Package web serves the public site, the consent and contact APIs, and the
// admin endpoints.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/tysite/internal/analytics"
	"github.com/kalambet/tysite/internal/consent"
	"github.com/kalambet/tysite/internal/contact"
	"github.com/kalambet/tysite/internal/site"
	"github.com/kalambet/tysite/internal/storage"
)

type Deps struct {
	Store   *storage.Store
	Content *site.Content
	// Consent opens the consent store for a visitor scope.
	Consent analytics.StoreFunc
	Gate    *analytics.Gate
	Sender  contact.Sender
	// SubmitTimeout bounds one contact delivery attempt; zero means none.
	SubmitTimeout time.Duration
	AdminToken    string
	SecureCookies bool
	Logger        *slog.Logger
}

// ConsentOpener returns a StoreFunc backed by the visitor scopes in store.
// Every store it opens shares bus.
func ConsentOpener(store *storage.Store, bus *consent.Bus, opts ...consent.Option) analytics.StoreFunc {
	return func(scope string) *consent.Store {
		o := make([]consent.Option, 0, len(opts)+2)
		o = append(o, opts...)
		o = append(o, consent.WithBus(bus), consent.WithScope(scope))
		return consent.NewStore(store.KV(scope), o...)
	}
}

// NewHandler builds the site router.
func NewHandler(deps Deps) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	v, err := newView(deps)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)

	r.Route("/admin", func(r chi.Router) {
		r.Use(BearerAuth(deps.AdminToken))
		r.Get("/inquiries", handleListInquiries(deps))
		r.Get("/inquiries/{id}", handleGetInquiry(deps))
	})

	r.Group(func(r chi.Router) {
		r.Use(Visitor(deps.SecureCookies))

		r.Get("/", v.handleHome)
		r.Get("/leistungen", v.handleServices)
		r.Get("/leistungen/{slug}", v.handleService)
		r.Get("/referenzen", v.handleReferences)
		r.Get("/kontakt", v.handleContactPage)
		r.Post("/kontakt", v.handleContactForm)
		r.Get("/impressum", v.handleStatic("impressum", site.PageMeta{Title: "Impressum", Path: "/impressum", NoIndex: true}))
		r.Get("/datenschutz", v.handleStatic("datenschutz", site.PageMeta{Title: "Datenschutzerklärung", Path: "/datenschutz", NoIndex: true}))

		r.Route("/cookies", func(r chi.Router) {
			r.Post("/accept-all", handleBannerAcceptAll(deps))
			r.Post("/essential-only", handleBannerEssentialOnly(deps))
			r.Post("/save", handleBannerSave(deps))
			r.Post("/reset", handleBannerReset(deps))
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/consent", handleGetConsent(deps))
			r.Post("/consent", handleSetConsent(deps))
			r.Delete("/consent", handleResetConsent(deps))
			r.Post("/consent/accept-all", handleAcceptAll(deps))
			r.Post("/consent/essential-only", handleEssentialOnly(deps))
			r.Post("/contact", handleContactSubmit(deps))
			r.Post("/contact/validate", handleContactValidate(deps))
		})

		r.NotFound(v.handleNotFound)
	})

	return r, nil
}
