package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/tysite/internal/consent"
	"github.com/kalambet/tysite/internal/contact"
	"github.com/kalambet/tysite/internal/site"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{"home", "services", "service", "references", "contact", "impressum", "datenschutz", "notfound"}

// pageData is what every template receives. Page handlers fill the
// page-specific fields; render fills the rest.
type pageData struct {
	Meta    site.Meta
	JSONLD  template.JS
	Company site.Company
	Path    string
	Year    int

	ShowBanner bool
	Choices    []choice
	Analytics  bool

	Services       []site.Service
	Service        site.Service
	References     []site.Reference
	Categories     []site.ReferenceCategory
	ActiveCategory string

	Form        contact.Form
	FieldErrors map[string]string
	SubmitError string
	Sent        bool
}

// choice is one checkbox in the cookie settings dialog.
type choice struct {
	Name     string
	Label    string
	Hint     string
	Checked  bool
	Required bool
}

var bannerCategories = []struct {
	category consent.Category
	hint     string
}{
	{consent.Essential, "Notwendig für die grundlegende Funktionalität der Website. Ohne diese Cookies kann die Website nicht richtig funktionieren."},
	{consent.Preferences, "Speichern Ihre Einstellungen wie Sprache oder Region für ein verbessertes Erlebnis."},
	{consent.Statistics, "Helfen uns zu verstehen, wie Besucher mit der Website interagieren, indem sie Informationen anonym sammeln."},
}

func choices(cats consent.Categories) []choice {
	out := make([]choice, 0, len(bannerCategories))
	for _, bc := range bannerCategories {
		out = append(out, choice{
			Name:     bc.category.String(),
			Label:    bc.category.Label(),
			Hint:     bc.hint,
			Checked:  cats.Get(bc.category),
			Required: bc.category == consent.Essential,
		})
	}
	return out
}

type view struct {
	deps  Deps
	pages map[string]*template.Template
}

func newView(deps Deps) (*view, error) {
	if deps.Content == nil {
		return nil, errors.New("web: site content is required")
	}
	v := &view{deps: deps, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout").ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

func (v *view) render(w http.ResponseWriter, r *http.Request, status int, page string, meta site.PageMeta, data pageData) {
	scope := VisitorID(r.Context())
	store := v.deps.Consent(scope)

	data.Meta = v.deps.Content.Head(meta)
	data.JSONLD = template.JS(data.Meta.JSONLD)
	data.Company = v.deps.Content.Company
	data.Path = r.URL.RequestURI()
	data.Year = time.Now().Year()
	cats := consent.DefaultCategories()
	if rec, ok := store.Get(); ok {
		cats = rec.Categories
	} else {
		data.ShowBanner = true
	}
	data.Choices = choices(cats)
	if v.deps.Gate != nil {
		data.Analytics = v.deps.Gate.Enabled(scope)
	}

	var buf bytes.Buffer
	if err := v.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		v.deps.Logger.Error("rendering page", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (v *view) handleHome(w http.ResponseWriter, r *http.Request) {
	v.render(w, r, http.StatusOK, "home", site.PageMeta{Path: "/"}, pageData{
		Services:   v.deps.Content.Services,
		References: v.deps.Content.FeaturedReferences(),
	})
}

func (v *view) handleServices(w http.ResponseWriter, r *http.Request) {
	v.render(w, r, http.StatusOK, "services", site.PageMeta{
		Title:       "Leistungen",
		Description: "Hausmeisterservice, Gebäudereinigung, Entrümpelung und Entsorgung aus einer Hand.",
		Path:        "/leistungen",
	}, pageData{Services: v.deps.Content.Services})
}

func (v *view) handleService(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	s, ok := v.deps.Content.ServiceBySlug(slug)
	if !ok {
		v.handleNotFound(w, r)
		return
	}
	v.render(w, r, http.StatusOK, "service", site.PageMeta{
		Title:       s.Title,
		Description: s.ShortDescription,
		Path:        "/leistungen/" + s.Slug,
		Image:       s.Image,
	}, pageData{Service: s})
}

func (v *view) handleReferences(w http.ResponseWriter, r *http.Request) {
	active := r.URL.Query().Get("kategorie")
	if !v.deps.Content.HasReferenceCategory(active) {
		active = site.AllCategoryID
	}
	v.render(w, r, http.StatusOK, "references", site.PageMeta{
		Title:       "Referenzen",
		Description: "Ausgewählte Projekte aus Velbert und Umgebung.",
		Path:        "/referenzen",
	}, pageData{
		References:     v.deps.Content.ReferencesByCategory(active),
		Categories:     v.deps.Content.ReferenceCategories,
		ActiveCategory: active,
	})
}

var contactMeta = site.PageMeta{
	Title:       "Kontakt",
	Description: "Kontaktieren Sie TY-Dienstleistung für ein unverbindliches Angebot.",
	Path:        "/kontakt",
}

func (v *view) handleContactPage(w http.ResponseWriter, r *http.Request) {
	v.render(w, r, http.StatusOK, "contact", contactMeta, pageData{})
}

func (v *view) handleContactForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid form: %v", err)
		return
	}

	s, err := submitContact(v.deps, r, formFromRequest(r))
	sv := s.View()
	data := pageData{Form: sv.Form, SubmitError: sv.SubmitError}

	status := http.StatusOK
	switch {
	case errors.Is(err, contact.ErrInvalid):
		status = http.StatusUnprocessableEntity
		data.FieldErrors = make(map[string]string, len(sv.Errors))
		for f, msg := range sv.Errors {
			data.FieldErrors[string(f)] = msg
		}
	case err != nil:
		status = http.StatusServiceUnavailable
	default:
		data.Sent = true
		data.Form = contact.Form{}
	}
	v.render(w, r, status, "contact", contactMeta, data)
}

func (v *view) handleStatic(page string, meta site.PageMeta) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v.render(w, r, http.StatusOK, page, meta, pageData{})
	}
}

func (v *view) handleNotFound(w http.ResponseWriter, r *http.Request) {
	v.render(w, r, http.StatusNotFound, "notfound", site.PageMeta{
		Title:   "Seite nicht gefunden",
		Path:    r.URL.Path,
		NoIndex: true,
	}, pageData{})
}
