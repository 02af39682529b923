package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func title(t *testing.T, doc *html.Node) string {
	t.Helper()
	ts := findAll(doc, element("title"))
	require.Len(t, ts, 1)
	return text(ts[0])
}

func metaContent(doc *html.Node, name string) (string, bool) {
	for _, m := range findAll(doc, element("meta")) {
		if n, _ := attr(m, "name"); n == name {
			return attr(m, "content")
		}
	}
	return "", false
}

func TestPages_Render(t *testing.T) {
	env := setup(t)

	tests := []struct {
		path    string
		title   string
		noindex bool
	}{
		{"/", "TY-Dienstleistung | Hausmeisterservice & Gebäudereinigung", false},
		{"/leistungen", "Leistungen | TY-Dienstleistung", false},
		{"/leistungen/entsorgung", "Entsorgung | TY-Dienstleistung", false},
		{"/referenzen", "Referenzen | TY-Dienstleistung", false},
		{"/kontakt", "Kontakt | TY-Dienstleistung", false},
		{"/impressum", "Impressum | TY-Dienstleistung", true},
		{"/datenschutz", "Datenschutzerklärung | TY-Dienstleistung", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.visitor(t).get(tt.path)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

			doc := parseHTML(t, rr.Body.String())
			assert.Equal(t, tt.title, title(t, doc))

			robots, ok := metaContent(doc, "robots")
			assert.Equal(t, tt.noindex, ok)
			if ok {
				assert.Equal(t, "noindex,nofollow", robots)
			}
		})
	}
}

func TestPages_JSONLD(t *testing.T) {
	env := setup(t)
	doc := parseHTML(t, env.visitor(t).get("/").Body.String())

	var found bool
	for _, s := range findAll(doc, element("script")) {
		if typ, _ := attr(s, "type"); typ != "application/ld+json" {
			continue
		}
		found = true
		var ld map[string]any
		require.NoError(t, json.Unmarshal([]byte(text(s)), &ld))
		assert.Equal(t, "LocalBusiness", ld["@type"])
		assert.Equal(t, "TY-Dienstleistung", ld["name"])
	}
	assert.True(t, found)
}

func TestPages_ReferencesFilter(t *testing.T) {
	env := setup(t)
	v := env.visitor(t)

	articles := func(path string) []*html.Node {
		doc := parseHTML(t, v.get(path).Body.String())
		return findAll(doc, func(n *html.Node) bool {
			c, _ := attr(n, "data-category")
			return n.Type == html.ElementNode && n.Data == "article" && c != ""
		})
	}

	got := articles("/referenzen?kategorie=entsorgung")
	require.Len(t, got, 1)
	cat, _ := attr(got[0], "data-category")
	assert.Equal(t, "entsorgung", cat)

	assert.Len(t, articles("/referenzen?kategorie=all"), 4)
	assert.Len(t, articles("/referenzen?kategorie=unbekannt"), 4)
	assert.Len(t, articles("/referenzen"), 4)
}

func TestPages_NotFound(t *testing.T) {
	env := setup(t)
	v := env.visitor(t)

	for _, path := range []string{"/gibt-es-nicht", "/leistungen/fensterputzen"} {
		rr := v.get(path)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		doc := parseHTML(t, rr.Body.String())
		robots, _ := metaContent(doc, "robots")
		assert.Equal(t, "noindex,nofollow", robots)
	}
}

func TestPages_BannerCarriesReturnPath(t *testing.T) {
	env := setup(t)
	doc := parseHTML(t, env.visitor(t).get("/referenzen?kategorie=entsorgung").Body.String())

	banner := findByID(doc, "cookie-banner")
	require.NotNil(t, banner)
	for _, in := range findAll(banner, element("input")) {
		if name, _ := attr(in, "name"); name == "return" {
			val, _ := attr(in, "value")
			assert.Equal(t, "/referenzen?kategorie=entsorgung", val)
		}
	}
	assert.True(t, strings.Contains(text(banner), "Ihre Privatsphäre ist uns wichtig"))
}
