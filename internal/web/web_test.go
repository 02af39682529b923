package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/kalambet/tysite/internal/analytics"
	"github.com/kalambet/tysite/internal/consent"
	"github.com/kalambet/tysite/internal/contact"
	"github.com/kalambet/tysite/internal/site"
	"github.com/kalambet/tysite/internal/storage"
)

const testToken = "admin-token-123"

type testEnv struct {
	handler http.Handler
	store   *storage.Store
	bus     *consent.Bus
	gate    *analytics.Gate
	sender  *stubSender
}

type stubSender struct {
	mu    sync.Mutex
	err   error
	forms []contact.Form
	next  contact.Sender
}

func (s *stubSender) Send(ctx context.Context, f contact.Form) error {
	s.mu.Lock()
	s.forms = append(s.forms, f)
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.next != nil {
		return s.next.Send(ctx, f)
	}
	return nil
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	content, err := site.Default()
	require.NoError(t, err)

	bus := &consent.Bus{}
	open := ConsentOpener(store, bus)
	gate := analytics.NewGate(bus, open, nil)
	t.Cleanup(gate.Close)

	sender := &stubSender{next: contact.QueueSender{Store: store}}
	h, err := NewHandler(Deps{
		Store:      store,
		Content:    content,
		Consent:    open,
		Gate:       gate,
		Sender:     sender,
		AdminToken: testToken,
	})
	require.NoError(t, err)

	return &testEnv{handler: h, store: store, bus: bus, gate: gate, sender: sender}
}

// visitor is a cookie-carrying browser session against the handler.
type visitor struct {
	t      *testing.T
	env    *testEnv
	cookie *http.Cookie
}

func (e *testEnv) visitor(t *testing.T) *visitor {
	return &visitor{t: t, env: e}
}

func (v *visitor) do(req *http.Request) *httptest.ResponseRecorder {
	v.t.Helper()
	if v.cookie != nil {
		req.AddCookie(v.cookie)
	}
	rr := httptest.NewRecorder()
	v.env.handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == VisitorCookie {
			v.cookie = c
		}
	}
	return rr
}

func (v *visitor) get(path string) *httptest.ResponseRecorder {
	return v.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (v *visitor) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	return v.do(newFormRequest(path, form))
}

func newFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (v *visitor) postJSON(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return v.do(req)
}

func (v *visitor) id() string {
	require.NotNil(v.t, v.cookie, "no visitor cookie issued")
	return v.cookie.Value
}

func parseHTML(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findByID(c, id); f != nil {
			return f
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	if match(n) {
		out = append(out, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, findAll(c, match)...)
	}
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func element(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == tag }
}

func TestHealth(t *testing.T) {
	env := setup(t)
	rr := env.visitor(t).get("/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestVisitor_IssuesAndKeepsCookie(t *testing.T) {
	env := setup(t)
	v := env.visitor(t)

	rr := v.get("/")
	require.Equal(t, http.StatusOK, rr.Code)
	first := v.id()
	assert.True(t, v.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, v.cookie.SameSite)

	rr = v.get("/")
	assert.Empty(t, rr.Result().Cookies(), "valid cookie is not reissued")
	assert.Equal(t, first, v.id())
}

func TestVisitor_ReplacesInvalidCookie(t *testing.T) {
	env := setup(t)
	v := env.visitor(t)
	v.cookie = &http.Cookie{Name: VisitorCookie, Value: "not-a-uuid"}

	v.get("/")
	assert.NotEqual(t, "not-a-uuid", v.id())
}

func TestNewHandler_RequiresContent(t *testing.T) {
	_, err := NewHandler(Deps{})
	assert.Error(t, err)
}
