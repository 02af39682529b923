package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/tysite/internal/config"
	"github.com/kalambet/tysite/internal/consent"
	"github.com/kalambet/tysite/internal/contact"
	"github.com/kalambet/tysite/internal/storage"
)

func init() {
	noColor = true
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestInquiriesList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /admin/inquiries": `[
			{"id":"9b2f4c1e-0000-4000-8000-000000000001","created_at":"2026-05-01T09:00:00Z","name":"Jo","email":"a@b.de","message":"Bitte um\nein Angebot","status":"queued"},
			{"id":"short","created_at":"2026-05-02T10:30:00Z","name":"Ali","email":"ali@example.de","message":"Danke","status":"delivered"}
		]`,
	})

	list, err := ts.client().listInquiries(ctx, 20, 40)
	if err != nil {
		t.Fatalf("listInquiries: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 inquiries, got %d", len(list))
	}

	req := ts.requests[0]
	if req.Path != "/admin/inquiries?limit=20&offset=40" {
		t.Errorf("unexpected path %q", req.Path)
	}
	if req.Auth != "Bearer test-token" {
		t.Errorf("unexpected auth header %q", req.Auth)
	}

	var out bytes.Buffer
	writeInquiries(&out, list)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "9b2f4c1e  2026-05-01 09:00  queued") {
		t.Errorf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[0], "Bitte um ein Angebot") {
		t.Errorf("message should be flattened to one line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "short") {
		t.Errorf("short ids should not be truncated: %q", lines[1])
	}
}

func TestInquiriesList_Empty(t *testing.T) {
	var out bytes.Buffer
	writeInquiries(&out, nil)
	if !strings.Contains(out.String(), "No inquiries found.") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestInquiriesShow_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	_, err := ts.client().getInquiry(ctx, "missing")
	if err == nil {
		t.Fatal("expected error for missing inquiry")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status in error, got %v", err)
	}
	if ts.requests[0].Path != "/admin/inquiries/missing" {
		t.Errorf("unexpected path %q", ts.requests[0].Path)
	}
}

func TestInquiriesShow(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /admin/inquiries/abc": `{"id":"abc","name":"Jo","email":"a@b.de","message":"1234567890","status":"queued"}`,
	})

	q, err := ts.client().getInquiry(ctx, "abc")
	if err != nil {
		t.Fatalf("getInquiry: %v", err)
	}
	if q.Name != "Jo" || q.Status != "queued" {
		t.Errorf("unexpected inquiry %+v", q)
	}
}

func TestParseCategoryArgs(t *testing.T) {
	got, err := parseCategoryArgs([]string{"statistics=true", "marketing = false"})
	if err != nil {
		t.Fatalf("parseCategoryArgs: %v", err)
	}
	if !got[consent.Statistics] || got[consent.Marketing] {
		t.Errorf("unexpected result %v", got)
	}
	if _, ok := got[consent.Preferences]; ok {
		t.Error("preferences should be absent when not named")
	}

	for _, bad := range []string{"statistics", "tracking=true", "statistics=vielleicht"} {
		if _, err := parseCategoryArgs([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestWriteConsent(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	s := consent.NewStore(store.KV("visitor-1"),
		consent.WithScope("visitor-1"),
		consent.WithLocation(time.UTC),
		consent.WithClock(consent.ClockFunc(func() time.Time { return now })),
	)

	var out bytes.Buffer
	writeConsent(&out, s)
	if !strings.Contains(out.String(), "visitor-1: no consent recorded") {
		t.Errorf("unexpected output before choice: %q", out.String())
	}

	if !s.Set(map[consent.Category]bool{consent.Statistics: true}) {
		t.Fatal("Set failed")
	}
	out.Reset()
	writeConsent(&out, s)
	text := out.String()
	if !strings.Contains(text, "recorded 09.03.2026") {
		t.Errorf("expected German date, got %q", text)
	}
	if !strings.Contains(text, "statistics") || !strings.Contains(text, "Statistik") {
		t.Errorf("expected category rows, got %q", text)
	}

	scopes, err := store.Scopes(consent.DefaultKey)
	if err != nil {
		t.Fatalf("Scopes: %v", err)
	}
	if len(scopes) != 1 || scopes[0] != "visitor-1" {
		t.Errorf("unexpected scopes %v", scopes)
	}
}

func TestNewSender(t *testing.T) {
	cfg := config.Config{Contact: config.ContactConfig{Mode: config.ContactModeSimulate, SubmitDelay: time.Second}}
	sim, ok := newSender(cfg, nil).(contact.SimulatedSender)
	if !ok {
		t.Fatalf("simulate mode should use SimulatedSender")
	}
	if sim.Delay != time.Second {
		t.Errorf("expected delay 1s, got %v", sim.Delay)
	}

	cfg.Contact.Mode = config.ContactModeQueue
	if _, ok := newSender(cfg, nil).(contact.QueueSender); !ok {
		t.Errorf("queue mode should use QueueSender")
	}
}

func TestLocalURL(t *testing.T) {
	tests := map[string]string{
		"":          "http://127.0.0.1:8080",
		"0.0.0.0":   "http://127.0.0.1:8080",
		"127.0.0.1": "http://127.0.0.1:8080",
		"::1":       "http://[::1]:8080",
	}
	for host, want := range tests {
		cfg := config.Config{Server: config.ServerConfig{Host: host, Port: 8080}}
		if got := localURL(cfg); got != want {
			t.Errorf("localURL(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(filepath.Join(t.TempDir(), "data"))
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile: %v", err)
	}
	if pid <= 0 {
		t.Errorf("unexpected pid %d", pid)
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}

func TestCountLabel(t *testing.T) {
	if got := countLabel(5, 100); got != "5" {
		t.Errorf("got %q", got)
	}
	if got := countLabel(100, 100); got != "100+" {
		t.Errorf("got %q", got)
	}
}

func TestQueueStatsAndJobs(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.EnqueueJob(storage.Job{ID: "job-a", Type: contact.DeliverJobType, PayloadJSON: `{}`, MaxAttempts: 1})
	store.EnqueueJob(storage.Job{ID: "job-b", Type: contact.DeliverJobType, PayloadJSON: `{}`})
	store.FailJob("job-a", "webhook returned status 502")

	var out bytes.Buffer
	if err := writeQueueStats(&out, store); err != nil {
		t.Fatalf("writeQueueStats: %v", err)
	}
	if got := out.String(); got != "schema 1  pending 1  running 0  completed 0  failed 1\n" {
		t.Errorf("unexpected stats %q", got)
	}

	failed, err := store.ListJobs("failed", 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	out.Reset()
	writeJobs(&out, failed)
	if !strings.HasPrefix(out.String(), "job-a  failed     1/1") || !strings.Contains(out.String(), "status 502") {
		t.Errorf("unexpected job line %q", out.String())
	}

	if err := store.RetryJob("job-a"); err != nil {
		t.Fatalf("RetryJob: %v", err)
	}
	out.Reset()
	writeQueueStats(&out, store)
	if !strings.Contains(out.String(), "pending 2") || !strings.Contains(out.String(), "failed 0") {
		t.Errorf("unexpected stats after retry %q", out.String())
	}

	out.Reset()
	writeJobs(&out, nil)
	if !strings.Contains(out.String(), "No jobs found.") {
		t.Errorf("unexpected output %q", out.String())
	}
}
