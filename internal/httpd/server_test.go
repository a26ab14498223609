package httpd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"remindbot/pkg/logx"
)

type echoResponder struct {
	lastFrom string
	lastBody string
	reply    string
}

func (e *echoResponder) Handle(_ context.Context, recipient, text string) string {
	e.lastFrom, e.lastBody = recipient, text
	return e.reply
}

type fakeHealth struct {
	running bool
	last    time.Time
}

func (f fakeHealth) Running() bool        { return f.running }
func (f fakeHealth) LastSweep() time.Time { return f.last }

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRepliesWithXML(t *testing.T) {
	t.Parallel()
	resp := &echoResponder{reply: "Okay, I'll remind you at 15:30 call mom ✅"}
	s := New(Config{}, resp, fakeHealth{running: true}, logx.Nop())

	rec := postForm(t, s.Routes(), url.Values{
		"From": {"whatsapp:+15550001"},
		"Body": {"remind me at 15:30 call mom"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<Response><Message>") || !strings.Contains(body, "call mom") {
		t.Fatalf("unexpected reply body: %q", body)
	}
	if resp.lastFrom != "whatsapp:+15550001" || resp.lastBody != "remind me at 15:30 call mom" {
		t.Fatalf("responder got from=%q body=%q", resp.lastFrom, resp.lastBody)
	}
}

func TestWebhookEscapesReply(t *testing.T) {
	t.Parallel()
	resp := &echoResponder{reply: `see <b>this</b> & that`}
	s := New(Config{}, resp, fakeHealth{running: true}, logx.Nop())

	rec := postForm(t, s.Routes(), url.Values{"From": {"+1"}, "Body": {"x"}})
	body := rec.Body.String()
	if strings.Contains(body, "<b>") {
		t.Fatalf("reply not XML-escaped: %q", body)
	}
	if !strings.Contains(body, "&lt;b&gt;") {
		t.Fatalf("expected escaped markup in %q", body)
	}
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &echoResponder{}, fakeHealth{running: true}, logx.Nop())

	cases := []url.Values{
		{},
		{"From": {"+1"}},
		{"Body": {"hi"}},
		{"From": {"   "}, "Body": {"hi"}},
	}
	for _, form := range cases {
		rec := postForm(t, s.Routes(), form)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("form %v: status = %d, want 400", form, rec.Code)
		}
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &echoResponder{}, fakeHealth{running: true}, logx.Nop())

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthzReflectsFiringLoop(t *testing.T) {
	t.Parallel()
	last := time.Now().Truncate(time.Second)

	s := New(Config{}, &echoResponder{}, fakeHealth{running: true, last: last}, logx.Nop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var h struct {
		Status    string `json:"status"`
		Firing    bool   `json:"firing_loop"`
		LastSweep string `json:"last_sweep"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" || !h.Firing || h.LastSweep == "" {
		t.Fatalf("healthy payload = %+v", h)
	}

	s = New(Config{}, &echoResponder{}, fakeHealth{running: false}, logx.Nop())
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("degraded body = %q", rec.Body.String())
	}
}
