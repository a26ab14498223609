package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"remindbot/pkg/logx"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		AccountSID: "AC0000",
		AuthToken:  "secret",
		Sender:     "whatsapp:+14155238886",
		APIBase:    srv.URL,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Parallel()
	cases := []Config{
		{AuthToken: "t", Sender: "s"},
		{AccountSID: "a", Sender: "s"},
		{AccountSID: "a", AuthToken: "t"},
	}
	for i, cfg := range cases {
		if _, err := NewClient(cfg, logx.Nop()); err == nil {
			t.Errorf("case %d: expected error for incomplete config", i)
		}
	}
}

func TestSendPostsMessageForm(t *testing.T) {
	t.Parallel()
	var gotPath, gotTo, gotFrom, gotBody, gotUser string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))

	if err := c.Send(context.Background(), "whatsapp:+15550001", "⏰ Reminder: pay rent"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/AC0000/Messages.json" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotUser != "AC0000" {
		t.Fatalf("basic auth user = %q", gotUser)
	}
	if gotTo != "whatsapp:+15550001" || gotFrom != "whatsapp:+14155238886" || gotBody != "⏰ Reminder: pay rent" {
		t.Fatalf("form = to %q from %q body %q", gotTo, gotFrom, gotBody)
	}
}

func TestSendClassifiesProviderErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		status    int
		code      int
		want      error
		permanent bool
		fatal     bool
	}{
		{"bad auth", http.StatusUnauthorized, 20003, ErrAuth, false, true},
		{"sender not provisioned", http.StatusBadRequest, 21606, ErrSenderConfig, false, true},
		{"recipient sandbox lapsed", http.StatusBadRequest, 21608, ErrNotOptedIn, true, false},
		{"recipient not opted in", http.StatusBadRequest, 21610, ErrNotOptedIn, true, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprintf(w, `{"code": %d, "message": "provider says no", "status": %d}`, tc.code, tc.status)
			}))
			err := c.Send(context.Background(), "whatsapp:+15550001", "x")
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if Permanent(err) != tc.permanent {
				t.Fatalf("Permanent(err) = %v, want %v", Permanent(err), tc.permanent)
			}
			if Fatal(err) != tc.fatal {
				t.Fatalf("Fatal(err) = %v, want %v", Fatal(err), tc.fatal)
			}
		})
	}
}

func TestSendUnknownErrorStaysTransient(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code": 20429, "message": "too many requests", "status": 429}`)
	}))
	err := c.Send(context.Background(), "whatsapp:+15550001", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if Permanent(err) || Fatal(err) {
		t.Fatalf("unknown code must stay transient, got Permanent=%v Fatal=%v", Permanent(err), Fatal(err))
	}
}

func TestSendNonJSONErrorBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream exploded")
	}))
	err := c.Send(context.Background(), "whatsapp:+15550001", "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if Permanent(err) || Fatal(err) {
		t.Fatal("non-JSON body must classify as transient")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC0000.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	if err := c.Verify(context.Background()); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyBadCredentials(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	err := c.Verify(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}
