package panel

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type panelStub struct {
	logins     int
	addCalls   int
	lastEntry  clientEntry
	failLogin  bool
	authExpire bool
}

func newPanelServer(t *testing.T, stub *panelStub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse login form: %v", err)
		}
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		stub.logins++
		if stub.failLogin {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1"})
	})
	mux.HandleFunc("/panel/api/inbounds/", func(w http.ResponseWriter, r *http.Request) {
		if stub.authExpire {
			stub.authExpire = false
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		stub.addCalls++

		raw, _ := io.ReadAll(r.Body)
		var req addClientRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		var settings clientSettings
		if err := json.Unmarshal([]byte(req.Settings), &settings); err != nil {
			t.Fatalf("failed to decode settings: %v", err)
		}
		if len(settings.Clients) != 1 {
			t.Fatalf("expected 1 client entry, got %d", len(settings.Clients))
		}
		stub.lastEntry = settings.Clients[0]

		json.NewEncoder(w).Encode(panelResponse{Success: true})
	})
	return httptest.NewServer(mux)
}

func TestCreateCredentialRegistersClient(t *testing.T) {
	stub := &panelStub{}
	srv := newPanelServer(t, stub)
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "secret")
	cred, err := c.CreateCredential(context.Background(), 42, 1700000000000, "user42")
	if err != nil {
		t.Fatalf("CreateCredential returned error: %v", err)
	}

	if stub.logins != 1 {
		t.Errorf("expected exactly one login, got %d", stub.logins)
	}
	if stub.lastEntry.TgID != 42 {
		t.Errorf("expected tgId 42, got %d", stub.lastEntry.TgID)
	}
	if stub.lastEntry.ExpiryTime != 1700000000000 {
		t.Errorf("expected expiry 1700000000000, got %d", stub.lastEntry.ExpiryTime)
	}
	if !stub.lastEntry.Enable {
		t.Error("expected client to be enabled")
	}
	if cred.ClientID != stub.lastEntry.ID {
		t.Errorf("credential client id %q does not match registered id %q", cred.ClientID, stub.lastEntry.ID)
	}
	if len(cred.SubID) != 16 {
		t.Errorf("expected 16-char subId, got %q", cred.SubID)
	}
	if !strings.HasPrefix(cred.ConnectionString, "vless://"+cred.ClientID+"@") {
		t.Errorf("unexpected connection string %q", cred.ConnectionString)
	}
}

func TestSessionIsReusedAcrossCalls(t *testing.T) {
	stub := &panelStub{}
	srv := newPanelServer(t, stub)
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "secret")
	ctx := context.Background()

	cred, err := c.CreateCredential(ctx, 1, 1700000000000, "a")
	if err != nil {
		t.Fatalf("CreateCredential returned error: %v", err)
	}
	if err := c.UpdateCredential(ctx, cred.ClientID, 1, "a", cred.SubID, 1800000000000); err != nil {
		t.Fatalf("UpdateCredential returned error: %v", err)
	}

	if stub.logins != 1 {
		t.Errorf("expected the session to be reused, got %d logins", stub.logins)
	}
	if stub.lastEntry.ExpiryTime != 1800000000000 {
		t.Errorf("expected updated expiry, got %d", stub.lastEntry.ExpiryTime)
	}
}

func TestExpiredSessionTriggersReloginAndRetry(t *testing.T) {
	stub := &panelStub{authExpire: true}
	srv := newPanelServer(t, stub)
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "secret")
	_, err := c.CreateCredential(context.Background(), 7, 1700000000000, "b")
	if err != nil {
		t.Fatalf("CreateCredential returned error: %v", err)
	}

	if stub.logins != 2 {
		t.Errorf("expected re-login after auth failure, got %d logins", stub.logins)
	}
	if stub.addCalls != 1 {
		t.Errorf("expected the request to be retried once, got %d calls", stub.addCalls)
	}
}

func TestLoginFailurePropagates(t *testing.T) {
	stub := &panelStub{failLogin: true}
	srv := newPanelServer(t, stub)
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "secret")
	if _, err := c.CreateCredential(context.Background(), 7, 1700000000000, "c"); err == nil {
		t.Fatal("expected error when login fails")
	}
}

func TestPingRelogsIn(t *testing.T) {
	stub := &panelStub{}
	srv := newPanelServer(t, stub)
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "secret")
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if stub.logins != 2 {
		t.Errorf("expected Ping to force a fresh login each time, got %d", stub.logins)
	}
}
