package codeclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

// fakeMod imitates the CodeClient mod: it accepts one token, grants any
// scope request and acknowledges placements.
type fakeMod struct {
	token string

	mu       sync.Mutex
	received []string
}

func (f *fakeMod) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeMod) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	reply := func(msg string) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg := string(data)
		f.mu.Lock()
		f.received = append(f.received, msg)
		f.mu.Unlock()

		switch {
		case msg == "token":
			reply("token " + f.token)
		case strings.HasPrefix(msg, "token "):
			if strings.TrimPrefix(msg, "token ") == f.token {
				reply("auth")
			} else {
				reply("invalid token")
			}
		case strings.HasPrefix(msg, "scopes "):
			reply("auth")
		case msg == "place go":
			reply("place done")
		}
	}
}

func startMod(t *testing.T) (*fakeMod, string) {
	t.Helper()
	mod := &fakeMod{token: "secret"}
	srv := httptest.NewServer(mod)
	t.Cleanup(srv.Close)
	return mod, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, opts Options) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDialRequestsScopesAndSavesToken(t *testing.T) {
	mod, url := startMod(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	c := dial(t, url, Options{TokenFile: tokenFile})
	c.Close()

	want := []string{"scopes movement write_code", "token"}
	if diff := cmp.Diff(want, mod.log()); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("token file: %v", err)
	}
	if string(data) != "secret" {
		t.Errorf("saved token %q, want secret", data)
	}
}

func TestDialUsesSavedToken(t *testing.T) {
	mod, url := startMod(t)
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := dial(t, url, Options{TokenFile: tokenFile})
	c.Close()

	if diff := cmp.Diff([]string{"token secret"}, mod.log()); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestDialFallsBackOnInvalidToken(t *testing.T) {
	mod, url := startMod(t)
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := dial(t, url, Options{TokenFile: tokenFile, Scopes: []string{"write_code"}})
	c.Close()

	want := []string{"token stale", "scopes write_code", "token"}
	if diff := cmp.Diff(want, mod.log()); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
	data, _ := os.ReadFile(tokenFile)
	if string(data) != "secret" {
		t.Errorf("token file holds %q, want the new token", data)
	}
}

func TestPlaceAndSetMode(t *testing.T) {
	mod, url := startMod(t)
	c := dial(t, url, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.SetMode(ctx, ModeDev); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := c.Place(ctx, []string{"H4sIAAA", "H4sIBBB"}); err != nil {
		t.Fatalf("Place: %v", err)
	}
	if err := c.SetMode(ctx, "spectate"); err == nil {
		t.Error("SetMode accepted an unknown mode")
	}
	c.Close()

	want := []string{
		"scopes movement write_code",
		"token",
		"mode dev",
		"place swap",
		"place H4sIAAA",
		"place H4sIBBB",
		"place go",
	}
	if diff := cmp.Diff(want, mod.log()); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestPlaceHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			// authenticate, then never acknowledge a placement
			if strings.HasPrefix(string(data), "scopes ") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("auth"))
			}
			if string(data) == "token" {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("token t"))
			}
		}
	}))
	defer srv.Close()

	c := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"), Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Place(ctx, []string{"code"}); err == nil {
		t.Fatal("Place returned without an acknowledgement")
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1", Options{}); err == nil {
		t.Fatal("expected a connection error")
	}
}
