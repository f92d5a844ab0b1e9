package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"typofix/src/config"
	"typofix/src/history"
	"typofix/src/logutil"
)

type testEnv struct {
	srv   *Server
	http  *httptest.Server
	store *config.Store
	db    *history.DB
}

func newTestEnv(t *testing.T, lister ModelLister, withHistory bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store := config.NewStore(filepath.Join(dir, "settings.json"))
	opts := Options{Settings: store, ListModels: lister, Logger: logutil.Discard()}

	var db *history.DB
	if withHistory {
		var err error
		db, err = history.Open(filepath.Join(dir, "history.db"))
		if err != nil {
			t.Fatalf("history.Open: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		opts.History = db
	}

	srv := NewServer(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, http: ts, store: store, db: db}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestGetSettingsMasksKey(t *testing.T) {
	env := newTestEnv(t, nil, false)
	st := config.DefaultSettings()
	st.APIKey = "AIzaSyExample1234567890"
	if err := env.store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, body := env.do(t, http.MethodGet, "/api/settings", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["has_api_key"] != true || body["api_key_masked"] != "AIza...7890" {
		t.Errorf("unexpected key fields: %v", body)
	}
	if _, leaked := body["api_key"]; leaked {
		t.Error("raw api_key present in response")
	}
	if body["model"] != "gemini-2.5-flash" || body["show_duck"] != true {
		t.Errorf("defaults not served: %v", body)
	}
}

func TestPutSettingsPartialUpdate(t *testing.T) {
	env := newTestEnv(t, nil, false)
	st := config.DefaultSettings()
	st.APIKey = "original-key-123"
	st.Preprompt = "Keep me"
	if err := env.store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	resp, body := env.do(t, http.MethodPut, "/api/settings", `{"turbo_mode":true,"model":"gemini-2.5-pro","api_key":""}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["turbo_mode"] != true || body["model"] != "gemini-2.5-pro" {
		t.Errorf("response = %v", body)
	}

	got, err := env.store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.APIKey != "original-key-123" {
		t.Errorf("empty api_key overwrote stored key: %q", got.APIKey)
	}
	if got.Preprompt != "Keep me" || !got.TurboMode || got.Model != "gemini-2.5-pro" {
		t.Errorf("stored settings = %+v", got)
	}
}

func TestPutSettingsRejectsBadBody(t *testing.T) {
	env := newTestEnv(t, nil, false)
	resp, _ := env.do(t, http.MethodPut, "/api/settings", `{"turbo_mode":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/settings", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", resp.StatusCode)
	}
}

func TestModels(t *testing.T) {
	var gotKey string
	lister := func(_ context.Context, apiKey string) ([]string, error) {
		gotKey = apiKey
		if apiKey == "bad" {
			return nil, errors.New("API key not valid")
		}
		return []string{"gemini-2.5-flash", "gemini-2.5-pro"}, nil
	}
	env := newTestEnv(t, lister, false)

	resp, body := env.do(t, http.MethodGet, "/api/models", "")
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "API key not set" {
		t.Errorf("without key: %d %v", resp.StatusCode, body)
	}

	st := config.DefaultSettings()
	st.APIKey = "good"
	_ = env.store.Save(st)
	resp, body = env.do(t, http.MethodGet, "/api/models", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	models, _ := body["models"].([]any)
	if len(models) != 2 || gotKey != "good" || body["current"] != "gemini-2.5-flash" {
		t.Errorf("body = %v, key %q", body, gotKey)
	}

	st.APIKey = "bad"
	_ = env.store.Save(st)
	resp, body = env.do(t, http.MethodGet, "/api/models", "")
	if resp.StatusCode != http.StatusBadGateway || body["error"] != "API key not valid" {
		t.Errorf("bad key: %d %v", resp.StatusCode, body)
	}
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, nil, false)
	_, body := env.do(t, http.MethodGet, "/api/history", "")
	if body["enabled"] != false {
		t.Errorf("history without store: %v", body)
	}

	env = newTestEnv(t, nil, true)
	for i := 0; i < 3; i++ {
		err := env.db.SaveRun(&history.Run{
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
			Model:     "gemini-2.5-flash", Source: "hotkey", Success: true, DurationMs: 100,
		})
		if err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	resp, body := env.do(t, http.MethodGet, "/api/history?limit=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	runs, _ := body["runs"].([]any)
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
	stats, _ := body["stats"].(map[string]any)
	if stats["total_runs"] != float64(3) {
		t.Errorf("stats = %v", stats)
	}
}

func TestIndexServed(t *testing.T) {
	env := newTestEnv(t, nil, false)
	resp, err := http.Get(env.http.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("index: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestWebSocketStatusBroadcast(t *testing.T) {
	env := newTestEnv(t, nil, false)
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.srv.BroadcastStatus("running", "Fixing text...")

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string        `json:"type"`
		Data StatusMessage `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != MessageTypeStatus || msg.Data.Status != "running" || msg.Data.Message != "Fixing text..." {
		t.Errorf("message = %+v", msg)
	}

	_, body := env.do(t, http.MethodGet, "/api/status", "")
	if body["status"] != "running" {
		t.Errorf("last status = %v", body)
	}
}

func TestSameHostOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://127.0.0.1:49610", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:49610/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := sameHostOrigin(r); got != tt.want {
			t.Errorf("origin %q: got %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestStartAndShutdown(t *testing.T) {
	store := config.NewStore(filepath.Join(t.TempDir(), "settings.json"))
	srv := NewServer(Options{Addr: "127.0.0.1:0", Settings: store, Logger: logutil.Discard()})
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Skipf("listener unavailable: %v", err)
	}
	if !strings.HasPrefix(srv.URL(), "http://127.0.0.1:") {
		t.Errorf("URL = %q", srv.URL())
	}
	resp, err := http.Get(srv.URL() + "api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	cancel()
	srv.Shutdown()
}
