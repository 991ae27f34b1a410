package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestHTTPMissingFeedURL(t *testing.T) {
	h := NewHTTP(HTTPOptions{}, noopLogger())
	if _, err := h.FetchOpportunities(context.Background()); err == nil {
		t.Fatal("missing feed url should error")
	}
}

func TestHTTPErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{FeedURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := h.FetchOpportunities(context.Background()); err == nil {
		t.Fatal("HTTP 403 should error")
	}
}

func TestHTTPFetchEnvelope(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"opportunities": []map[string]any{
				{"id": "o1", "title": "Acme", "value": 150000, "stage": "keep"},
			},
		})
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{FeedURL: srv.URL, APIToken: "secret", Timeout: time.Second}, noopLogger())
	opps, err := h.FetchOpportunities(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(opps) != 1 || opps[0].ID != "o1" {
		t.Fatalf("unexpected opportunities: %#v", opps)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("token should be sent as bearer auth, got %q", gotAuth)
	}
}

func TestHTTPFetchBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"o1","value":80000,"stage":"acquire"}]`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{FeedURL: srv.URL, Timeout: time.Second}, noopLogger())
	opps, err := h.FetchOpportunities(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(opps) != 1 || opps[0].Stage != "acquire" {
		t.Fatalf("unexpected opportunities: %#v", opps)
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opps.json")
	content := `{"opportunities":[{"id":"o1","title":"Acme","value":150000,"stage":"keep"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	f := NewFile(path, noopLogger())
	opps, err := f.FetchOpportunities(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(opps) != 1 || opps[0].Title != "Acme" {
		t.Fatalf("unexpected opportunities: %#v", opps)
	}

	missing := NewFile(filepath.Join(t.TempDir(), "absent.json"), noopLogger())
	if _, err := missing.FetchOpportunities(context.Background()); err == nil {
		t.Fatal("missing file should error")
	}
}
