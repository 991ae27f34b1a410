package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramSinkDelivers(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	sink := NewTelegramSink("token", "chat", srv.URL, time.Second, zerolog.Nop())
	sink.Warning(context.Background(), "Deal closing soon", "Acme renewal (o1) expected to close in 3 days")

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "Deal closing soon") {
		t.Fatalf("text should carry the title, got %q", received["text"])
	}
	if !strings.Contains(received["text"], "o1") {
		t.Fatalf("text should carry the description, got %q", received["text"])
	}
}

func TestTelegramSinkSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	sink := NewTelegramSink("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := sink.send(context.Background(), "hello"); err == nil {
		t.Fatal("ok=false should be reported as an error")
	}

	// The sink surface itself must swallow the failure.
	sink.Info(context.Background(), "title", "description")
}

func TestAlertCovers(t *testing.T) {
	now := time.Now()
	withKey := New(TypeRevenueMilestone, "100000", "Milestone", "Closed revenue passed $100000", SeveritySuccess, now)
	if !withKey.Covers(TypeRevenueMilestone, "100000") {
		t.Fatal("structured key should match")
	}
	if withKey.Covers(TypeDealRisk, "100000") {
		t.Fatal("key matching is scoped to the alert type")
	}

	legacy := Alert{Type: TypeRevenueMilestone, Message: "Closed revenue passed $100000"}
	if !legacy.Covers(TypeRevenueMilestone, "100000") {
		t.Fatal("alerts without a structured key should match by message substring")
	}
}
