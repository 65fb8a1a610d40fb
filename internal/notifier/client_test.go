package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNotify_SendsPayload(t *testing.T) {
	var received Notification
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode notification: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	n := Notification{
		Recipient: "p@example.fr",
		Kind:      "sanction-warning",
		Title:     "Avertissement",
		Message:   "aucune mise à jour depuis plus de 45 jours",
		Priority:  PriorityHigh,
		Link:      "/compte/sanctions",
	}
	if err := c.Notify(context.Background(), n); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if path != "/api/notifications" {
		t.Fatalf("path = %q, want /api/notifications", path)
	}
	if received != n {
		t.Fatalf("received = %+v, want %+v", received, n)
	}
}

func TestNotify_RetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	if err := c.Notify(context.Background(), Notification{Recipient: "p@example.fr", Kind: "test"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestNotify_NilClientIsNoop(t *testing.T) {
	var c *Client
	if err := c.Notify(context.Background(), Notification{Kind: "test"}); err != nil {
		t.Fatalf("nil client notify: %v", err)
	}
}

func TestNotify_DefaultsScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	c := NewClient(addr)

	if err := c.Notify(context.Background(), Notification{Recipient: "p@example.fr", Kind: "test"}); err != nil {
		t.Fatalf("notify without scheme: %v", err)
	}
}
