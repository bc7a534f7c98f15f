package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestSendOfferCreated(t *testing.T) {
	var got OfferEvent

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/events/offer-created" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	event := OfferEvent{
		OfferID:       uuid.New(),
		CustomerPhone: "79990001122",
		RewardType:    "FREE_WASH",
		RewardValue:   "FREE",
	}

	client := NewClient(srv.URL)
	if err := client.SendOfferCreated(context.Background(), event); err != nil {
		t.Fatalf("SendOfferCreated() error = %v", err)
	}

	if got != event {
		t.Fatalf("server received %+v, want %+v", got, event)
	}
}

func TestSendOfferRedeemed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.SendOfferRedeemed(context.Background(), OfferEvent{}); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestUnconfiguredClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.SendOfferCreated(context.Background(), OfferEvent{}); err != nil {
		t.Fatalf("nil client must be a no-op, got %v", err)
	}

	empty := NewClient("")
	if err := empty.SendOfferRedeemed(context.Background(), OfferEvent{}); err != nil {
		t.Fatalf("empty address must be a no-op, got %v", err)
	}
}
