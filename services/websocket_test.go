package services

import (
	"encoding/json"
	"testing"
	"time"

	"callbridge/models"
)

func registerClient(t *testing.T, hub *WebSocketHub, callID string) *Client {
	t.Helper()
	c := &Client{ID: callID + "-watcher", CallID: callID, Send: make(chan []byte, 4), Hub: hub}
	select {
	case hub.Register <- c:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept registration")
	}
	return c
}

func TestHubBroadcastsToSubscribedCallOnly(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	watcher := registerClient(t, hub, "CA1")
	other := registerClient(t, hub, "CA2")

	update := models.TranscriptUpdate{Type: "transcript_update", CallID: "CA1"}
	hub.Broadcast("CA1", update)

	select {
	case data := <-watcher.Send:
		var got models.TranscriptUpdate
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.CallID != "CA1" || got.Type != "transcript_update" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribed client received nothing")
	}

	select {
	case data := <-other.Send:
		t.Fatalf("client for CA2 received %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()

	watcher := registerClient(t, hub, "CA1")
	select {
	case hub.Unregister <- watcher:
	case <-time.After(time.Second):
		t.Fatal("hub did not accept unregistration")
	}

	select {
	case _, ok := <-watcher.Send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}

	// A broadcast after unregistration goes nowhere and must not panic.
	hub.Broadcast("CA1", models.TranscriptUpdate{CallID: "CA1"})
}
