package tasklinesdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEventsDecodeWireShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"events":[
			{"id":2,"ts":"2024-01-01T00:00:00Z","type":"task.assigned","project_id":"proj-1","entity_kind":"task","entity_id":"prjtask-proj-1-abc","actor_id":"alice","payload_json":"{\"assignee\":\"bob\"}"},
			{"id":1,"ts":"2024-01-01T00:00:00Z","type":"task.created","entity_kind":"task","entity_id":"prjtask-proj-1-abc","actor_id":"alice","payload_json":"{}"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	events, err := c.Events(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d", len(events))
	}

	first := events[0]
	if first.Type != "task.assigned" || first.ActorID != "alice" {
		t.Fatalf("event = %+v", first)
	}
	if first.PayloadJSON == "" {
		t.Fatal("payload_json not decoded")
	}
	payload, err := first.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if payload["assignee"] != "bob" {
		t.Fatalf("payload = %v", payload)
	}

	empty, err := events[1].Payload()
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("empty payload = %v", empty)
	}
}
