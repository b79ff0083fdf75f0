package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishChangeDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(Change{Resource: "annotation", Kind: Created, Data: map[string]any{"node_type": "material", "id": 7}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: annotation.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":7`) || !strings.Contains(s, `"node_type":"material"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChangeTreeThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange(Change{Resource: "layout", Kind: Saved})
	b.PublishChange(Change{Resource: "annotation", Kind: Deleted})

	time.Sleep(50 * time.Millisecond)
	treeCount, changeCount := 0, 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "clusters.updated") {
				treeCount++
			} else {
				changeCount++
			}
		default:
			break loop
		}
	}
	if changeCount != 2 {
		t.Errorf("change events = %d, want 2", changeCount)
	}
	if treeCount != 1 {
		t.Errorf("clusters.updated events = %d, want 1 (throttled)", treeCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "layout.updated", Data: map[string]string{"file": "acids.json"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: layout.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	b.Publish(Event{Type: "layout.updated"})
	b.PublishChange(Change{Resource: "layout", Kind: Updated})
}

func TestEncode(t *testing.T) {
	raw, err := Encode(0, Event{Type: "x.y", Data: map[string]int{"n": 1}})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "event: x.y\ndata: {\"n\":1}\n\n" {
		t.Errorf("frame = %q", raw)
	}
	raw, _ = Encode(7, Event{Type: "x.y", Data: map[string]int{"n": 1}})
	if !strings.HasPrefix(string(raw), "id: 7\nevent: x.y\n") {
		t.Errorf("frame with id = %q", raw)
	}
}

func TestSubscribeFromReplaysMissedFrames(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	first := b.Subscribe()
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	b.Publish(Event{Type: "c"})
	for i := 0; i < 3; i++ {
		select {
		case <-first:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for live frames")
		}
	}
	b.Unsubscribe(first)

	late := b.SubscribeFrom(1)
	defer b.Unsubscribe(late)
	var got []string
	for i := 0; i < 2; i++ {
		select {
		case msg := <-late:
			got = append(got, string(msg))
		case <-time.After(time.Second):
			t.Fatalf("replayed %d frames, want 2", len(got))
		}
	}
	if !strings.HasPrefix(got[0], "id: 2\nevent: b") || !strings.HasPrefix(got[1], "id: 3\nevent: c") {
		t.Errorf("replay = %q", got)
	}
	select {
	case msg := <-late:
		t.Errorf("unexpected extra frame %q", msg)
	default:
	}
}

func TestSSEHandlerHonoursLastEventID(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	b.Publish(Event{Type: "old"})
	b.Publish(Event{Type: "new"})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	body := w.Body.String()
	if strings.Contains(body, "event: old") || !strings.Contains(body, "id: 2\nevent: new") {
		t.Errorf("body = %q", body)
	}
}
