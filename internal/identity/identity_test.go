package identity

import (
	"context"
	"errors"
	"testing"
)

func TestHub_PublishInOrder(t *testing.T) {
	var h Hub
	var got []string

	h.Subscribe(func(_ context.Context, e Event) error {
		if in, ok := e.(SignedIn); ok {
			got = append(got, "first:"+in.Identity.UID)
		}
		return nil
	})
	h.Subscribe(func(_ context.Context, e Event) error {
		switch ev := e.(type) {
		case SignedIn:
			got = append(got, "second:"+ev.Identity.UID)
		case SignedOut:
			got = append(got, "out:"+ev.UserID)
		}
		return nil
	})

	if err := h.Publish(context.Background(), SignedIn{Identity: Identity{UID: "github:42"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := h.Publish(context.Background(), SignedOut{UserID: "u1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"first:github:42", "second:github:42", "out:u1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	var h Hub
	calls := 0
	unsub := h.Subscribe(func(context.Context, Event) error { calls++; return nil })

	_ = h.Publish(context.Background(), SignedOut{})
	unsub()
	unsub() // second call is a no-op
	_ = h.Publish(context.Background(), SignedOut{})

	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers = %d, want 0", h.Subscribers())
	}
}

func TestHub_ErrorStopsDelivery(t *testing.T) {
	var h Hub
	boom := errors.New("db down")
	reached := false
	h.Subscribe(func(context.Context, Event) error { return boom })
	h.Subscribe(func(context.Context, Event) error { reached = true; return nil })

	if err := h.Publish(context.Background(), SignedIn{}); !errors.Is(err, boom) {
		t.Errorf("Publish err = %v, want %v", err, boom)
	}
	if reached {
		t.Error("later handlers must not run after an error")
	}
}
