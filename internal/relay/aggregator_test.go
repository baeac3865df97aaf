package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
)

type fakeConn struct {
	events   []*nostr.Event
	queryErr error
	closeErr error
	closed   bool
}

func (f *fakeConn) QuerySync(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.events, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return f.closeErr
}

func fakeDialer(conns map[string]*fakeConn, dialErr map[string]error) DialFunc {
	return func(ctx context.Context, url string) (Conn, error) {
		if err, ok := dialErr[url]; ok {
			return nil, err
		}
		return conns[url], nil
	}
}

func event(id string) *nostr.Event {
	return &nostr.Event{ID: id, Kind: 38383}
}

func newAggregator(t *testing.T, addrs []string, dial DialFunc) *Aggregator {
	t.Helper()
	return New(Options{Addresses: addrs, QueryTimeout: time.Second, Dial: dial}, zerolog.Nop())
}

func TestConnectToleratesUnreachableRelay(t *testing.T) {
	conns := map[string]*fakeConn{
		"wss://a": {events: []*nostr.Event{event("ev1")}},
		"wss://b": {events: []*nostr.Event{event("ev2")}},
	}
	dial := fakeDialer(conns, map[string]error{"wss://down": errors.New("connection refused")})

	agg := newAggregator(t, []string{"wss://a", "wss://down", "wss://b"}, dial)
	agg.Connect(context.Background())

	if agg.Connected() != 2 {
		t.Fatalf("connected = %d, want 2", agg.Connected())
	}

	events, err := agg.Query(context.Background(), nostr.Filter{})
	if err != nil {
		t.Fatalf("query should succeed with remaining relays: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
}

func TestQueryCollapsesDuplicateEventIDs(t *testing.T) {
	conns := map[string]*fakeConn{
		"wss://a": {events: []*nostr.Event{event("ev1"), event("ev2")}},
		"wss://b": {events: []*nostr.Event{event("ev2"), event("ev3")}},
	}
	agg := newAggregator(t, []string{"wss://a", "wss://b"}, fakeDialer(conns, nil))
	agg.Connect(context.Background())

	events, err := agg.Query(context.Background(), nostr.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("merged events = %d, want 3 distinct IDs", len(events))
	}
}

func TestQueryToleratesPartialFailure(t *testing.T) {
	conns := map[string]*fakeConn{
		"wss://a": {queryErr: errors.New("sub failed")},
		"wss://b": {events: []*nostr.Event{event("ev1")}},
	}
	agg := newAggregator(t, []string{"wss://a", "wss://b"}, fakeDialer(conns, nil))
	agg.Connect(context.Background())

	events, err := agg.Query(context.Background(), nostr.Filter{})
	if err != nil {
		t.Fatalf("one failing relay should not fail the query: %v", err)
	}
	if len(events) != 1 || events[0].ID != "ev1" {
		t.Fatalf("events = %v, want [ev1]", events)
	}
}

func TestQueryFailsWhenNothingReachable(t *testing.T) {
	agg := newAggregator(t, []string{"wss://down"}, fakeDialer(nil, map[string]error{"wss://down": errors.New("refused")}))
	agg.Connect(context.Background())

	if _, err := agg.Query(context.Background(), nostr.Filter{}); err == nil {
		t.Fatal("query with zero connected relays should fail")
	}
}

func TestQueryFailsWhenEveryRelayErrors(t *testing.T) {
	conns := map[string]*fakeConn{
		"wss://a": {queryErr: errors.New("boom")},
		"wss://b": {queryErr: errors.New("boom")},
	}
	agg := newAggregator(t, []string{"wss://a", "wss://b"}, fakeDialer(conns, nil))
	agg.Connect(context.Background())

	if _, err := agg.Query(context.Background(), nostr.Filter{}); err == nil {
		t.Fatal("query should fail when every relay errors")
	}
}

func TestCloseClosesEveryConnection(t *testing.T) {
	conns := map[string]*fakeConn{
		"wss://a": {closeErr: errors.New("already closed")},
		"wss://b": {},
	}
	agg := newAggregator(t, []string{"wss://a", "wss://b"}, fakeDialer(conns, nil))
	agg.Connect(context.Background())

	agg.Close()

	for addr, conn := range conns {
		if !conn.closed {
			t.Fatalf("relay %s was not closed", addr)
		}
	}
	if agg.Connected() != 0 {
		t.Fatal("close should empty the pool")
	}
}
