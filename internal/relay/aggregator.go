// Package relay aggregates one-shot order queries across a set of
// independent, unreliable Nostr relays.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
)

// Conn is the slice of a relay connection the aggregator needs.
// *nostr.Relay satisfies it.
type Conn interface {
	QuerySync(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
	Close() error
}

// DialFunc establishes a connection to a single relay address.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// NostrDial connects over the wire protocol via go-nostr.
func NostrDial(ctx context.Context, url string) (Conn, error) {
	return nostr.RelayConnect(ctx, url)
}

// Options parameterise the aggregator.
type Options struct {
	Addresses    []string
	QueryTimeout time.Duration
	Dial         DialFunc
}

// Aggregator fans a query out to every reachable relay and merges the
// results into one event set keyed by event ID.
type Aggregator struct {
	opts   Options
	logger zerolog.Logger

	mu    sync.Mutex
	conns map[string]Conn
}

// New constructs an aggregator. Connections are established by Connect.
func New(opts Options, logger zerolog.Logger) *Aggregator {
	if opts.Dial == nil {
		opts.Dial = NostrDial
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	return &Aggregator{
		opts:   opts,
		logger: logger.With().Str("component", "relay_aggregator").Logger(),
		conns:  make(map[string]Conn),
	}
}

// Connect dials every configured relay concurrently. Individual
// failures are logged and the relay is left out of the pool; they
// never abort the pass.
func (a *Aggregator) Connect(ctx context.Context) {
	var wg sync.WaitGroup
	for _, addr := range a.opts.Addresses {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			conn, err := a.opts.Dial(ctx, addr)
			if err != nil {
				a.logger.Warn().Err(err).Str("relay", addr).Msg("relay unreachable; excluded from this pass")
				return
			}
			a.mu.Lock()
			a.conns[addr] = conn
			a.mu.Unlock()
			a.logger.Debug().Str("relay", addr).Msg("relay connected")
		}(addr)
	}
	wg.Wait()
	a.logger.Info().Int("connected", a.Connected()).Int("configured", len(a.opts.Addresses)).Msg("relay pool ready")
}

// Connected returns the number of live relay connections.
func (a *Aggregator) Connected() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// Query issues one logical filter against the whole pool and returns
// the union of results, collapsing events returned by more than one
// relay. It fails only when no relay could serve the query at all.
func (a *Aggregator) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	a.mu.Lock()
	conns := make(map[string]Conn, len(a.conns))
	for addr, conn := range a.conns {
		conns[addr] = conn
	}
	a.mu.Unlock()

	if len(conns) == 0 {
		return nil, errors.New("no relays reachable")
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.QueryTimeout)
	defer cancel()

	type relayResult struct {
		addr   string
		events []*nostr.Event
		err    error
	}

	results := make(chan relayResult, len(conns))
	var wg sync.WaitGroup
	for addr, conn := range conns {
		wg.Add(1)
		go func(addr string, conn Conn) {
			defer wg.Done()
			events, err := conn.QuerySync(ctx, filter)
			results <- relayResult{addr: addr, events: events, err: err}
		}(addr, conn)
	}
	wg.Wait()
	close(results)

	merged := make(map[string]struct{})
	var events []*nostr.Event
	succeeded := 0
	for res := range results {
		if res.err != nil {
			a.logger.Warn().Err(res.err).Str("relay", res.addr).Msg("relay query failed")
			continue
		}
		succeeded++
		for _, ev := range res.events {
			if _, dup := merged[ev.ID]; dup {
				continue
			}
			merged[ev.ID] = struct{}{}
			events = append(events, ev)
		}
	}

	if succeeded == 0 {
		return nil, errors.New("every relay query failed")
	}

	a.logger.Debug().Int("events", len(events)).Int("relays_ok", succeeded).Msg("queries merged")
	return events, nil
}

// Close tears down every connection independently. Close failures are
// logged and never propagated; teardown must not fail a pass.
func (a *Aggregator) Close() {
	a.mu.Lock()
	conns := a.conns
	a.conns = make(map[string]Conn)
	a.mu.Unlock()

	var wg sync.WaitGroup
	for addr, conn := range conns {
		wg.Add(1)
		go func(addr string, conn Conn) {
			defer wg.Done()
			if err := conn.Close(); err != nil {
				a.logger.Warn().Err(err).Str("relay", addr).Msg("relay close failed")
			}
		}(addr, conn)
	}
	wg.Wait()
}
