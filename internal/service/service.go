// Package service wires the aggregation, extraction, filtering, and
// notification stages into a single pass per process invocation.
package service

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"robo-offer-alerts/internal/alerting"
	"robo-offer-alerts/internal/offer"
)

// Aggregator is the relay pool surface the orchestrator drives.
type Aggregator interface {
	Connect(ctx context.Context)
	Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
	Close()
}

// Options fix the server-side query and the trailing window.
type Options struct {
	EventKind int
	Currency  string
	Status    string
	Source    string
	Lookback  time.Duration
}

// Service orchestrates one pass: window → query → extract → filter →
// notify → teardown. It holds no state between passes; the dedup
// ledger inside the notifier is the only cross-run memory.
type Service struct {
	opts     Options
	agg      Aggregator
	policy   offer.Policy
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// New constructs the orchestrator.
func New(opts Options, agg Aggregator, policy offer.Policy, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		opts:     opts,
		agg:      agg,
		policy:   policy,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// RunOnce executes a full notification pass anchored at now. Handled
// failures (unreachable relays, malformed events, rejected deliveries)
// are logged and never escalate; the process exits zero either way.
func (s *Service) RunOnce(ctx context.Context, now time.Time) error {
	offers, err := s.collect(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("order query failed; aborting this pass")
		return nil
	}

	delivered := 0
	duplicates := 0
	for _, o := range offers {
		outcome, err := s.notifier.Notify(ctx, o)
		if err != nil {
			s.logger.Error().Err(err).Str("order", o.ID).Msg("failed to dispatch alert")
			continue
		}
		switch outcome {
		case alerting.OutcomeDelivered:
			delivered++
		case alerting.OutcomeDuplicate:
			duplicates++
		}
	}

	s.logger.Info().
		Int("qualifying", len(offers)).
		Int("delivered", delivered).
		Int("duplicates", duplicates).
		Msg("pass complete")
	return nil
}

// Scan runs the query and filter stages without notifying and returns
// the qualifying offers. The dedup ledger is not consulted or touched.
func (s *Service) Scan(ctx context.Context, now time.Time) ([]offer.Offer, error) {
	return s.collect(ctx, now)
}

// collect connects, queries, and reduces events to accepted offers.
// Teardown always runs, including after a query failure.
func (s *Service) collect(ctx context.Context, now time.Time) ([]offer.Offer, error) {
	s.agg.Connect(ctx)
	defer s.agg.Close()

	events, err := s.agg.Query(ctx, s.filter(now))
	if err != nil {
		return nil, err
	}

	var offers []offer.Offer
	for _, ev := range events {
		o, err := offer.Extract(ev)
		if err != nil {
			s.logger.Warn().Err(err).Msg("discarding malformed order event")
			continue
		}
		if !s.policy.Accept(o) {
			continue
		}
		offers = append(offers, o)
	}

	s.logger.Debug().Int("events", len(events)).Int("accepted", len(offers)).Msg("events reduced")
	return offers, nil
}

// filter builds the one logical relay query for the pass. The window
// is recomputed fresh every run; dedup, not the window, prevents
// repeat notifications.
func (s *Service) filter(now time.Time) nostr.Filter {
	since := nostr.Timestamp(now.Add(-s.opts.Lookback).Unix())
	until := nostr.Timestamp(now.Unix())
	return nostr.Filter{
		Kinds: []int{s.opts.EventKind},
		Tags: nostr.TagMap{
			"f": []string{s.opts.Currency},
			"s": []string{s.opts.Status},
			"y": []string{s.opts.Source},
		},
		Since: &since,
		Until: &until,
	}
}
