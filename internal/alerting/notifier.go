package alerting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"robo-offer-alerts/internal/offer"
	"robo-offer-alerts/internal/storage"
)

// Outcome reports what a Notify call did.
type Outcome string

const (
	// OutcomeDelivered means the endpoint accepted the message and the
	// dedup ledger was updated.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeDuplicate means the offer was suppressed without delivery.
	OutcomeDuplicate Outcome = "duplicate"
)

// Notifier pushes one alert per logical offer to an ntfy-compatible
// endpoint, consulting the dedup store before every delivery.
type Notifier interface {
	Notify(ctx context.Context, o offer.Offer) (Outcome, error)
}

// NtfyOptions parameterise the push notifier.
type NtfyOptions struct {
	URL     string
	Title   string
	Tag     string
	Timeout time.Duration
}

// NtfyNotifier delivers rendered offers over plain HTTP POST. The body
// is the message text; Title and Tags headers carry presentation hints.
type NtfyNotifier struct {
	opts   NtfyOptions
	store  *storage.DedupStore
	client *http.Client
	logger zerolog.Logger
}

// NewNtfyNotifier constructs a notifier bound to the run's dedup store.
func NewNtfyNotifier(opts NtfyOptions, store *storage.DedupStore, logger zerolog.Logger) *NtfyNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &NtfyNotifier{
		opts:   opts,
		store:  store,
		client: &http.Client{Timeout: opts.Timeout},
		logger: logger.With().Str("component", "ntfy_notifier").Logger(),
	}
}

// Notify renders the offer and delivers it at most once. A match on
// either the offer ID or the rendered content hash suppresses the
// delivery. Delivery failures leave the ledger untouched so the next
// pass retries the same offer.
func (n *NtfyNotifier) Notify(ctx context.Context, o offer.Offer) (Outcome, error) {
	message := RenderMessage(o)
	hash := messageHash(message)

	if n.store.Seen(o.ID, hash) {
		n.logger.Debug().Str("order", o.ID).Msg("offer already notified; skipping")
		return OutcomeDuplicate, nil
	}

	if err := n.push(ctx, message); err != nil {
		return "", fmt.Errorf("deliver alert for order %s: %w", o.ID, err)
	}

	if err := n.store.Record(o.ID, hash); err != nil {
		// Delivery went out; a persistence failure only risks one
		// duplicate alert after a crash.
		n.logger.Warn().Err(err).Str("order", o.ID).Msg("failed to persist dedup ledger")
	}

	n.logger.Info().Str("order", o.ID).Msg("alert delivered")
	return OutcomeDelivered, nil
}

func (n *NtfyNotifier) push(ctx context.Context, message string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.URL, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	if n.opts.Title != "" {
		req.Header.Set("Title", n.opts.Title)
	}
	if n.opts.Tag != "" {
		req.Header.Set("Tags", n.opts.Tag)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy 响应码异常: %d", resp.StatusCode)
	}
	return nil
}

// RenderMessage builds the fixed three-line alert text.
func RenderMessage(o offer.Offer) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("Valor: R$ %s\n", o.FiatAmountText()))
	builder.WriteString(fmt.Sprintf("Pagamento: %s\n", o.PaymentMethodText()))
	builder.WriteString(fmt.Sprintf("Prêmio: %s%%", o.Premium.String()))
	return builder.String()
}

func messageHash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

var _ Notifier = (*NtfyNotifier)(nil)
