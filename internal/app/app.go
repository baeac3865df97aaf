package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"robo-offer-alerts/internal/alerting"
	"robo-offer-alerts/internal/config"
	"robo-offer-alerts/internal/offer"
	"robo-offer-alerts/internal/relay"
	"robo-offer-alerts/internal/scheduler"
	"robo-offer-alerts/internal/service"
	"robo-offer-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newAggregator() *relay.Aggregator {
	return relay.New(relay.Options{
		Addresses:    a.Config.Relays.Addresses,
		QueryTimeout: a.Config.Relays.QueryTimeout,
	}, a.Logger)
}

func (a *App) newService(notifier alerting.Notifier) *service.Service {
	opts := service.Options{
		EventKind: a.Config.Market.EventKind,
		Currency:  a.Config.Market.Currency,
		Status:    a.Config.Market.Status,
		Source:    a.Config.Market.Source,
		Lookback:  a.Config.Window.Lookback,
	}
	policy := offer.NewPolicy(a.Config.Filter.MaxPremium)
	return service.New(opts, a.newAggregator(), policy, notifier, a.Logger)
}

func (a *App) newNotifier(store *storage.DedupStore) alerting.Notifier {
	return alerting.NewNtfyNotifier(alerting.NtfyOptions{
		URL:     a.Config.Notify.URL,
		Title:   a.Config.Notify.Title,
		Tag:     a.Config.Notify.Tag,
		Timeout: a.Config.Notify.Timeout,
	}, store, a.Logger)
}

// Run executes a single notification pass and exits.
func (a *App) Run(ctx context.Context) error {
	if err := a.Config.RequireNotifyURL(); err != nil {
		return err
	}

	store := storage.Load(a.Config.Dedup.Path, a.Logger)
	svc := a.newService(a.newNotifier(store))

	return svc.RunOnce(ctx, time.Now().UTC())
}

// Watch repeats the single pass on an interval until interrupted.
func (a *App) Watch(ctx context.Context, interval time.Duration) error {
	if err := a.Config.RequireNotifyURL(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := storage.Load(a.Config.Dedup.Path, a.Logger)
	svc := a.newService(a.newNotifier(store))
	sched := scheduler.New(interval, a.Logger)

	a.Logger.Info().Dur("interval", interval).Msg("starting watch loop")
	err := sched.Run(ctx, svc.RunOnce)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}

// Scan prints the qualifying offers without notifying or touching the
// dedup ledger.
func (a *App) Scan(ctx context.Context) error {
	svc := a.newService(nil)

	offers, err := svc.Scan(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scan orders: %w", err)
	}
	if len(offers) == 0 {
		fmt.Fprintln(os.Stdout, "no qualifying offers")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Order\tAmount (BRL)\tPayment\tPremium%")
	for _, o := range offers {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			o.ID,
			o.FiatAmountText(),
			o.PaymentMethodText(),
			o.Premium.String(),
		)
	}
	writer.Flush()
	return nil
}
