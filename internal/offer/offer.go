package offer

import (
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/shopspring/decimal"
)

// Side classifies which direction of the trade an order advertises.
type Side string

const (
	SideSell  Side = "sell"
	SideBuy   Side = "buy"
	SideOther Side = "other"
)

// Offer is the typed view of a classified-ad order event.
type Offer struct {
	ID             string
	Side           Side
	Premium        decimal.Decimal
	FiatAmounts    []decimal.Decimal
	PaymentMethods []string
}

// Tag names carried by kind-38383 order events.
const (
	tagSide           = "k"
	tagPremium        = "premium"
	tagFiatAmount     = "fa"
	tagPaymentMethods = "pm"
)

// Extract parses an order event's tag set into an Offer. Each of the
// four order tags is required; any missing or unparseable value fails
// the whole event. When a tag name repeats, the first occurrence wins.
func Extract(ev *nostr.Event) (Offer, error) {
	side, ok := firstTag(ev.Tags, tagSide)
	if !ok || len(side) == 0 {
		return Offer{}, fmt.Errorf("event %s: missing %q tag", ev.ID, tagSide)
	}

	premiumRaw, ok := firstTag(ev.Tags, tagPremium)
	if !ok || len(premiumRaw) == 0 {
		return Offer{}, fmt.Errorf("event %s: missing %q tag", ev.ID, tagPremium)
	}
	premium, err := decimal.NewFromString(premiumRaw[0])
	if err != nil {
		return Offer{}, fmt.Errorf("event %s: premium %q is not numeric", ev.ID, premiumRaw[0])
	}

	fiatRaw, ok := firstTag(ev.Tags, tagFiatAmount)
	if !ok || len(fiatRaw) == 0 {
		return Offer{}, fmt.Errorf("event %s: missing %q tag", ev.ID, tagFiatAmount)
	}
	amounts, err := parseFiatAmounts(fiatRaw)
	if err != nil {
		return Offer{}, fmt.Errorf("event %s: %w", ev.ID, err)
	}

	methods, ok := firstTag(ev.Tags, tagPaymentMethods)
	if !ok || len(methods) == 0 {
		return Offer{}, fmt.Errorf("event %s: missing %q tag", ev.ID, tagPaymentMethods)
	}

	return Offer{
		ID:             ev.ID,
		Side:           parseSide(side[0]),
		Premium:        premium,
		FiatAmounts:    amounts,
		PaymentMethods: methods,
	}, nil
}

// firstTag returns the values of the first tag named name.
func firstTag(tags nostr.Tags, name string) ([]string, bool) {
	for _, tag := range tags {
		if len(tag) > 0 && tag[0] == name {
			return tag[1:], true
		}
	}
	return nil, false
}

func parseSide(raw string) Side {
	switch raw {
	case "sell":
		return SideSell
	case "buy":
		return SideBuy
	default:
		return SideOther
	}
}

func parseFiatAmounts(raw []string) ([]decimal.Decimal, error) {
	if len(raw) != 1 && len(raw) != 2 {
		return nil, fmt.Errorf("fiat amount has %d values, want 1 or 2", len(raw))
	}
	amounts := make([]decimal.Decimal, 0, len(raw))
	for _, v := range raw {
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("fiat amount %q is not numeric", v)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("fiat amount %q is negative", v)
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}

// FiatAmountText renders the amount as a two-decimal string, or a
// "low a high" range when the order carries both bounds.
func (o Offer) FiatAmountText() string {
	if len(o.FiatAmounts) == 2 {
		return o.FiatAmounts[0].StringFixed(2) + " a " + o.FiatAmounts[1].StringFixed(2)
	}
	return o.FiatAmounts[0].StringFixed(2)
}

// PaymentMethodText joins the accepted payment methods for display.
func (o Offer) PaymentMethodText() string {
	return strings.Join(o.PaymentMethods, " ou ")
}
