package offer

import "github.com/shopspring/decimal"

// Policy decides whether an extracted offer is worth notifying about.
// Currency, status, and source are matched server-side by the relay
// query; only side and premium are checked here.
type Policy struct {
	MaxPremium decimal.Decimal
}

// NewPolicy builds a policy with the given premium ceiling.
func NewPolicy(maxPremium float64) Policy {
	return Policy{MaxPremium: decimal.NewFromFloat(maxPremium)}
}

// Accept reports whether the offer passes the notification policy.
// The premium bound is inclusive.
func (p Policy) Accept(o Offer) bool {
	if o.Side != SideSell {
		return false
	}
	return !o.Premium.GreaterThan(p.MaxPremium)
}
