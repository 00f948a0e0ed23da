package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// Matcher joins net order values to PSP settlements using the settlement
// window and amount tolerance rules.
type Matcher struct {
	windowDays int
	tolerance  decimal.Decimal
	bySource   map[string][]model.Settlement
}

// NewMatcher builds a Matcher with an index of settlements keyed by their
// source order reference, so matching one order is independent of the total
// settlement count.
func NewMatcher(windowDays int, tolerance decimal.Decimal, settlements []model.Settlement) *Matcher {
	bySource := make(map[string][]model.Settlement, len(settlements))
	for _, s := range settlements {
		bySource[s.SourceReference] = append(bySource[s.SourceReference], s)
	}
	// Fixed candidate order so tie-breaking never depends on input order.
	for _, list := range bySource {
		sort.Slice(list, func(i, j int) bool {
			if !list[i].Date.Equal(list[j].Date) {
				return list[i].Date.Before(list[j].Date)
			}
			return list[i].ID < list[j].ID
		})
	}
	return &Matcher{windowDays: windowDays, tolerance: tolerance, bySource: bySource}
}

// MatchOutcome is the result of matching one order against the settlement set.
type MatchOutcome struct {
	Settlement   *model.Settlement
	Status       model.MatchStatus
	AmountDiff   decimal.Decimal // net order value - settlement net
	TimeDiffDays int
	// Delayed is set when no settlement fell inside the window but one
	// outside it matches the net value within tolerance. It raises a
	// settlement_delay exception alongside the no_settlement_match outcome.
	Delayed bool
}

// Match finds the settlement for an order's net value. Candidates must
// reference the order and settle within [0, windowDays] of the order date.
// Among multiple candidates the closest amount wins, ties broken by earliest
// settlement date, then settlement ID ascending.
func (m *Matcher) Match(order model.Order, netValue decimal.Decimal) MatchOutcome {
	candidates := m.bySource[order.ID]

	best := -1
	bestDiff := decimal.Zero
	for i, s := range candidates {
		days := daysBetween(order.Date, s.Date)
		if days < 0 || days > m.windowDays {
			continue
		}
		diff := netValue.Sub(s.NetAmount)
		if best == -1 || diff.Abs().LessThan(bestDiff.Abs()) {
			best = i
			bestDiff = diff
		}
	}

	if best == -1 {
		return MatchOutcome{
			Status:     model.StatusNoSettlementMatch,
			AmountDiff: netValue,
			Delayed:    m.hasDelayedMatch(order, netValue, candidates),
		}
	}

	s := candidates[best]
	outcome := MatchOutcome{
		Settlement:   &s,
		AmountDiff:   bestDiff,
		TimeDiffDays: daysBetween(order.Date, s.Date),
	}
	if bestDiff.Abs().LessThanOrEqual(m.tolerance) {
		outcome.Status = model.StatusMatched
	} else {
		outcome.Status = model.StatusUnmatchedAmount
	}
	return outcome
}

// hasDelayedMatch reports whether a settlement outside the window would have
// matched the order by amount. Such settlements do not satisfy the window
// rule, but they point at PSP processing delay rather than missing data.
func (m *Matcher) hasDelayedMatch(order model.Order, netValue decimal.Decimal, candidates []model.Settlement) bool {
	for _, s := range candidates {
		days := daysBetween(order.Date, s.Date)
		if days >= 0 && days <= m.windowDays {
			continue
		}
		if netValue.Sub(s.NetAmount).Abs().LessThanOrEqual(m.tolerance) {
			return true
		}
	}
	return false
}

// daysBetween returns whole calendar days from a to b, negative when b is
// earlier. Both dates are date-only values; partial days are truncated.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
