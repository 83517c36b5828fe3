// Package selector plans how a debit is spread across a customer's active
// virtual credits. It does no I/O and never mutates its input, so the
// consumption policy can be checked without a database.
//
// Credits are consumed soonest-expiring first; ties break on issue time and
// then on id, which makes a plan fully deterministic.
package selector

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candidate is the slice of a credit row the planner needs.
type Candidate struct {
	ID        uint64
	Remaining decimal.Decimal
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Allocation is the amount to take from one credit.
type Allocation struct {
	CreditID  uint64
	Amount    decimal.Decimal
	Remaining decimal.Decimal // left on the credit after this allocation
}

// Exhausted reports whether the allocation empties the credit.
func (a Allocation) Exhausted() bool {
	return a.Remaining.IsZero()
}

type Plan struct {
	Allocations []Allocation
	// Covered is the part of the requested amount paid from credits.
	Covered decimal.Decimal
	// Shortfall is what is left for the real balance.
	Shortfall decimal.Decimal
}

// Less orders two candidates for consumption.
func Less(a, b Candidate) bool {
	if !a.ExpiresAt.Equal(b.ExpiresAt) {
		return a.ExpiresAt.Before(b.ExpiresAt)
	}
	if !a.IssuedAt.Equal(b.IssuedAt) {
		return a.IssuedAt.Before(b.IssuedAt)
	}
	return a.ID < b.ID
}

// Order returns a sorted copy of cs.
func Order(cs []Candidate) []Candidate {
	out := make([]Candidate, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Select walks the ordered credits and takes from each until amount is
// covered. Credits with nothing remaining are skipped.
func Select(cs []Candidate, amount decimal.Decimal) Plan {
	plan := Plan{Covered: decimal.Zero, Shortfall: decimal.Zero}
	if amount.LessThanOrEqual(decimal.Zero) {
		return plan
	}

	outstanding := amount
	for _, c := range Order(cs) {
		if outstanding.IsZero() {
			break
		}
		if c.Remaining.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(c.Remaining, outstanding)
		plan.Allocations = append(plan.Allocations, Allocation{
			CreditID:  c.ID,
			Amount:    take,
			Remaining: c.Remaining.Sub(take),
		})
		plan.Covered = plan.Covered.Add(take)
		outstanding = outstanding.Sub(take)
	}
	plan.Shortfall = outstanding
	return plan
}

// Available sums the remaining amount across cs.
func Available(cs []Candidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		if c.Remaining.GreaterThan(decimal.Zero) {
			total = total.Add(c.Remaining)
		}
	}
	return total
}
