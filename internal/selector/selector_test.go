package selector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSelect_SoonestExpiryFirst(t *testing.T) {
	credits := []Candidate{
		{ID: 2, Remaining: d(100), ExpiresAt: base.AddDate(0, 0, 10), IssuedAt: base},
		{ID: 1, Remaining: d(50), ExpiresAt: base.AddDate(0, 0, 2), IssuedAt: base},
	}

	plan := Select(credits, d(70))

	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, uint64(1), plan.Allocations[0].CreditID)
	assert.True(t, plan.Allocations[0].Amount.Equal(d(50)))
	assert.True(t, plan.Allocations[0].Exhausted())

	assert.Equal(t, uint64(2), plan.Allocations[1].CreditID)
	assert.True(t, plan.Allocations[1].Amount.Equal(d(20)))
	assert.True(t, plan.Allocations[1].Remaining.Equal(d(80)))
	assert.False(t, plan.Allocations[1].Exhausted())

	assert.True(t, plan.Covered.Equal(d(70)))
	assert.True(t, plan.Shortfall.IsZero())
}

func TestSelect_TieBreaksOnIssuedAtThenID(t *testing.T) {
	expiry := base.AddDate(0, 0, 5)
	credits := []Candidate{
		{ID: 9, Remaining: d(10), ExpiresAt: expiry, IssuedAt: base.Add(time.Hour)},
		{ID: 7, Remaining: d(10), ExpiresAt: expiry, IssuedAt: base},
		{ID: 3, Remaining: d(10), ExpiresAt: expiry, IssuedAt: base},
	}

	plan := Select(credits, d(25))

	ids := []uint64{}
	for _, a := range plan.Allocations {
		ids = append(ids, a.CreditID)
	}
	assert.Equal(t, []uint64{3, 7, 9}, ids)
	assert.True(t, plan.Allocations[2].Amount.Equal(d(5)))
}

func TestSelect_ShortfallGoesToRealBalance(t *testing.T) {
	credits := []Candidate{{ID: 1, Remaining: d(100000), ExpiresAt: base.AddDate(0, 0, 15), IssuedAt: base}}

	plan := Select(credits, d(120000))

	assert.True(t, plan.Covered.Equal(d(100000)))
	assert.True(t, plan.Shortfall.Equal(d(20000)))
	assert.True(t, plan.Covered.Add(plan.Shortfall).Equal(d(120000)))
}

func TestSelect_StopsOnceCovered(t *testing.T) {
	credits := []Candidate{
		{ID: 1, Remaining: d(50), ExpiresAt: base.AddDate(0, 0, 1), IssuedAt: base},
		{ID: 2, Remaining: d(50), ExpiresAt: base.AddDate(0, 0, 2), IssuedAt: base},
	}

	plan := Select(credits, d(50))

	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, uint64(1), plan.Allocations[0].CreditID)
}

func TestSelect_SkipsEmptyCredits(t *testing.T) {
	credits := []Candidate{
		{ID: 1, Remaining: decimal.Zero, ExpiresAt: base, IssuedAt: base},
		{ID: 2, Remaining: d(30), ExpiresAt: base.AddDate(0, 0, 1), IssuedAt: base},
	}

	plan := Select(credits, d(10))

	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, uint64(2), plan.Allocations[0].CreditID)
}

func TestSelect_NonPositiveAmount(t *testing.T) {
	credits := []Candidate{{ID: 1, Remaining: d(30), ExpiresAt: base, IssuedAt: base}}

	assert.Empty(t, Select(credits, decimal.Zero).Allocations)
	assert.Empty(t, Select(credits, d(-5)).Allocations)
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	credits := []Candidate{
		{ID: 2, Remaining: d(100), ExpiresAt: base.AddDate(0, 0, 10), IssuedAt: base},
		{ID: 1, Remaining: d(50), ExpiresAt: base.AddDate(0, 0, 2), IssuedAt: base},
	}

	_ = Select(credits, d(120))

	assert.Equal(t, uint64(2), credits[0].ID)
	assert.True(t, credits[0].Remaining.Equal(d(100)))
	assert.True(t, credits[1].Remaining.Equal(d(50)))
}

func TestSelect_Deterministic(t *testing.T) {
	credits := []Candidate{
		{ID: 4, Remaining: d(40), ExpiresAt: base.AddDate(0, 0, 3), IssuedAt: base},
		{ID: 5, Remaining: d(15), ExpiresAt: base.AddDate(0, 0, 1), IssuedAt: base},
		{ID: 6, Remaining: d(25), ExpiresAt: base.AddDate(0, 0, 3), IssuedAt: base.Add(-time.Minute)},
	}

	first := Select(credits, d(60))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Select(credits, d(60)))
	}
}

func TestAvailable(t *testing.T) {
	credits := []Candidate{{Remaining: d(10)}, {Remaining: d(5)}, {Remaining: decimal.Zero}}
	assert.True(t, Available(credits).Equal(d(15)))
	assert.True(t, Available(nil).IsZero())
}
