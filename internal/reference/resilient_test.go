package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
)

func TestResilientGatewayPassesThrough(t *testing.T) {
	next := newCountingGateway()
	next.ppo["591262719|73722|"] = decimal.NewFromFloat(850.00)
	next.categories["73722"] = "imaging"
	g := NewResilientGateway(next, 0, newQuietLogger())
	ctx := context.Background()

	rate, found, err := g.PPORate(ctx, "591262719", "73722", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, rate.Equal(decimal.NewFromFloat(850.00)))

	category, found, err := g.CategoryFor(ctx, "73722")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "imaging", category)

	// Not-found stays a clean not-found, not an error.
	_, found, err = g.Provider(ctx, "ORD-missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = g.Order(ctx, "ORD-missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResilientGatewayBreakerOpensAfterFailures(t *testing.T) {
	next := newCountingGateway()
	next.failWith = errors.New("connection refused")
	g := NewResilientGateway(next, 0, newQuietLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := g.CategoryFor(ctx, "73722")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	}

	// Breaker is open now; the store is no longer consulted.
	calls := next.categoryCalls
	_, _, err := g.CategoryFor(ctx, "73722")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, calls, next.categoryCalls)
}
