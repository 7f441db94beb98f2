package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
)

func orderWith(codes ...string) *domain.Order {
	order := &domain.Order{ID: "ORD-1", ProviderID: "prov-1"}
	for _, code := range codes {
		order.Lines = append(order.Lines, &domain.OrderLine{ProcedureCode: code, Units: 1})
	}
	return order
}

func claimWith(codes ...string) *domain.Claim {
	claim := &domain.Claim{OrderID: "ORD-1"}
	for i, code := range codes {
		claim.Lines = append(claim.Lines, &domain.ClaimLine{Index: i, ProcedureCode: code, Units: 1})
	}
	return claim
}

func TestMatchExactCodes(t *testing.T) {
	matcher := NewLineItemMatcher(newFakeGateway(), testLogger())

	result, err := matcher.Match(context.Background(),
		orderWith("73722", "27093"), claimWith("73722", "27093"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
	assert.Empty(t, result.MissingCodes)
}

func TestMatchUnauthorizedAddOnFails(t *testing.T) {
	matcher := NewLineItemMatcher(newFakeGateway(), testLogger())

	result, err := matcher.Match(context.Background(),
		orderWith("73722", "27093"), claimWith("73722", "27093", "72148"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Equal(t, []string{"72148"}, result.MissingCodes)
}

func TestMatchEmptySidesFail(t *testing.T) {
	matcher := NewLineItemMatcher(newFakeGateway(), testLogger())
	ctx := context.Background()

	result, err := matcher.Match(ctx, orderWith(), claimWith("73722"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)

	result, err = matcher.Match(ctx, orderWith("73722"), claimWith())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
}

func TestMatchImagingEquivalence(t *testing.T) {
	gateway := newFakeGateway()
	gateway.categories["73721"] = "imaging"
	gateway.categories["73722"] = "imaging"
	matcher := NewLineItemMatcher(gateway, testLogger())

	// Contrast variant of the ordered study: same category, same first four
	// digits.
	result, err := matcher.Match(context.Background(),
		orderWith("73721"), claimWith("73722"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
}

func TestMatchImagingEquivalenceNeedsSharedCategory(t *testing.T) {
	gateway := newFakeGateway()
	gateway.categories["73721"] = "imaging"
	gateway.categories["73722"] = "procedure"
	matcher := NewLineItemMatcher(gateway, testLogger())

	result, err := matcher.Match(context.Background(),
		orderWith("73721"), claimWith("73722"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Equal(t, []string{"73722"}, result.MissingCodes)
}

func TestMatchTherapeuticSimilarity(t *testing.T) {
	// No category rows: therapeutic equivalence rides on code similarity
	// alone. Shared prefix of four out of five digits meets the bar.
	matcher := NewLineItemMatcher(newFakeGateway(), testLogger())

	result, err := matcher.Match(context.Background(),
		orderWith("27093"), claimWith("27096"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
	assert.Empty(t, result.MissingCodes)
}

func TestMatchComponentSplitPassesWithMetadata(t *testing.T) {
	matcher := NewLineItemMatcher(newFakeGateway(), testLogger())

	claim := &domain.Claim{
		OrderID: "ORD-1",
		Lines: []*domain.ClaimLine{
			{Index: 0, ProcedureCode: "73722", Modifiers: []string{"TC"}, Units: 1},
			{Index: 1, ProcedureCode: "73722", Modifiers: []string{"26"}, Units: 1},
		},
	}

	result, err := matcher.Match(context.Background(), orderWith("73722"), claim)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
	require.Len(t, result.ComponentBilling, 2)
	assert.Equal(t, "technical", result.ComponentBilling[0].ComponentType)
	assert.Equal(t, "professional", result.ComponentBilling[1].ComponentType)
	assert.True(t, result.ComponentBilling[0].IsComponentBilling)
	require.Len(t, result.Messages, 2)
	assert.Contains(t, result.Messages[0], "73722 billed as technical component")
	assert.Contains(t, result.Messages[1], "73722 billed as professional component")
}

func TestMatchConsumedOrderLineBlocksDuplicate(t *testing.T) {
	matcher := NewLineItemMatcher(newFakeGateway(), testLogger())

	// One authorized study, two global billings of it.
	result, err := matcher.Match(context.Background(),
		orderWith("73722"), claimWith("73722", "73722"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Equal(t, []string{"73722"}, result.MissingCodes)
}
