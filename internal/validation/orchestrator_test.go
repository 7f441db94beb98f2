package validation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/bundles"
	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

func newTestOrchestrator(gateway *fakeGateway) *Orchestrator {
	tables := reference.DefaultCodeTables()
	defs := bundles.DefaultDefinitions()
	return NewOrchestrator(
		gateway,
		NewBundleDetector(defs, tables, testLogger()),
		NewIntentClassifier(gateway, tables, testLogger()),
		NewModifierValidator(tables, testLogger()),
		NewUnitsValidator(gateway, tables, 12, testLogger()),
		NewLineItemMatcher(gateway, testLogger()),
		NewRateResolver(gateway, bundles.DefaultEquivalenceGroups(), testLogger()),
		testLogger(),
	)
}

// arthrogramFixture seeds an order and provider for a hip arthrogram: MRI
// lower extremity with contrast plus the hip injection.
func arthrogramFixture() *fakeGateway {
	gateway := newFakeGateway()
	gateway.providers["ORD-1"] = &domain.Provider{TIN: testTIN, Name: "Radiology Assoc", NetworkStatus: "in_network"}
	gateway.orders["ORD-1"] = &domain.Order{
		ID:         "ORD-1",
		ProviderID: "prov-1",
		Lines: []*domain.OrderLine{
			{ProcedureCode: "73722", Units: 1},
			{ProcedureCode: "27093", Units: 1},
		},
	}
	return gateway
}

func arthrogramClaim(extraCodes ...string) *domain.Claim {
	claim := &domain.Claim{
		OrderID: "ORD-1",
		Lines: []*domain.ClaimLine{
			{Index: 0, ProcedureCode: "73722", Units: 1},
			{Index: 1, ProcedureCode: "27093", Units: 1},
		},
	}
	for _, code := range extraCodes {
		claim.Lines = append(claim.Lines, &domain.ClaimLine{
			Index: len(claim.Lines), ProcedureCode: code, Units: 1,
		})
	}
	return claim
}

func TestValidateArthrogramExactMatchPasses(t *testing.T) {
	o := newTestOrchestrator(arthrogramFixture())

	result := o.Validate(context.Background(), arthrogramClaim())
	assert.Equal(t, domain.StatusPass, result.Status)
	assert.Equal(t, domain.StageDecided, result.Stage)
	assert.Empty(t, result.CriticalFailures)
	assert.Empty(t, result.NonCriticalFailures)

	require.NotNil(t, result.Bundle)
	assert.Equal(t, domain.BundleExactMatch, result.Bundle.Comparison.Outcome)
	require.NotNil(t, result.Intent)
	assert.Equal(t, domain.IntentFullMatch, result.Intent.Comparison.Outcome)

	// The bundle rate is paid exactly once.
	assert.True(t, result.Total.Equal(decimal.NewFromFloat(1250.00)),
		"total was %s", result.Total)
}

func TestValidateBundleMetadataPropagation(t *testing.T) {
	o := newTestOrchestrator(arthrogramFixture())
	claim := arthrogramClaim()

	o.Validate(context.Background(), claim)

	assert.Equal(t, "hip_arthrogram", claim.Lines[0].BundleName)
	assert.Equal(t, "hip_arthrogram", claim.Lines[1].BundleName)
	assert.True(t, claim.Lines[0].PrimaryComponent)
	assert.False(t, claim.Lines[1].PrimaryComponent)
}

func TestValidateUnauthorizedAddOnIsCritical(t *testing.T) {
	gateway := arthrogramFixture()
	// Rate the add-on so the failure is attributable to line items alone.
	gateway.ppo[ppoKey(testTIN, "72148", "")] = decimal.NewFromFloat(400.00)
	o := newTestOrchestrator(gateway)

	result := o.Validate(context.Background(), arthrogramClaim("72148"))
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Contains(t, result.CriticalFailures, domain.ValidatorLineItems)
	require.NotNil(t, result.LineItems)
	assert.Equal(t, []string{"72148"}, result.LineItems.MissingCodes)
}

func TestValidateModifierFailureIsNonCritical(t *testing.T) {
	o := newTestOrchestrator(arthrogramFixture())

	claim := arthrogramClaim()
	claim.Lines[0].Modifiers = []string{"GY"}

	result := o.Validate(context.Background(), claim)
	assert.Equal(t, domain.StatusPass, result.Status)
	assert.Contains(t, result.NonCriticalFailures, domain.ValidatorModifier)
	assert.Empty(t, result.CriticalFailures)
	assert.NotEmpty(t, result.Messages)
}

func TestValidateComponentSplitPasses(t *testing.T) {
	gateway := arthrogramFixture()
	o := newTestOrchestrator(gateway)

	// The MRI is billed as a TC/26 split instead of global. Component lines
	// still belong to the detected bundle, so rates stay bundle-driven.
	claim := &domain.Claim{
		OrderID: "ORD-1",
		Lines: []*domain.ClaimLine{
			{Index: 0, ProcedureCode: "73722", Modifiers: []string{"TC"}, Units: 1},
			{Index: 1, ProcedureCode: "73722", Modifiers: []string{"26"}, Units: 1},
			{Index: 2, ProcedureCode: "27093", Units: 1},
		},
	}

	result := o.Validate(context.Background(), claim)
	assert.Equal(t, domain.StatusPass, result.Status)
	require.NotNil(t, result.LineItems)
	assert.NotEmpty(t, result.LineItems.ComponentBilling)
}

func TestValidateMissingOrderFails(t *testing.T) {
	o := newTestOrchestrator(newFakeGateway())

	result := o.Validate(context.Background(), arthrogramClaim())
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "no order found")
}

func TestValidateInfrastructureErrorIsProcessError(t *testing.T) {
	gateway := arthrogramFixture()
	gateway.err = assert.AnError
	o := newTestOrchestrator(gateway)

	result := o.Validate(context.Background(), arthrogramClaim())
	assert.Equal(t, domain.StatusProcessError, result.Status)
	assert.NotEmpty(t, result.ProcessError)
}

func TestValidateAllStagesRunDespiteEarlyFailure(t *testing.T) {
	gateway := arthrogramFixture()
	// Order for a knee arthrogram, claim bills a hip arthrogram: the bundle
	// stage fails as a variant, yet every later stage still reports.
	gateway.orders["ORD-1"].Lines = []*domain.OrderLine{
		{ProcedureCode: "73722", Units: 1},
		{ProcedureCode: "27370", Units: 1},
	}
	o := newTestOrchestrator(gateway)

	result := o.Validate(context.Background(), arthrogramClaim())
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Contains(t, result.CriticalFailures, domain.ValidatorBundle)
	assert.NotNil(t, result.Intent)
	assert.NotNil(t, result.Modifiers)
	assert.NotNil(t, result.Units)
	assert.NotNil(t, result.LineItems)
	assert.NotNil(t, result.Rate)
	assert.Equal(t, domain.StageDecided, result.Stage)
}
