package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

func newTestUnitsValidator(gateway *fakeGateway) *UnitsValidator {
	return NewUnitsValidator(gateway, reference.DefaultCodeTables(), 12, testLogger())
}

func unitsClaim(lines ...*domain.ClaimLine) *domain.Claim {
	return &domain.Claim{OrderID: "ORD-1", Lines: lines}
}

func TestValidateUnitsSingleUnitAlwaysPasses(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())

	// Even a completely unknown code passes at one unit.
	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "99999", Units: 1},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
}

func TestValidateUnitsDefaultCapIsOne(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())

	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "73722", Units: 2},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, 1, result.Issues[0].MaxUnits)
}

func TestValidateUnitsMultiUnitExempt(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())
	ctx := context.Background()

	result, err := v.Validate(ctx, unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "97110", Units: 8},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)

	result, err = v.Validate(ctx, unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "97110", Units: 13},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Equal(t, 12, result.Issues[0].MaxUnits)
}

func TestValidateUnitsAncillaryUsesGlobalLimit(t *testing.T) {
	gateway := newFakeGateway()
	gateway.ancillary["A4550"] = struct{}{}
	v := newTestUnitsValidator(gateway)

	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "A4550", Units: 6},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
}

func TestValidateUnitsBundleCapWins(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())
	bundle := &domain.BundleDefinition{
		Name:     "emg_upper",
		UnitCaps: map[string]int{"95886": 4},
	}
	ctx := context.Background()

	result, err := v.Validate(ctx, unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "95886", Units: 4, BundleName: "emg_upper"},
	), bundle)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)

	result, err = v.Validate(ctx, unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "95886", Units: 5, BundleName: "emg_upper"},
	), bundle)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Equal(t, 4, result.Issues[0].MaxUnits)
}

func TestValidateUnitsEMGPatternRedetection(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())

	// No bundle configuration, but the code set is recognizably an EMG
	// study: needle EMG plus nerve conduction.
	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "95886", Units: 3},
		&domain.ClaimLine{Index: 1, ProcedureCode: "95910", Units: 4},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPass, result.Status)
	assert.Equal(t, "emg", result.DetectedPattern)
}

func TestValidateUnitsNoPatternWithoutNeedleEMG(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())

	// A lone needle EMG code is not a study pattern; multi-unit billing of
	// it falls back to the default cap.
	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "95886", Units: 3},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, result.Status)
	assert.Empty(t, result.DetectedPattern)
}

func TestValidateUnitsArthrogramPattern(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())

	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "73722", Units: 1},
		&domain.ClaimLine{Index: 1, ProcedureCode: "27093", Units: 2},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, "arthrogram", result.DetectedPattern)
	assert.Equal(t, domain.StatusPass, result.Status)
}

func TestValidateUnitsTherapeuticInjectionPattern(t *testing.T) {
	v := newTestUnitsValidator(newFakeGateway())

	result, err := v.Validate(context.Background(), unitsClaim(
		&domain.ClaimLine{Index: 0, ProcedureCode: "20610", Units: 2},
		&domain.ClaimLine{Index: 1, ProcedureCode: "77002", Units: 1},
	), nil)
	require.NoError(t, err)
	assert.Equal(t, "therapeutic_injection", result.DetectedPattern)
	assert.Equal(t, domain.StatusPass, result.Status)
}
