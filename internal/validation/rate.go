package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/bundles"
	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// RateResolver prices every claim line through the resolution chain:
// ancillary zero-rate, bundle rate, PPO contract rate, OTA negotiated rate,
// then PPO rate of a clinically equivalent code. A line that exhausts the
// chain fails, and a claim whose provider cannot be resolved fails outright.
type RateResolver struct {
	gateway     reference.Gateway
	equivalence []domain.EquivalenceGroup
	log         *logrus.Logger
}

// NewRateResolver creates a resolver over the gateway's rate dimensions and
// the loaded equivalence groups.
func NewRateResolver(gateway reference.Gateway, equivalence []domain.EquivalenceGroup, logger *logrus.Logger) *RateResolver {
	return &RateResolver{gateway: gateway, equivalence: equivalence, log: logger}
}

// Resolve prices claim against its order's provider. Bundle membership set on
// the claim lines takes precedence when the bundle carries a configured rate:
// the primary component carries the whole bundle rate, included components
// price at zero and are excluded from the total so the bundle never
// double-counts. A rateless bundle prices every member through the chain.
func (r *RateResolver) Resolve(ctx context.Context, claim *domain.Claim, bundle *domain.BundleDefinition) (*domain.RateResult, error) {
	result := &domain.RateResult{Status: domain.StatusPass}

	provider, found, err := r.gateway.Provider(ctx, claim.OrderID)
	if err != nil {
		return nil, fmt.Errorf("resolving provider for order %s: %w", claim.OrderID, err)
	}
	if !found {
		result.Status = domain.StatusFail
		result.Messages = append(result.Messages,
			fmt.Sprintf("no provider on record for order %s", claim.OrderID))
		return result, nil
	}

	ancillary, err := r.gateway.AncillaryCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ancillary codes: %w", err)
	}

	for _, line := range claim.Lines {
		lineRate, err := r.resolveLine(ctx, claim.OrderID, provider, ancillary, bundle, line)
		if err != nil {
			return nil, err
		}
		result.Lines = append(result.Lines, *lineRate)
		if lineRate.Status == domain.StatusFail {
			result.Status = domain.StatusFail
			result.Messages = append(result.Messages, lineRate.Message)
		}
		if lineRate.Counted {
			result.Total = result.Total.Add(lineRate.UnitAdjustedRate)
		}
	}
	return result, nil
}

func (r *RateResolver) resolveLine(ctx context.Context, orderID string, provider *domain.Provider, ancillary map[string]struct{}, bundle *domain.BundleDefinition, line *domain.ClaimLine) (*domain.LineRate, error) {
	lineRate := &domain.LineRate{
		LineIndex:     line.Index,
		ProcedureCode: line.ProcedureCode,
		Status:        domain.StatusPass,
		Counted:       true,
	}
	units := decimal.NewFromInt(int64(line.Units))

	// Ancillary services are bundled into the primary procedure's
	// reimbursement and always price at zero.
	if _, ok := ancillary[line.ProcedureCode]; ok {
		lineRate.Source = domain.RateSourceAncillary
		return lineRate, nil
	}

	// A bundle with no configured rate prices through the normal chain; only
	// a rated bundle pays its members as primary-plus-included.
	if bundle != nil && bundle.HasRate && line.BundleName != "" {
		if line.PrimaryComponent {
			lineRate.Source = domain.RateSourceBundlePrimary
			lineRate.BaseRate = decimal.NewFromFloat(bundle.Rate)
			// The bundle rate covers the whole episode regardless of units.
			lineRate.UnitAdjustedRate = lineRate.BaseRate
			return lineRate, nil
		}
		lineRate.Source = domain.RateSourceBundleIncl
		lineRate.Counted = false
		return lineRate, nil
	}

	// A TC or 26 line must price at its component-specific contract rate;
	// falling back to the global rate would overpay the component.
	modifier := componentModifier(line)

	rate, found, err := r.gateway.PPORate(ctx, provider.TIN, line.ProcedureCode, modifier)
	if err != nil {
		return nil, fmt.Errorf("PPO rate for %s: %w", line.ProcedureCode, err)
	}
	if found {
		lineRate.Source = domain.RateSourcePPO
		lineRate.BaseRate = rate
		lineRate.UnitAdjustedRate = rate.Mul(units)
		return lineRate, nil
	}

	rate, found, err = r.gateway.OTARate(ctx, orderID, line.ProcedureCode)
	if err != nil {
		return nil, fmt.Errorf("OTA rate for %s: %w", line.ProcedureCode, err)
	}
	if found {
		lineRate.Source = domain.RateSourceOTA
		lineRate.BaseRate = rate
		lineRate.UnitAdjustedRate = rate.Mul(units)
		return lineRate, nil
	}

	for _, equivalent := range bundles.EquivalentCodes(r.equivalence, line.ProcedureCode, provider.TIN) {
		rate, found, err = r.gateway.PPORate(ctx, provider.TIN, equivalent, modifier)
		if err != nil {
			return nil, fmt.Errorf("equivalent PPO rate for %s: %w", equivalent, err)
		}
		if found {
			lineRate.Source = domain.RateSourceEquivalent
			lineRate.EquivalentCode = equivalent
			lineRate.BaseRate = rate
			lineRate.UnitAdjustedRate = rate.Mul(units)
			r.log.WithFields(logrus.Fields{
				"code":       line.ProcedureCode,
				"equivalent": equivalent,
			}).Debug("Rated via equivalent code")
			return lineRate, nil
		}
	}

	lineRate.Source = domain.RateSourceNone
	lineRate.Status = domain.StatusFail
	lineRate.Counted = false
	lineRate.Message = fmt.Sprintf("No rate found for CPT %s", line.ProcedureCode)
	if modifier != "" {
		lineRate.Message += fmt.Sprintf(" with modifier %s", modifier)
	}
	return lineRate, nil
}

// componentModifier returns the rate-bearing component modifier on a line, or
// empty. Only TC and 26 change the contracted rate; every other modifier is
// ignored for pricing.
func componentModifier(line *domain.ClaimLine) string {
	if line.HasModifier(domain.ModifierProfessional) {
		return domain.ModifierProfessional
	}
	if line.HasModifier(domain.ModifierTechnical) {
		return domain.ModifierTechnical
	}
	return ""
}
