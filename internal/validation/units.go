package validation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// UnitsValidator checks billed unit counts against the allowed caps. Single
// units always pass. Multi-unit lines resolve a cap in precedence order: the
// detected bundle's per-code cap, the multi-unit exemption list, ancillary
// status, and otherwise a hard cap of one unit.
type UnitsValidator struct {
	gateway     reference.Gateway
	tables      *reference.CodeTables
	globalLimit int
	log         *logrus.Logger
}

// NewUnitsValidator creates a validator. globalLimit is the safety ceiling
// for exempt and ancillary codes.
func NewUnitsValidator(gateway reference.Gateway, tables *reference.CodeTables, globalLimit int, logger *logrus.Logger) *UnitsValidator {
	if globalLimit <= 0 {
		globalLimit = 12
	}
	return &UnitsValidator{gateway: gateway, tables: tables, globalLimit: globalLimit, log: logger}
}

// Validate checks every line's units. bundle may be nil; when it is, the
// validator re-detects the hard-coded multi-code patterns (EMG study,
// arthrogram, guided therapeutic injection) from the claim codes alone, so a
// claim that legitimately bills a known pattern is not capped to single units
// just because bundle configuration was absent.
func (v *UnitsValidator) Validate(ctx context.Context, claim *domain.Claim, bundle *domain.BundleDefinition) (*domain.UnitsResult, error) {
	result := &domain.UnitsResult{Status: domain.StatusPass}

	var pattern string
	patternCodes := map[string]struct{}{}
	if bundle == nil {
		pattern, patternCodes = v.detectPattern(claim.Codes())
		result.DetectedPattern = pattern
	}

	ancillary, err := v.gateway.AncillaryCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ancillary codes: %w", err)
	}

	for _, line := range claim.Lines {
		if line.Units <= 1 {
			continue
		}
		max := v.capFor(line, bundle, patternCodes, ancillary)
		if line.Units <= max {
			continue
		}
		issue := domain.UnitsIssue{
			LineIndex:     line.Index,
			ProcedureCode: line.ProcedureCode,
			Units:         line.Units,
			MaxUnits:      max,
			Message: fmt.Sprintf("CPT %s billed %d units, maximum allowed is %d",
				line.ProcedureCode, line.Units, max),
		}
		result.Issues = append(result.Issues, issue)
		result.Messages = append(result.Messages, issue.Message)
	}

	if len(result.Issues) > 0 {
		result.Status = domain.StatusFail
		v.log.WithFields(logrus.Fields{
			"order_id": claim.OrderID,
			"issues":   len(result.Issues),
		}).Debug("Unit cap violations")
	}
	return result, nil
}

func (v *UnitsValidator) capFor(line *domain.ClaimLine, bundle *domain.BundleDefinition, patternCodes map[string]struct{}, ancillary map[string]struct{}) int {
	if bundle != nil {
		if cap, ok := bundle.UnitCaps[line.ProcedureCode]; ok {
			return cap
		}
	}
	if _, ok := patternCodes[line.ProcedureCode]; ok {
		return v.globalLimit
	}
	if _, ok := v.tables.MultiUnitExempt[line.ProcedureCode]; ok {
		return v.globalLimit
	}
	if _, ok := ancillary[line.ProcedureCode]; ok {
		return v.globalLimit
	}
	return 1
}

// detectPattern re-runs the minimal bundle heuristics on raw codes. An EMG
// study is two or more EMG codes with at least one needle code. An arthrogram
// is an arthrogram imaging code plus a joint injection code. A guided
// therapeutic injection is an injection code plus fluoroscopic guidance.
func (v *UnitsValidator) detectPattern(codes []string) (string, map[string]struct{}) {
	codeSet := toCodeSet(codes)

	emg := intersect(codeSet, v.tables.EMGCodes)
	needle := intersect(codeSet, v.tables.NeedleEMGCodes)
	if len(emg) >= 2 && len(needle) >= 1 {
		return "emg", emg
	}

	arthImaging := intersect(codeSet, v.tables.ArthrogramCodes)
	injections := intersect(codeSet, v.tables.InjectionCodes)
	if len(arthImaging) >= 1 && len(injections) >= 1 {
		return "arthrogram", union(arthImaging, injections)
	}

	if _, ok := codeSet[v.tables.GuidanceCode]; ok && len(injections) >= 1 {
		injections[v.tables.GuidanceCode] = struct{}{}
		return "therapeutic_injection", injections
	}

	return "", map[string]struct{}{}
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}
