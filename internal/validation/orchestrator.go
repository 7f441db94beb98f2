package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// Orchestrator runs every validator over a claim and merges their verdicts
// into one decision. All stages always run; a failing stage never short
// circuits the later ones, so a reviewer sees the complete picture in one
// pass.
type Orchestrator struct {
	gateway   reference.Gateway
	bundles   *BundleDetector
	intent    *IntentClassifier
	modifiers *ModifierValidator
	units     *UnitsValidator
	lineItems *LineItemMatcher
	rates     *RateResolver
	log       *logrus.Logger
}

// NewOrchestrator wires the validators into one engine.
func NewOrchestrator(gateway reference.Gateway, bundles *BundleDetector, intent *IntentClassifier, modifiers *ModifierValidator, units *UnitsValidator, lineItems *LineItemMatcher, rates *RateResolver, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:   gateway,
		bundles:   bundles,
		intent:    intent,
		modifiers: modifiers,
		units:     units,
		lineItems: lineItems,
		rates:     rates,
		log:       logger,
	}
}

// Validate runs the full stage pipeline over one claim. Infrastructure
// errors and panics are contained per claim: the result carries
// PROCESS_ERROR and the batch moves on.
func (o *Orchestrator) Validate(ctx context.Context, claim *domain.Claim) (result *domain.ValidationResult) {
	result = &domain.ValidationResult{
		ClaimID: uuid.New().String(),
		OrderID: claim.OrderID,
		Stage:   domain.StageLoaded,
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{
				"order_id": claim.OrderID,
				"panic":    r,
			}).Error("Recovered panic during validation")
			result.Status = domain.StatusProcessError
			result.ProcessError = fmt.Sprintf("internal error: %v", r)
			result.Messages = append(result.Messages, result.ProcessError)
		}
	}()

	order, found, err := o.gateway.Order(ctx, claim.OrderID)
	if err != nil {
		return o.processError(result, fmt.Errorf("loading order %s: %w", claim.OrderID, err))
	}
	if !found {
		result.Status = domain.StatusFail
		result.CriticalFailures = append(result.CriticalFailures, domain.ValidatorLineItems)
		result.Messages = append(result.Messages,
			fmt.Sprintf("no order found for order_id %s", claim.OrderID))
		result.Stage = domain.StageDecided
		return result
	}

	// Stage: bundle detection and comparison.
	comparison := o.bundles.Compare(order.Codes(), claim.Codes())
	result.Bundle = bundleResult(comparison)
	result.Stage = domain.StageBundleChecked

	var bundleDef *domain.BundleDefinition
	if comparison.ClaimMatch != nil && comparison.ClaimMatch.Quality == domain.MatchFull {
		bundleDef = comparison.ClaimMatch.Definition
		o.annotateBundleLines(claim, comparison.ClaimMatch)
	}

	// Stage: clinical intent.
	intentComparison, err := o.intent.Compare(ctx, order.Codes(), claim.Codes())
	if err != nil {
		return o.processError(result, err)
	}
	result.Intent = intentResult(intentComparison)
	result.Stage = domain.StageIntentChecked

	// Stage: modifiers.
	result.Modifiers = o.modifiers.Validate(claim, bundleDef)
	result.Stage = domain.StageModifiersChecked

	// Stage: units.
	unitsResult, err := o.units.Validate(ctx, claim, bundleDef)
	if err != nil {
		return o.processError(result, err)
	}
	result.Units = unitsResult
	result.Stage = domain.StageUnitsChecked

	// Stage: line items.
	lineItemResult, err := o.lineItems.Match(ctx, order, claim)
	if err != nil {
		return o.processError(result, err)
	}
	result.LineItems = lineItemResult
	result.Stage = domain.StageLineItemsChecked

	// Stage: rates.
	rateResult, err := o.rates.Resolve(ctx, claim, bundleDef)
	if err != nil {
		return o.processError(result, err)
	}
	result.Rate = rateResult
	result.Total = rateResult.Total
	result.Stage = domain.StageRateChecked

	o.decide(result)
	result.Stage = domain.StageDecided
	return result
}

// annotateBundleLines marks the claim lines belonging to the detected bundle
// and elects the primary component: the bundle member with the lowest line
// index. Exactly one line per claim carries the bundle rate.
func (o *Orchestrator) annotateBundleLines(claim *domain.Claim, match *domain.BundleMatch) {
	primaryChosen := false
	for _, line := range claim.Lines {
		if !match.Definition.Contains(line.ProcedureCode) {
			continue
		}
		line.BundleName = match.BundleName
		line.BundleType = match.Definition.BundleType
		if !primaryChosen {
			line.PrimaryComponent = true
			primaryChosen = true
		}
	}
}

// decide applies the criticality table and derives the final status and the
// message set. Bundle, line-item, and rate failures are always critical.
// Intent and units failures are downgraded when the claim passed as an exact
// bundle, since the bundle definition already vouches for the clinical
// picture. Modifier failures are never critical on their own.
func (o *Orchestrator) decide(result *domain.ValidationResult) {
	bundlePassed := result.Bundle.HasBundle() && result.Bundle.Status == domain.StatusPass

	type verdict struct {
		name     string
		status   domain.Status
		critical bool
		messages []string
	}
	verdicts := []verdict{
		{domain.ValidatorBundle, result.Bundle.Status, true, result.Bundle.Messages},
		{domain.ValidatorIntent, result.Intent.Status, !bundlePassed, result.Intent.Messages},
		{domain.ValidatorModifier, result.Modifiers.Status, false, result.Modifiers.Messages},
		{domain.ValidatorUnits, result.Units.Status, !bundlePassed, result.Units.Messages},
		{domain.ValidatorLineItems, result.LineItems.Status, true, result.LineItems.Messages},
		{domain.ValidatorRate, result.Rate.Status, true, result.Rate.Messages},
	}

	var criticalMessages, nonCriticalMessages []string
	for _, v := range verdicts {
		if v.status != domain.StatusFail {
			continue
		}
		if v.critical {
			result.CriticalFailures = append(result.CriticalFailures, v.name)
			criticalMessages = append(criticalMessages, v.messages...)
		} else {
			result.NonCriticalFailures = append(result.NonCriticalFailures, v.name)
			nonCriticalMessages = append(nonCriticalMessages, v.messages...)
		}
	}

	switch {
	case len(result.CriticalFailures) > 0:
		result.Status = domain.StatusFail
		result.Messages = criticalMessages
	case len(result.NonCriticalFailures) > 0:
		result.Status = domain.StatusPass
		result.Messages = nonCriticalMessages
	default:
		result.Status = domain.StatusPass
		result.Messages = []string{fmt.Sprintf("Claim validated successfully, total %s", result.Total.StringFixed(2))}
	}

	o.log.WithFields(logrus.Fields{
		"order_id":     result.OrderID,
		"status":       result.Status,
		"critical":     result.CriticalFailures,
		"non_critical": result.NonCriticalFailures,
		"total":        result.Total.StringFixed(2),
	}).Info("Claim decided")
}

func (o *Orchestrator) processError(result *domain.ValidationResult, err error) *domain.ValidationResult {
	o.log.WithFields(logrus.Fields{
		"order_id": result.OrderID,
		"stage":    result.Stage,
		"error":    err,
	}).Error("Validation aborted")
	result.Status = domain.StatusProcessError
	result.ProcessError = err.Error()
	result.Messages = append(result.Messages, err.Error())
	return result
}

func bundleResult(comparison *domain.BundleComparison) *domain.BundleResult {
	result := &domain.BundleResult{Comparison: comparison}
	switch comparison.Outcome {
	case domain.BundleExactMatch, domain.BundleNoBundle:
		result.Status = domain.StatusPass
	default:
		result.Status = domain.StatusFail
		result.Messages = append(result.Messages, comparison.Detail)
	}
	return result
}

func intentResult(comparison *domain.IntentComparison) *domain.IntentResult {
	result := &domain.IntentResult{Comparison: comparison}
	switch comparison.Outcome {
	case domain.IntentFullMatch, domain.IntentIncompleteData:
		result.Status = domain.StatusPass
	default:
		result.Status = domain.StatusFail
		result.Messages = append(result.Messages, comparison.Detail)
	}
	return result
}
