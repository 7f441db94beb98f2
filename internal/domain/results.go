package domain

import (
	"github.com/shopspring/decimal"
)

// Status is the overall outcome of validating one claim. Every processed
// claim ends in exactly one of PASS, FAIL, or PROCESS_ERROR.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	// StatusProcessError marks a claim the orchestrator could not validate at
	// all (infrastructure failure, corrupt input). It is distinct from a
	// normal validation FAIL and carries the error detail.
	StatusProcessError Status = "PROCESS_ERROR"
)

// IsValid reports whether the status is one of the defined outcomes.
func (s Status) IsValid() bool {
	switch s {
	case StatusPass, StatusFail, StatusProcessError:
		return true
	default:
		return false
	}
}

// String returns the status label used in messages and logs.
func (s Status) String() string { return string(s) }

// Validator names, used as keys in per-validator result maps and in the
// criticality table.
const (
	ValidatorBundle    = "bundle"
	ValidatorIntent    = "intent"
	ValidatorModifier  = "modifier"
	ValidatorUnits     = "units"
	ValidatorLineItems = "line_items"
	ValidatorRate      = "rate"
)

// RateSource identifies which step of the rate-resolution fallback chain
// produced a line's rate. Exactly one source wins per line.
type RateSource string

const (
	RateSourceAncillary     RateSource = "ANCILLARY"
	RateSourcePPO           RateSource = "PPO"
	RateSourceOTA           RateSource = "OTA"
	RateSourceEquivalent    RateSource = "EQUIVALENT"
	RateSourceBundlePrimary RateSource = "BUNDLE_PRIMARY"
	RateSourceBundleIncl    RateSource = "BUNDLE_INCLUDED"
	// RateSourceNone means the fallback chain was exhausted; the line fails.
	RateSourceNone RateSource = "NONE"
)

// IsValid reports whether the rate source is one of the defined origins.
func (s RateSource) IsValid() bool {
	switch s {
	case RateSourceAncillary, RateSourcePPO, RateSourceOTA, RateSourceEquivalent,
		RateSourceBundlePrimary, RateSourceBundleIncl, RateSourceNone:
		return true
	default:
		return false
	}
}

// LineRate is the resolved rate for one billed line.
type LineRate struct {
	LineIndex        int             `json:"line_index"`
	ProcedureCode    string          `json:"procedure_code"`
	Source           RateSource      `json:"source"`
	BaseRate         decimal.Decimal `json:"base_rate"`
	UnitAdjustedRate decimal.Decimal `json:"unit_adjusted_rate"`
	// EquivalentCode is the substitute code whose PPO rate was used when
	// Source is EQUIVALENT.
	EquivalentCode string `json:"equivalent_code,omitempty"`
	// Counted marks lines contributing to the claim total. BundleIncluded
	// lines pass but are not counted, avoiding double-billing components
	// already covered by the bundle rate.
	Counted bool   `json:"counted"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// RateResult is the rate resolver's verdict for a whole claim.
type RateResult struct {
	Status   Status          `json:"status"`
	Lines    []LineRate      `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	Messages []string        `json:"messages,omitempty"`
}

// BundleResult is the bundle detector's verdict for a claim.
type BundleResult struct {
	Status     Status            `json:"status"`
	Comparison *BundleComparison `json:"comparison,omitempty"`
	Messages   []string          `json:"messages,omitempty"`
}

// HasBundle reports whether a bundle was matched on both sides (any outcome
// other than NO_BUNDLE). Downstream criticality decisions key off this.
func (r *BundleResult) HasBundle() bool {
	return r != nil && r.Comparison != nil && r.Comparison.Outcome != BundleNoBundle
}

// IntentResult is the clinical-intent comparison verdict for a claim.
type IntentResult struct {
	Status     Status            `json:"status"`
	Comparison *IntentComparison `json:"comparison,omitempty"`
	Messages   []string          `json:"messages,omitempty"`
}

// ComponentBilling records a TC/26 split between a billed line and its
// matched ordered line. It is metadata, not by itself a failure.
type ComponentBilling struct {
	LineIndex          int    `json:"line_index"`
	ProcedureCode      string `json:"procedure_code"`
	IsComponentBilling bool   `json:"is_component_billing"`
	// ComponentType is "technical" for TC or "professional" for 26.
	ComponentType string `json:"component_type"`
	// BilledGlobal is set when the order carries the component modifier but
	// the claim bills the global service.
	BilledGlobal bool `json:"billed_global"`
}

// LineItemResult is the line-item matcher's verdict for a claim.
type LineItemResult struct {
	Status           Status             `json:"status"`
	MissingCodes     []string           `json:"missing_codes,omitempty"`
	ComponentBilling []ComponentBilling `json:"component_billing,omitempty"`
	Messages         []string           `json:"messages,omitempty"`
}

// ModifierIssueKind distinguishes the ways a line's modifiers can violate
// the rules.
type ModifierIssueKind string

const (
	ModifierInvalid         ModifierIssueKind = "INVALID"
	ModifierIncompatible    ModifierIssueKind = "INCOMPATIBLE"
	ModifierMissingRequired ModifierIssueKind = "MISSING_REQUIRED"
)

// ModifierIssue is one modifier violation on one line.
type ModifierIssue struct {
	LineIndex     int               `json:"line_index"`
	ProcedureCode string            `json:"procedure_code"`
	Kind          ModifierIssueKind `json:"kind"`
	Modifiers     []string          `json:"modifiers"`
	Message       string            `json:"message"`
}

// ModifierResult is the modifier validator's verdict for a claim.
type ModifierResult struct {
	Status   Status          `json:"status"`
	Issues   []ModifierIssue `json:"issues,omitempty"`
	Messages []string        `json:"messages,omitempty"`
}

// UnitsIssue is one billed line exceeding its allowed unit cap.
type UnitsIssue struct {
	LineIndex     int    `json:"line_index"`
	ProcedureCode string `json:"procedure_code"`
	Units         int    `json:"units"`
	MaxUnits      int    `json:"max_units"`
	Message       string `json:"message"`
}

// UnitsResult is the units validator's verdict for a claim.
type UnitsResult struct {
	Status Status       `json:"status"`
	Issues []UnitsIssue `json:"issues,omitempty"`
	// DetectedPattern names the hard-coded bundle pattern (emg, arthrogram,
	// therapeutic_injection) the validator re-detected when the claim carried
	// no bundle metadata.
	DetectedPattern string   `json:"detected_pattern,omitempty"`
	Messages        []string `json:"messages,omitempty"`
}

// Stage is the orchestrator's per-claim state machine position.
type Stage string

const (
	StageLoaded           Stage = "LOADED"
	StageBundleChecked    Stage = "BUNDLE_CHECKED"
	StageIntentChecked    Stage = "INTENT_CHECKED"
	StageModifiersChecked Stage = "MODIFIERS_CHECKED"
	StageUnitsChecked     Stage = "UNITS_CHECKED"
	StageLineItemsChecked Stage = "LINE_ITEMS_CHECKED"
	StageRateChecked      Stage = "RATE_CHECKED"
	StageDecided          Stage = "DECIDED"
)

// ValidationResult is the per-claim record the orchestrator produces: final
// status, each validator's own result, and the ordered human-readable
// messages. It is created once per claim and never mutated afterwards.
type ValidationResult struct {
	ClaimID string `json:"claim_id"`
	OrderID string `json:"order_id"`
	Status  Status `json:"status"`
	Stage   Stage  `json:"stage"`

	Bundle    *BundleResult   `json:"bundle,omitempty"`
	Intent    *IntentResult   `json:"intent,omitempty"`
	Modifiers *ModifierResult `json:"modifiers,omitempty"`
	Units     *UnitsResult    `json:"units,omitempty"`
	LineItems *LineItemResult `json:"line_items,omitempty"`
	Rate      *RateResult     `json:"rate,omitempty"`

	// CriticalFailures and NonCriticalFailures list the validator names whose
	// FAIL verdicts were classified critical or not.
	CriticalFailures    []string `json:"critical_failures,omitempty"`
	NonCriticalFailures []string `json:"non_critical_failures,omitempty"`

	Messages []string `json:"messages"`

	// ProcessError carries diagnostic detail when Status is PROCESS_ERROR.
	ProcessError string `json:"process_error,omitempty"`

	Total decimal.Decimal `json:"total"`
}
