package domain

// CategoryUnknown marks a code set whose clinical category could not be
// inferred from any of the lookup tiers.
const CategoryUnknown = "unknown"

// ClinicalIntent is the derived classification of a procedure-code set:
// what the codes are clinically for, independent of exact code match. It is
// recomputed per comparison and never persisted.
type ClinicalIntent struct {
	Category   string   `json:"category"`
	Modality   string   `json:"modality,omitempty"`
	BodyRegion string   `json:"body_region,omitempty"`
	BodyParts  []string `json:"body_parts,omitempty"`
	Laterality string   `json:"laterality,omitempty"`
	Contrast   string   `json:"contrast,omitempty"`

	// Confidence is 0..100: the share of codes agreeing with the dominant
	// category, floored at 30 once any category is known.
	Confidence int `json:"confidence"`
}

// IsUnknown reports whether no category could be inferred for the set.
func (i *ClinicalIntent) IsUnknown() bool {
	return i == nil || i.Category == "" || i.Category == CategoryUnknown
}

// IntentComparisonOutcome classifies how two sides' clinical intents relate.
type IntentComparisonOutcome string

const (
	IntentFullMatch        IntentComparisonOutcome = "FULL_MATCH"
	IntentBodyPartMismatch IntentComparisonOutcome = "BODY_PART_MISMATCH"
	IntentMismatch         IntentComparisonOutcome = "INTENT_MISMATCH"
	IntentIncompleteData   IntentComparisonOutcome = "INCOMPLETE_DATA"
)

// IsValid reports whether the outcome is one of the defined comparison states.
func (o IntentComparisonOutcome) IsValid() bool {
	switch o {
	case IntentFullMatch, IntentBodyPartMismatch, IntentMismatch, IntentIncompleteData:
		return true
	default:
		return false
	}
}

// IntentComparison pairs both sides' intents with the comparison outcome.
type IntentComparison struct {
	Outcome     IntentComparisonOutcome
	OrderIntent *ClinicalIntent
	ClaimIntent *ClinicalIntent
	Detail      string
}
