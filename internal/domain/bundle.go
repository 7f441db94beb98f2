package domain

// BundleDefinition is a configured group of procedure codes typically billed
// together under one combined rate. Definitions come from static
// configuration, never derived at runtime.
type BundleDefinition struct {
	Name          string              `json:"name"`
	BundleType    string              `json:"bundle_type"`
	BodyPart      string              `json:"body_part,omitempty"`
	Modality      string              `json:"modality,omitempty"`
	CoreCodes     map[string]struct{} `json:"-"`
	OptionalCodes map[string]struct{} `json:"-"`

	// Rate is the combined bundle rate. HasRate distinguishes a configured
	// zero rate from an unconfigured one.
	Rate    float64 `json:"rate,omitempty"`
	HasRate bool    `json:"-"`

	// Modifier and unit rules scoped to this bundle.
	AllowedModifiers  []string       `json:"allowed_modifiers,omitempty"`
	RequiredModifiers []string       `json:"required_modifiers,omitempty"`
	UnitCaps          map[string]int `json:"unit_caps,omitempty"`
}

// Contains reports whether the code belongs to the bundle (core or optional).
func (d *BundleDefinition) Contains(code string) bool {
	if _, ok := d.CoreCodes[code]; ok {
		return true
	}
	_, ok := d.OptionalCodes[code]
	return ok
}

// MatchQuality grades how well a code set matches a bundle definition.
type MatchQuality int

const (
	MatchNone    MatchQuality = 0
	MatchPartial MatchQuality = 1
	MatchFull    MatchQuality = 2
)

// String returns the quality label used in messages and logs.
func (q MatchQuality) String() string {
	switch q {
	case MatchFull:
		return "full"
	case MatchPartial:
		return "partial"
	default:
		return "none"
	}
}

// BundleMatch is the ephemeral result of matching a code set against the
// configured bundle definitions. It is recomputed on every validation run and
// never persisted.
type BundleMatch struct {
	Definition        *BundleDefinition
	BundleName        string
	Quality           MatchQuality
	CoreMatchFraction float64
	MissingCore       []string
	MissingOptional   []string
	ExtraCodes        []string
}

// BundleComparisonOutcome classifies how the order-side and claim-side bundle
// matches relate.
type BundleComparisonOutcome string

const (
	BundleExactMatch       BundleComparisonOutcome = "EXACT_MATCH"
	BundleVariantMatch     BundleComparisonOutcome = "VARIANT_MATCH"
	BundleContrastMismatch BundleComparisonOutcome = "CONTRAST_MISMATCH"
	BundleNoBundle         BundleComparisonOutcome = "NO_BUNDLE"
)

// IsValid reports whether the outcome is one of the defined comparison states.
func (o BundleComparisonOutcome) IsValid() bool {
	switch o {
	case BundleExactMatch, BundleVariantMatch, BundleContrastMismatch, BundleNoBundle:
		return true
	default:
		return false
	}
}

// BundleComparison pairs both sides' matches with the comparison outcome.
type BundleComparison struct {
	Outcome    BundleComparisonOutcome
	OrderMatch *BundleMatch
	ClaimMatch *BundleMatch
	Detail     string
}

// ContrastUse describes the contrast acquisition a procedure code implies.
type ContrastUse string

const (
	ContrastWith    ContrastUse = "with"
	ContrastWithout ContrastUse = "without"
	// ContrastBoth marks combined with/without acquisition codes. These are
	// ambiguous for mismatch detection and are skipped when searching for a
	// side's determining contrast code.
	ContrastBoth ContrastUse = "both"
)

// EquivalenceGroup is a configured set of interchangeable procedure codes,
// optionally scoped to a single provider TIN.
type EquivalenceGroup struct {
	Name  string   `json:"name,omitempty"`
	TIN   string   `json:"tin,omitempty"`
	Codes []string `json:"codes"`
}
