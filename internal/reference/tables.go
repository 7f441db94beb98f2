package reference

import (
	"strings"

	"github.com/claimcheck/internal/domain"
)

// CodeTables is the consolidated, versioned snapshot of every static CPT
// lookup table the validators share: modality code sets, prefix heuristics,
// body-part prefixes, the per-code contrast table, the hard-coded unit
// pattern sets, and the modifier rule tables. Validators receive one snapshot
// at construction and treat it as immutable; refreshing means building a new
// snapshot, never mutating a shared one.
type CodeTables struct {
	Version string

	// ModalityCodes maps a modality name to its known procedure codes.
	// Second tier of category inference, after the gateway's explicit
	// per-code category dimension.
	ModalityCodes map[string]map[string]struct{}

	// PrefixBuckets maps the first three digits of a code to a coarse
	// body-system bucket. Last-resort tier of category inference.
	PrefixBuckets map[string]string

	// BodyPartPrefixes maps code prefixes to body parts. The longest
	// matching prefix wins; ties prefer the longer prefix by construction.
	BodyPartPrefixes map[string]string

	// Contrast maps MR/CT codes to their contrast acquisition. Codes marked
	// ContrastBoth are ambiguous and skipped during mismatch detection.
	Contrast map[string]domain.ContrastUse

	// Unit-pattern code sets for the units validator's independent bundle
	// re-detection.
	EMGCodes        map[string]struct{}
	NeedleEMGCodes  map[string]struct{}
	ArthrogramCodes map[string]struct{}
	InjectionCodes  map[string]struct{}
	GuidanceCode    string

	// Modifier rule tables.
	ModifierBlacklist map[string]struct{}
	// ModifierPrefixRules maps a code prefix to its allowed modifiers. The
	// longest matching prefix wins; codes with no matching prefix allow no
	// modifiers at all.
	ModifierPrefixRules map[string][]string
	ExclusiveGroups     [][]string

	// MultiUnitExempt codes may bill more than one unit up to the global
	// safety limit without a bundle cap.
	MultiUnitExempt map[string]struct{}
}

// DefaultCodeTables builds the shipped snapshot of the static lookup tables.
func DefaultCodeTables() *CodeTables {
	return &CodeTables{
		Version: "2026.1",
		ModalityCodes: map[string]map[string]struct{}{
			"mri": codeSet(
				"70551", "70552", "70553", "72141", "72142", "72146", "72147",
				"72148", "72149", "72156", "72157", "72158", "73218", "73219",
				"73220", "73221", "73222", "73223", "73718", "73719", "73720",
				"73721", "73722", "73723",
			),
			"ct": codeSet(
				"70450", "70460", "70470", "70486", "70487", "70488", "72125",
				"72126", "72127", "72131", "72132", "72133", "74150", "74160",
				"74170",
			),
			"xray": codeSet(
				"73040", "73085", "73115", "73525", "73580", "73615", "72040",
				"72070", "72100", "73030", "73560", "73562",
			),
			"emg": codeSet(
				"95860", "95861", "95863", "95864", "95865", "95866", "95867",
				"95868", "95869", "95870", "95885", "95886", "95887", "95907",
				"95908", "95909", "95910", "95911", "95912", "95913",
			),
			"physical_therapy": codeSet(
				"97110", "97112", "97140", "97530", "97010", "97014", "97035",
			),
			"injection": codeSet(
				"20610", "20611", "23350", "24220", "25246", "27093", "27370",
				"27648", "62321", "62323", "64483", "64490", "96372",
			),
			"fluoroscopy": codeSet("77002", "77003"),
		},
		PrefixBuckets: map[string]string{
			"704": "imaging_head",
			"705": "imaging_head",
			"721": "imaging_spine",
			"722": "imaging_spine",
			"730": "imaging_extremity",
			"731": "imaging_extremity",
			"732": "imaging_extremity",
			"735": "imaging_extremity",
			"736": "imaging_extremity",
			"737": "imaging_extremity",
			"741": "imaging_abdomen",
			"770": "radiologic_guidance",
			"958": "neurodiagnostic",
			"959": "neurodiagnostic",
			"970": "physical_medicine",
			"971": "physical_medicine",
			"975": "physical_medicine",
			"203": "musculoskeletal_procedure",
			"206": "musculoskeletal_procedure",
			"233": "musculoskeletal_procedure",
			"242": "musculoskeletal_procedure",
			"252": "musculoskeletal_procedure",
			"270": "musculoskeletal_procedure",
			"273": "musculoskeletal_procedure",
			"276": "musculoskeletal_procedure",
			"623": "pain_management",
			"644": "pain_management",
			"963": "medicine_injection",
		},
		BodyPartPrefixes: map[string]string{
			"7045": "head",
			"7046": "head",
			"7047": "head",
			"7048": "face",
			"7055": "brain",
			"7204": "cervical_spine",
			"7207": "thoracic_spine",
			"7210": "lumbar_spine",
			"7212": "cervical_spine",
			"7213": "lumbar_spine",
			"7214": "cervical_spine",
			"72146": "thoracic_spine",
			"72147": "thoracic_spine",
			"72148": "lumbar_spine",
			"72149": "lumbar_spine",
			"72156": "cervical_spine",
			"72157": "thoracic_spine",
			"72158": "lumbar_spine",
			"7303":  "shoulder",
			"7304":  "shoulder",
			"7308":  "elbow",
			"7311":  "wrist",
			"7321":  "upper_extremity",
			"7322":  "upper_extremity",
			"7352":  "hip",
			"7356":  "knee",
			"7358":  "knee",
			"7361":  "ankle",
			"7371":  "lower_extremity",
			"7372":  "lower_extremity",
			"2709":  "hip",
			"2737":  "knee",
			"2764":  "ankle",
			"2335":  "shoulder",
			"2422":  "elbow",
			"2524":  "wrist",
		},
		Contrast: map[string]domain.ContrastUse{
			"70551": domain.ContrastWithout,
			"70552": domain.ContrastWith,
			"70553": domain.ContrastBoth,
			"70450": domain.ContrastWithout,
			"70460": domain.ContrastWith,
			"70470": domain.ContrastBoth,
			"70486": domain.ContrastWithout,
			"70487": domain.ContrastWith,
			"70488": domain.ContrastBoth,
			"72125": domain.ContrastWithout,
			"72126": domain.ContrastWith,
			"72127": domain.ContrastBoth,
			"72141": domain.ContrastWithout,
			"72142": domain.ContrastWith,
			"72146": domain.ContrastWithout,
			"72147": domain.ContrastWith,
			"72148": domain.ContrastWithout,
			"72149": domain.ContrastWith,
			"72156": domain.ContrastBoth,
			"72157": domain.ContrastBoth,
			"72158": domain.ContrastBoth,
			"73218": domain.ContrastWithout,
			"73219": domain.ContrastWith,
			"73220": domain.ContrastBoth,
			"73221": domain.ContrastWithout,
			"73222": domain.ContrastWith,
			"73223": domain.ContrastBoth,
			"73718": domain.ContrastWithout,
			"73719": domain.ContrastWith,
			"73720": domain.ContrastBoth,
			"73721": domain.ContrastWithout,
			"73722": domain.ContrastWith,
			"73723": domain.ContrastBoth,
			"74150": domain.ContrastWithout,
			"74160": domain.ContrastWith,
			"74170": domain.ContrastBoth,
		},
		EMGCodes: codeSet(
			"95860", "95861", "95863", "95864", "95865", "95866", "95867",
			"95868", "95869", "95870", "95885", "95886", "95887", "95907",
			"95908", "95909", "95910", "95911", "95912", "95913",
		),
		NeedleEMGCodes: codeSet(
			"95860", "95861", "95863", "95864", "95865", "95866", "95867",
			"95868", "95869", "95870", "95885", "95886", "95887",
		),
		ArthrogramCodes: codeSet(
			"73040", "73085", "73115", "73525", "73580", "73615", "73222",
			"73722",
		),
		InjectionCodes: codeSet(
			"20610", "20611", "23350", "24220", "25246", "27093", "27370",
			"27648", "62321", "62323", "64483", "64490", "96372",
		),
		GuidanceCode: "77002",
		ModifierBlacklist: map[string]struct{}{
			"GY": {},
			"GZ": {},
			"99": {},
		},
		ModifierPrefixRules: map[string][]string{
			"7":  {"TC", "26", "RT", "LT", "50", "59", "76", "77"},
			"77": {"TC", "26", "59"},
			"95": {"TC", "26", "59"},
			"2":  {"RT", "LT", "50", "59"},
			"97": {"59", "GP"},
			"96": {"59"},
		},
		ExclusiveGroups: [][]string{
			{"RT", "LT", "50"},
			{"26", "TC"},
			{"80", "81", "82"},
		},
		MultiUnitExempt: codeSet(
			"95907", "95908", "95909", "95910", "95911", "95912", "95913",
			"97110", "97112", "97140", "97530", "96372",
		),
	}
}

// ModalityFor returns the modality whose code set contains the code.
func (t *CodeTables) ModalityFor(code string) (string, bool) {
	for modality, codes := range t.ModalityCodes {
		if _, ok := codes[code]; ok {
			return modality, true
		}
	}
	return "", false
}

// PrefixBucketFor returns the coarse body-system bucket for a code's first
// three digits.
func (t *CodeTables) PrefixBucketFor(code string) (string, bool) {
	if len(code) < 3 {
		return "", false
	}
	bucket, ok := t.PrefixBuckets[code[:3]]
	return bucket, ok
}

// BodyPartFor returns the body part of the longest configured prefix of the
// code. Longer prefixes always beat shorter ones.
func (t *CodeTables) BodyPartFor(code string) (string, bool) {
	best := ""
	part := ""
	for prefix, p := range t.BodyPartPrefixes {
		if strings.HasPrefix(code, prefix) && len(prefix) > len(best) {
			best = prefix
			part = p
		}
	}
	return part, best != ""
}

// ContrastFor returns the contrast acquisition a code implies.
func (t *CodeTables) ContrastFor(code string) (domain.ContrastUse, bool) {
	use, ok := t.Contrast[code]
	return use, ok
}

// AllowedModifiersFor returns the whitelist of the longest matching modifier
// prefix rule. The second return is false when no rule matches, which the
// modifier validator treats as "no modifiers allowed".
func (t *CodeTables) AllowedModifiersFor(code string) ([]string, bool) {
	best := ""
	var allowed []string
	for prefix, mods := range t.ModifierPrefixRules {
		if strings.HasPrefix(code, prefix) && len(prefix) > len(best) {
			best = prefix
			allowed = mods
		}
	}
	return allowed, best != ""
}

func codeSet(codes ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}
