package bundles

import "github.com/claimcheck/internal/domain"

// DefaultDefinitions returns the bundle definitions shipped for standalone
// runs when no configuration file is supplied. Deployments normally override
// these with their own bundles.json.
func DefaultDefinitions() []*domain.BundleDefinition {
	rate := func(v float64) (float64, bool) { return v, true }

	knee := &domain.BundleDefinition{
		Name:       "knee_arthrogram",
		BundleType: "arthrogram",
		BodyPart:   "knee",
		Modality:   "mri",
		CoreCodes:  set("73722", "27370"),
		OptionalCodes: set(
			"77002",
		),
		AllowedModifiers:  []string{"RT", "LT", "TC", "26", "59"},
		RequiredModifiers: nil,
		UnitCaps:          map[string]int{"73722": 1, "27370": 1, "77002": 1},
	}
	knee.Rate, knee.HasRate = rate(1250.00)

	hip := &domain.BundleDefinition{
		Name:       "hip_arthrogram",
		BundleType: "arthrogram",
		BodyPart:   "hip",
		Modality:   "mri",
		CoreCodes:  set("73722", "27093"),
		OptionalCodes: set(
			"77002",
		),
		AllowedModifiers: []string{"RT", "LT", "TC", "26", "59"},
		UnitCaps:         map[string]int{"73722": 1, "27093": 1, "77002": 1},
	}
	hip.Rate, hip.HasRate = rate(1250.00)

	emg := &domain.BundleDefinition{
		Name:       "emg_upper",
		BundleType: "emg",
		BodyPart:   "upper_extremity",
		Modality:   "emg",
		CoreCodes:  set("95886", "95910"),
		OptionalCodes: set(
			"95885", "95907", "95908", "95909", "95911", "95912", "95913",
		),
		AllowedModifiers: []string{"RT", "LT", "59"},
		UnitCaps: map[string]int{
			"95885": 4, "95886": 4, "95907": 6, "95908": 6, "95909": 6,
			"95910": 6, "95911": 6, "95912": 6, "95913": 6,
		},
	}
	emg.Rate, emg.HasRate = rate(675.00)

	mriLumbar := &domain.BundleDefinition{
		Name:             "mri_lumbar_w_wo",
		BundleType:       "mri",
		BodyPart:         "lumbar_spine",
		Modality:         "mri",
		CoreCodes:        set("72158"),
		OptionalCodes:    set("72148", "72149"),
		AllowedModifiers: []string{"TC", "26"},
		UnitCaps:         map[string]int{"72158": 1},
	}
	mriLumbar.Rate, mriLumbar.HasRate = rate(980.00)

	therapeutic := &domain.BundleDefinition{
		Name:             "therapeutic_injection_guided",
		BundleType:       "therapeutic_injection",
		Modality:         "fluoroscopy",
		CoreCodes:        set("20610", "77002"),
		AllowedModifiers: []string{"RT", "LT", "59"},
		UnitCaps:         map[string]int{"20610": 2, "77002": 1},
	}
	therapeutic.Rate, therapeutic.HasRate = rate(410.00)

	return []*domain.BundleDefinition{knee, hip, emg, mriLumbar, therapeutic}
}

// DefaultEquivalenceGroups returns the shipped clinical-equivalence groups:
// contrast variants of the same study are interchangeable for rate fallback.
func DefaultEquivalenceGroups() []domain.EquivalenceGroup {
	return []domain.EquivalenceGroup{
		{Name: "mri_brain", Codes: []string{"70551", "70552", "70553"}},
		{Name: "mri_lumbar", Codes: []string{"72148", "72149", "72158"}},
		{Name: "mri_cervical", Codes: []string{"72141", "72142", "72156"}},
		{Name: "mri_lower_joint", Codes: []string{"73721", "73722", "73723"}},
		{Name: "ct_head", Codes: []string{"70450", "70460", "70470"}},
	}
}

func set(codes ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}
