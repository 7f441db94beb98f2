// Package validation implements the multi-stage claim validation engine: the
// bundle detector, clinical-intent classifier, line-item matcher, rate
// resolver, modifier and units validators, and the orchestrator that merges
// their verdicts into one decision per claim.
package validation

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// BundleDetector matches procedure-code sets against the configured bundle
// definitions and compares the order-side and claim-side matches.
type BundleDetector struct {
	// definitions keep configuration order: first-seen wins ties.
	definitions []*domain.BundleDefinition
	tables      *reference.CodeTables
	log         *logrus.Logger
}

// NewBundleDetector creates a detector over an immutable definition slice
// and code-table snapshot.
func NewBundleDetector(definitions []*domain.BundleDefinition, tables *reference.CodeTables, logger *logrus.Logger) *BundleDetector {
	return &BundleDetector{definitions: definitions, tables: tables, log: logger}
}

// Detect returns the best bundle match for a code set, or nil when no
// definition reaches at least a partial match. Quality is full when every
// core code is present, partial when at least half are. Ties on quality
// break by core-match fraction, then by configuration order.
func (d *BundleDetector) Detect(codes []string) *domain.BundleMatch {
	codeSet := toCodeSet(codes)
	if len(codeSet) == 0 {
		return nil
	}

	var best *domain.BundleMatch
	for _, def := range d.definitions {
		if len(def.CoreCodes) == 0 {
			// Definitions without core codes are never selectable.
			continue
		}

		matched := 0
		for code := range def.CoreCodes {
			if _, ok := codeSet[code]; ok {
				matched++
			}
		}
		fraction := float64(matched) / float64(len(def.CoreCodes))

		var quality domain.MatchQuality
		switch {
		case fraction == 1.0:
			quality = domain.MatchFull
		case fraction >= 0.5:
			quality = domain.MatchPartial
		default:
			continue
		}

		if best != nil && (quality < best.Quality ||
			(quality == best.Quality && fraction <= best.CoreMatchFraction)) {
			continue
		}
		best = d.buildMatch(def, codeSet, quality, fraction)
	}

	if best != nil {
		d.log.WithFields(logrus.Fields{
			"bundle":   best.BundleName,
			"quality":  best.Quality.String(),
			"fraction": best.CoreMatchFraction,
		}).Debug("Bundle detected")
	}
	return best
}

func (d *BundleDetector) buildMatch(def *domain.BundleDefinition, codeSet map[string]struct{}, quality domain.MatchQuality, fraction float64) *domain.BundleMatch {
	match := &domain.BundleMatch{
		Definition:        def,
		BundleName:        def.Name,
		Quality:           quality,
		CoreMatchFraction: fraction,
	}
	for code := range def.CoreCodes {
		if _, ok := codeSet[code]; !ok {
			match.MissingCore = append(match.MissingCore, code)
		}
	}
	for code := range def.OptionalCodes {
		if _, ok := codeSet[code]; !ok {
			match.MissingOptional = append(match.MissingOptional, code)
		}
	}
	for code := range codeSet {
		if !def.Contains(code) {
			match.ExtraCodes = append(match.ExtraCodes, code)
		}
	}
	sort.Strings(match.MissingCore)
	sort.Strings(match.MissingOptional)
	sort.Strings(match.ExtraCodes)
	return match
}

// Compare detects bundles on both sides and classifies the relationship.
// For MR/CT bundles a contrast mismatch is checked before name comparison
// and short-circuits it.
func (d *BundleDetector) Compare(orderCodes, claimCodes []string) *domain.BundleComparison {
	orderMatch := d.Detect(orderCodes)
	claimMatch := d.Detect(claimCodes)

	comparison := &domain.BundleComparison{
		OrderMatch: orderMatch,
		ClaimMatch: claimMatch,
	}

	if orderMatch == nil || claimMatch == nil {
		comparison.Outcome = domain.BundleNoBundle
		comparison.Detail = "no bundle matched on one or both sides"
		return comparison
	}

	if isContrastModality(orderMatch) || isContrastModality(claimMatch) {
		orderContrast, orderOK := d.dominantContrast(orderCodes)
		claimContrast, claimOK := d.dominantContrast(claimCodes)
		if orderOK && claimOK && orderContrast != claimContrast {
			comparison.Outcome = domain.BundleContrastMismatch
			comparison.Detail = fmt.Sprintf(
				"order studies are %s contrast, claim studies are %s contrast",
				orderContrast, claimContrast)
			return comparison
		}
	}

	if orderMatch.BundleName == claimMatch.BundleName {
		comparison.Outcome = domain.BundleExactMatch
	} else {
		comparison.Outcome = domain.BundleVariantMatch
		comparison.Detail = fmt.Sprintf("order matched %s, claim matched %s",
			orderMatch.BundleName, claimMatch.BundleName)
	}
	return comparison
}

// dominantContrast finds the side's determining contrast code: the first
// code (in sorted order, for determinism) with an unambiguous contrast table
// entry. Combined with/without codes are skipped.
func (d *BundleDetector) dominantContrast(codes []string) (domain.ContrastUse, bool) {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	for _, code := range sorted {
		use, ok := d.tables.ContrastFor(code)
		if !ok || use == domain.ContrastBoth {
			continue
		}
		return use, true
	}
	return "", false
}

func isContrastModality(match *domain.BundleMatch) bool {
	switch match.Definition.Modality {
	case "mri", "ct":
		return true
	}
	switch match.Definition.BundleType {
	case "mri", "ct":
		return true
	}
	return false
}

func toCodeSet(codes []string) map[string]struct{} {
	s := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		s[c] = struct{}{}
	}
	return s
}
