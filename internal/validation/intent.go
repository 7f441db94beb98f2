package validation

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// IntentClassifier infers what a procedure-code set is clinically for
// (category, modality, body parts) independent of exact code match, so two
// different code sets can still be recognized as the same clinical purpose.
type IntentClassifier struct {
	gateway reference.Gateway
	tables  *reference.CodeTables
	log     *logrus.Logger
}

// NewIntentClassifier creates a classifier over the gateway's category
// dimension and the static code-table snapshot.
func NewIntentClassifier(gateway reference.Gateway, tables *reference.CodeTables, logger *logrus.Logger) *IntentClassifier {
	return &IntentClassifier{gateway: gateway, tables: tables, log: logger}
}

// Classify derives the clinical intent of a code set. Category inference
// tiers: the gateway's explicit category dimension, then the static modality
// code sets, then the three-digit prefix bucket as a last resort.
func (c *IntentClassifier) Classify(ctx context.Context, codes []string) (*domain.ClinicalIntent, error) {
	sorted := dedupeSorted(codes)
	if len(sorted) == 0 {
		return &domain.ClinicalIntent{Category: domain.CategoryUnknown}, nil
	}

	categoryCounts := make(map[string]int)
	modalityCounts := make(map[string]int)
	bodyParts := make(map[string]struct{})
	regions := make(map[string]int)

	for _, code := range sorted {
		category, err := c.categoryFor(ctx, code)
		if err != nil {
			return nil, err
		}
		if category != "" {
			categoryCounts[category]++
		}
		if modality, ok := c.tables.ModalityFor(code); ok {
			modalityCounts[modality]++
		}
		if part, ok := c.tables.BodyPartFor(code); ok {
			bodyParts[part] = struct{}{}
		}
		if bucket, ok := c.tables.PrefixBucketFor(code); ok {
			regions[bucket]++
		}
	}

	intent := &domain.ClinicalIntent{Category: domain.CategoryUnknown}

	category, count := dominant(categoryCounts)
	if category != "" {
		intent.Category = category
		confidence := count * 100 / len(sorted)
		if confidence < 30 {
			confidence = 30
		}
		intent.Confidence = confidence
	}
	if modality, _ := dominant(modalityCounts); modality != "" {
		intent.Modality = modality
	}
	if region, _ := dominant(regions); region != "" {
		intent.BodyRegion = region
	}
	for part := range bodyParts {
		intent.BodyParts = append(intent.BodyParts, part)
	}
	sort.Strings(intent.BodyParts)

	if use, ok := c.dominantContrast(sorted); ok {
		intent.Contrast = string(use)
	}

	return intent, nil
}

// categoryFor resolves one code's category through the three tiers.
func (c *IntentClassifier) categoryFor(ctx context.Context, code string) (string, error) {
	category, found, err := c.gateway.CategoryFor(ctx, code)
	if err != nil {
		return "", fmt.Errorf("classifying %s: %w", code, err)
	}
	if found {
		return category, nil
	}
	if modality, ok := c.tables.ModalityFor(code); ok {
		return modality, nil
	}
	if bucket, ok := c.tables.PrefixBucketFor(code); ok {
		return bucket, nil
	}
	return "", nil
}

func (c *IntentClassifier) dominantContrast(codes []string) (domain.ContrastUse, bool) {
	for _, code := range codes {
		use, ok := c.tables.ContrastFor(code)
		if !ok || use == domain.ContrastBoth {
			continue
		}
		return use, true
	}
	return "", false
}

// Compare classifies both sides and relates them. Either side unknown is
// INCOMPLETE_DATA; full equality of category, modality, and body parts is
// FULL_MATCH; agreeing category and modality with disjoint body parts is
// BODY_PART_MISMATCH; everything else is INTENT_MISMATCH.
func (c *IntentClassifier) Compare(ctx context.Context, orderCodes, claimCodes []string) (*domain.IntentComparison, error) {
	orderIntent, err := c.Classify(ctx, orderCodes)
	if err != nil {
		return nil, err
	}
	claimIntent, err := c.Classify(ctx, claimCodes)
	if err != nil {
		return nil, err
	}

	comparison := &domain.IntentComparison{
		OrderIntent: orderIntent,
		ClaimIntent: claimIntent,
	}

	if orderIntent.IsUnknown() || claimIntent.IsUnknown() {
		comparison.Outcome = domain.IntentIncompleteData
		comparison.Detail = "clinical intent could not be determined for one or both sides"
		return comparison, nil
	}

	sameCategory := orderIntent.Category == claimIntent.Category
	sameModality := orderIntent.Modality == claimIntent.Modality
	partsEqual := stringSlicesEqual(orderIntent.BodyParts, claimIntent.BodyParts)

	switch {
	case sameCategory && sameModality && partsEqual:
		comparison.Outcome = domain.IntentFullMatch
	case sameCategory && sameModality &&
		len(orderIntent.BodyParts) > 0 && len(claimIntent.BodyParts) > 0 &&
		disjoint(orderIntent.BodyParts, claimIntent.BodyParts):
		comparison.Outcome = domain.IntentBodyPartMismatch
		comparison.Detail = fmt.Sprintf("ordered body parts %v, billed body parts %v",
			orderIntent.BodyParts, claimIntent.BodyParts)
	default:
		comparison.Outcome = domain.IntentMismatch
		comparison.Detail = fmt.Sprintf(
			"ordered intent %s/%s does not match billed intent %s/%s",
			orderIntent.Category, orderIntent.Modality,
			claimIntent.Category, claimIntent.Modality)
	}
	return comparison, nil
}

func dominant(counts map[string]int) (string, int) {
	best := ""
	bestCount := 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// Sorted iteration keeps the dominant pick deterministic on ties.
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best, bestCount
}

func dedupeSorted(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func disjoint(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return false
		}
	}
	return true
}
