package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

func newTestClassifier(gateway *fakeGateway) *IntentClassifier {
	return NewIntentClassifier(gateway, reference.DefaultCodeTables(), testLogger())
}

func TestClassifyUsesGatewayCategoryFirst(t *testing.T) {
	gateway := newFakeGateway()
	gateway.categories["73722"] = "advanced_imaging"

	intent, err := newTestClassifier(gateway).Classify(context.Background(), []string{"73722"})
	require.NoError(t, err)
	assert.Equal(t, "advanced_imaging", intent.Category)
	assert.Equal(t, "mri", intent.Modality)
	assert.Equal(t, []string{"lower_extremity"}, intent.BodyParts)
}

func TestClassifyFallsBackToModalityThenPrefix(t *testing.T) {
	gateway := newFakeGateway()
	classifier := newTestClassifier(gateway)

	// Known modality code, no gateway category.
	intent, err := classifier.Classify(context.Background(), []string{"97110"})
	require.NoError(t, err)
	assert.Equal(t, "physical_therapy", intent.Category)

	// No modality entry either; the three-digit prefix bucket decides.
	intent, err = classifier.Classify(context.Background(), []string{"97012"})
	require.NoError(t, err)
	assert.Equal(t, "physical_medicine", intent.Category)
}

func TestClassifyUnknownCode(t *testing.T) {
	intent, err := newTestClassifier(newFakeGateway()).Classify(context.Background(), []string{"99999"})
	require.NoError(t, err)
	assert.True(t, intent.IsUnknown())
}

func TestClassifyConfidence(t *testing.T) {
	gateway := newFakeGateway()
	classifier := newTestClassifier(gateway)
	ctx := context.Background()

	// Homogeneous code set: full confidence.
	intent, err := classifier.Classify(ctx, []string{"73721", "73722"})
	require.NoError(t, err)
	assert.Equal(t, 100, intent.Confidence)

	// Four codes, four different categories: the raw fraction is 25 but
	// confidence never drops below the floor.
	intent, err = classifier.Classify(ctx, []string{"73722", "70450", "97110", "95886"})
	require.NoError(t, err)
	assert.Equal(t, 30, intent.Confidence)
}

func TestCompareFullMatch(t *testing.T) {
	classifier := newTestClassifier(newFakeGateway())

	comparison, err := classifier.Compare(context.Background(),
		[]string{"73721"}, []string{"73722"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFullMatch, comparison.Outcome)
}

func TestCompareBodyPartMismatch(t *testing.T) {
	classifier := newTestClassifier(newFakeGateway())

	// Lumbar spine ordered, cervical spine billed: same category and
	// modality, disjoint body parts.
	comparison, err := classifier.Compare(context.Background(),
		[]string{"72148"}, []string{"72141"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentBodyPartMismatch, comparison.Outcome)
}

func TestCompareIntentMismatch(t *testing.T) {
	classifier := newTestClassifier(newFakeGateway())

	comparison, err := classifier.Compare(context.Background(),
		[]string{"97110"}, []string{"73722"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentMismatch, comparison.Outcome)
}

func TestCompareIncompleteData(t *testing.T) {
	classifier := newTestClassifier(newFakeGateway())

	comparison, err := classifier.Compare(context.Background(),
		[]string{"73722"}, []string{"99999"})
	require.NoError(t, err)
	assert.Equal(t, domain.IntentIncompleteData, comparison.Outcome)
}
