package bundles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"bundles": [
			{
				"name": "knee_arthrogram",
				"bundle_type": "arthrogram",
				"body_part": "knee",
				"modality": "mri",
				"core_codes": ["73722", "27370"],
				"optional_codes": ["77002"],
				"rate": 1250.00,
				"allowed_modifiers": ["rt", "lt"],
				"unit_caps": {"73722": 1}
			},
			{
				"name": "no_rate_bundle",
				"bundle_type": "emg",
				"core_codes": ["95886"]
			}
		]
	}`), 0o644))

	defs, err := LoadDefinitions(path, quietLogger())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	knee := defs[0]
	assert.Equal(t, "knee_arthrogram", knee.Name)
	assert.True(t, knee.HasRate)
	assert.Equal(t, 1250.00, knee.Rate)
	assert.Contains(t, knee.CoreCodes, "73722")
	assert.Contains(t, knee.OptionalCodes, "77002")
	assert.Equal(t, []string{"RT", "LT"}, knee.AllowedModifiers)
	assert.Equal(t, 1, knee.UnitCaps["73722"])

	assert.False(t, defs[1].HasRate)
}

func TestLoadDefinitionsMissingFileIsEmpty(t *testing.T) {
	defs, err := LoadDefinitions(filepath.Join(t.TempDir(), "absent.json"), quietLogger())
	require.NoError(t, err)
	assert.Nil(t, defs)
}

func TestLoadDefinitionsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundles.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := LoadDefinitions(path, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorruptConfiguration)
}

func TestLoadEquivalenceGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equivalence.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"groups": [
			{"name": "mri_lumbar", "codes": ["72148", "72149", "72158"]},
			{"name": "scoped", "tin": "591262719", "codes": ["70551", "70553"]}
		]
	}`), 0o644))

	groups, err := LoadEquivalenceGroups(path, quietLogger())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "mri_lumbar", groups[0].Name)
}

func TestEquivalentCodes(t *testing.T) {
	groups := []domain.EquivalenceGroup{
		{Name: "mri_lumbar", Codes: []string{"72148", "72149", "72158"}},
		{Name: "scoped", TIN: "591262719", Codes: []string{"70551", "70553"}},
	}

	// Unscoped group applies to any provider.
	assert.Equal(t, []string{"72149", "72158"}, EquivalentCodes(groups, "72148", "111111111"))

	// Scoped group only applies to its TIN.
	assert.Equal(t, []string{"70553"}, EquivalentCodes(groups, "70551", "591262719"))
	assert.Empty(t, EquivalentCodes(groups, "70551", "111111111"))

	// Unknown code yields nothing.
	assert.Empty(t, EquivalentCodes(groups, "99999", "591262719"))
}
