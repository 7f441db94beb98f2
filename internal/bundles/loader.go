// Package bundles loads the static bundle-definition and clinical-equivalence
// configuration documents. Missing files are not an error: detection simply
// runs with an empty configuration and matches nothing.
package bundles

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
)

type bundleDocument struct {
	Bundles []bundleEntry `json:"bundles"`
}

type bundleEntry struct {
	Name              string         `json:"name"`
	BundleType        string         `json:"bundle_type"`
	BodyPart          string         `json:"body_part,omitempty"`
	Modality          string         `json:"modality,omitempty"`
	CoreCodes         []string       `json:"core_codes"`
	OptionalCodes     []string       `json:"optional_codes,omitempty"`
	Rate              *float64       `json:"rate,omitempty"`
	AllowedModifiers  []string       `json:"allowed_modifiers,omitempty"`
	RequiredModifiers []string       `json:"required_modifiers,omitempty"`
	UnitCaps          map[string]int `json:"unit_caps,omitempty"`
}

type equivalenceDocument struct {
	Groups []domain.EquivalenceGroup `json:"groups"`
}

// LoadDefinitions reads bundle definitions from path. A missing file yields
// an empty slice and no error; a file that exists but cannot be parsed is a
// corrupt-configuration error.
func LoadDefinitions(path string, logger *logrus.Logger) ([]*domain.BundleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", path).Info("Bundle configuration not found, detection disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("reading bundle configuration: %w", err)
	}

	var doc bundleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptConfiguration, path, err)
	}

	defs := make([]*domain.BundleDefinition, 0, len(doc.Bundles))
	for _, entry := range doc.Bundles {
		def := &domain.BundleDefinition{
			Name:              entry.Name,
			BundleType:        entry.BundleType,
			BodyPart:          entry.BodyPart,
			Modality:          entry.Modality,
			CoreCodes:         toSet(entry.CoreCodes),
			OptionalCodes:     toSet(entry.OptionalCodes),
			AllowedModifiers:  domain.NormalizeModifiers(entry.AllowedModifiers...),
			RequiredModifiers: domain.NormalizeModifiers(entry.RequiredModifiers...),
			UnitCaps:          entry.UnitCaps,
		}
		if entry.Rate != nil {
			def.Rate = *entry.Rate
			def.HasRate = true
		}
		defs = append(defs, def)
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"bundles": len(defs),
	}).Info("Loaded bundle definitions")
	return defs, nil
}

// LoadEquivalenceGroups reads clinical-equivalence groups from path, with the
// same missing-file tolerance as LoadDefinitions. TINs in scoped groups are
// normalized on load.
func LoadEquivalenceGroups(path string, logger *logrus.Logger) ([]domain.EquivalenceGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", path).Info("Equivalence configuration not found, substitution disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("reading equivalence configuration: %w", err)
	}

	var doc equivalenceDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptConfiguration, path, err)
	}

	logger.WithFields(logrus.Fields{
		"path":   path,
		"groups": len(doc.Groups),
	}).Info("Loaded equivalence groups")
	return doc.Groups, nil
}

// EquivalentCodes returns every code interchangeable with code, honouring
// per-TIN scoping: an unscoped group applies to every provider, a scoped one
// only to its normalized TIN.
func EquivalentCodes(groups []domain.EquivalenceGroup, code, tin string) []string {
	var out []string
	seen := map[string]struct{}{code: {}}
	for _, group := range groups {
		if group.TIN != "" && group.TIN != tin {
			continue
		}
		if !contains(group.Codes, code) {
			continue
		}
		for _, c := range group.Codes {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func toSet(codes []string) map[string]struct{} {
	s := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
