package validation

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// ModifierValidator checks every billed line's modifiers against the layered
// rule tables. Resolution order per line: the bundle's own whitelist when the
// line belongs to a detected bundle, then the global blacklist, then the
// longest-prefix whitelist, and finally deny-all for codes no rule covers.
type ModifierValidator struct {
	tables *reference.CodeTables
	log    *logrus.Logger
}

// NewModifierValidator creates a validator over the code-table snapshot.
func NewModifierValidator(tables *reference.CodeTables, logger *logrus.Logger) *ModifierValidator {
	return &ModifierValidator{tables: tables, log: logger}
}

// Validate checks claim against the modifier rules. bundle may be nil when no
// bundle was detected. Violations come in three kinds: an INVALID modifier
// outside the applicable whitelist, an INCOMPATIBLE pair from one exclusive
// group on the same line, and a bundle-required modifier MISSING_REQUIRED
// across the whole claim.
func (v *ModifierValidator) Validate(claim *domain.Claim, bundle *domain.BundleDefinition) *domain.ModifierResult {
	result := &domain.ModifierResult{Status: domain.StatusPass}

	seen := make(map[string]struct{})
	for _, line := range claim.Lines {
		for _, mod := range line.Modifiers {
			seen[mod] = struct{}{}
		}
		v.checkLine(line, bundle, result)
	}

	if bundle != nil {
		for _, required := range bundle.RequiredModifiers {
			if _, ok := seen[required]; ok {
				continue
			}
			issue := domain.ModifierIssue{
				Kind:      domain.ModifierMissingRequired,
				Modifiers: []string{required},
				Message: fmt.Sprintf("bundle %s requires modifier %s on at least one line",
					bundle.Name, required),
			}
			result.Issues = append(result.Issues, issue)
			result.Messages = append(result.Messages, issue.Message)
		}
	}

	if len(result.Issues) > 0 {
		result.Status = domain.StatusFail
		v.log.WithField("issues", len(result.Issues)).Debug("Modifier violations")
	}
	return result
}

func (v *ModifierValidator) checkLine(line *domain.ClaimLine, bundle *domain.BundleDefinition, result *domain.ModifierResult) {
	if len(line.Modifiers) == 0 {
		return
	}

	allowed := v.allowedFor(line, bundle)
	for _, mod := range line.Modifiers {
		if _, ok := allowed[mod]; ok {
			continue
		}
		issue := domain.ModifierIssue{
			LineIndex:     line.Index,
			ProcedureCode: line.ProcedureCode,
			Kind:          domain.ModifierInvalid,
			Modifiers:     []string{mod},
			Message: fmt.Sprintf("modifier %s is not allowed on CPT %s",
				mod, line.ProcedureCode),
		}
		result.Issues = append(result.Issues, issue)
		result.Messages = append(result.Messages, issue.Message)
	}

	for _, group := range v.tables.ExclusiveGroups {
		var present []string
		for _, mod := range group {
			if line.HasModifier(mod) {
				present = append(present, mod)
			}
		}
		if len(present) > 1 {
			issue := domain.ModifierIssue{
				LineIndex:     line.Index,
				ProcedureCode: line.ProcedureCode,
				Kind:          domain.ModifierIncompatible,
				Modifiers:     present,
				Message: fmt.Sprintf("modifiers %s are mutually exclusive on CPT %s",
					strings.Join(present, " and "), line.ProcedureCode),
			}
			result.Issues = append(result.Issues, issue)
			result.Messages = append(result.Messages, issue.Message)
		}
	}
}

// allowedFor resolves the whitelist applying to one line. A bundle member
// uses the bundle's whitelist verbatim. Otherwise the global blacklist is
// removed from the longest-prefix whitelist; no matching prefix rule means no
// modifiers are allowed at all.
func (v *ModifierValidator) allowedFor(line *domain.ClaimLine, bundle *domain.BundleDefinition) map[string]struct{} {
	allowed := make(map[string]struct{})

	if bundle != nil && line.BundleName != "" {
		for _, mod := range bundle.AllowedModifiers {
			allowed[mod] = struct{}{}
		}
		return allowed
	}

	list, ok := v.tables.AllowedModifiersFor(line.ProcedureCode)
	if !ok {
		return allowed
	}
	for _, mod := range list {
		if _, blacklisted := v.tables.ModifierBlacklist[mod]; blacklisted {
			continue
		}
		allowed[mod] = struct{}{}
	}
	return allowed
}
