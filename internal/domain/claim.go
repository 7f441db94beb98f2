// Package domain contains the core business entities for HCFA/CMS-1500 claim
// validation: claims, referral orders, bundle definitions, clinical intent, and
// the structured results every validator produces.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ModifierTechnical and ModifierProfessional are the component-billing
// modifiers that split a global procedure into its technical (TC) and
// professional (26) components.
const (
	ModifierTechnical    = "TC"
	ModifierProfessional = "26"
)

// Claim is one submitted HCFA/CMS-1500 invoice. It is read once from a claim
// file, mutated in memory to attach detected bundle metadata, and never
// persisted back by the core.
type Claim struct {
	// OrderID references the referral order this claim bills against.
	OrderID string `json:"order_id"`

	PatientName   string    `json:"patient_name,omitempty"`
	DateOfService time.Time `json:"date_of_service,omitempty"`

	// Lines are kept in ascending line-index order. Several rules (first-hit
	// line matching, primary-component selection) depend on this ordering
	// being stable, so the slice must not be re-sorted after intake.
	Lines []*ClaimLine `json:"lines"`

	// SourceFile is the file the claim was read from, for routing and logs.
	SourceFile string `json:"source_file,omitempty"`
}

// ClaimLine is a single billed procedure on a claim.
type ClaimLine struct {
	Index         int             `json:"index"`
	ProcedureCode string          `json:"procedure_code"`
	Modifiers     []string        `json:"modifiers,omitempty"`
	Units         int             `json:"units"`
	Charge        decimal.Decimal `json:"charge"`

	// Bundle metadata attached by the orchestrator after bundle detection.
	BundleName       string `json:"bundle_name,omitempty"`
	BundleType       string `json:"bundle_type,omitempty"`
	PrimaryComponent bool   `json:"primary_component,omitempty"`
}

// Validate ensures a claim carries the minimum data the validators require.
func (c *Claim) Validate() error {
	if c.OrderID == "" {
		return fmt.Errorf("claim validation: %w", errors.New("order ID is required"))
	}
	for _, line := range c.Lines {
		if line.Units < 0 {
			return fmt.Errorf("claim validation: line %d: %w", line.Index, errors.New("units must not be negative"))
		}
	}
	return nil
}

// Codes returns the distinct procedure codes billed on the claim. Lines with
// no procedure code (malformed input) are skipped.
func (c *Claim) Codes() []string {
	seen := make(map[string]struct{}, len(c.Lines))
	codes := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		if line.ProcedureCode == "" {
			continue
		}
		if _, ok := seen[line.ProcedureCode]; ok {
			continue
		}
		seen[line.ProcedureCode] = struct{}{}
		codes = append(codes, line.ProcedureCode)
	}
	return codes
}

// HasModifier reports whether the line carries the given modifier.
func (l *ClaimLine) HasModifier(mod string) bool {
	for _, m := range l.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// NormalizeModifiers converts any accepted modifier representation (comma or
// space separated string, list, or scalar) into an ordered set of upper-cased
// tokens. Duplicates collapse to the first occurrence; order of first
// appearance is preserved.
func NormalizeModifiers(raw ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range raw {
		for _, tok := range strings.FieldsFunc(r, func(c rune) bool {
			return c == ',' || c == ';' || c == ' ' || c == '\t'
		}) {
			tok = strings.ToUpper(strings.TrimSpace(tok))
			if tok == "" {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

// ProcedureCode is the value type used when comparing billed and ordered
// procedures. Equality is code equality, optionally extended to modifier-set
// equality when the caller asks for it.
type ProcedureCode struct {
	Code      string          `json:"code"`
	Modifiers []string        `json:"modifiers,omitempty"`
	Units     int             `json:"units"`
	Fee       decimal.Decimal `json:"fee,omitempty"`
	Rate      decimal.Decimal `json:"rate,omitempty"`
}

// Matches reports whether two procedure codes refer to the same service.
// With matchModifiers set, the modifier sets must also be equal.
func (p ProcedureCode) Matches(other ProcedureCode, matchModifiers bool) bool {
	if p.Code != other.Code {
		return false
	}
	if !matchModifiers {
		return true
	}
	return modifierSetsEqual(p.Modifiers, other.Modifiers)
}

func modifierSetsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
