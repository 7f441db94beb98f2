// Package reference provides read-only access to the reference data the
// validators consume: provider PPO rates, one-time-agreement (OTA) rates,
// procedure category dimensions, providers, and referral orders. It also owns
// the consolidated static code tables shared by every validator.
package reference

import (
	"context"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/claimcheck/internal/domain"
)

// Gateway is the reference-data contract the validation core depends on.
// All operations are pure reads. Expected absence is reported through the
// ok/found return, never through an error; errors are reserved for
// infrastructure failures (connection loss, bad SQL), which are batch-fatal.
type Gateway interface {
	// AncillaryCodes returns the set of procedure codes in ancillary
	// categories, which are exempt from normal rate and unit enforcement.
	AncillaryCodes(ctx context.Context) (map[string]struct{}, error)

	// CategoryFor returns the configured category for a procedure code.
	CategoryFor(ctx context.Context, code string) (string, bool, error)

	// PPORate returns the provider's contracted rate for a code, keyed by
	// normalized TIN. A non-empty modifier selects a modifier-specific rate
	// row; no row for that modifier means not found.
	PPORate(ctx context.Context, tin, code, modifier string) (decimal.Decimal, bool, error)

	// OTARate returns a one-time-agreement rate negotiated for an order.
	OTARate(ctx context.Context, orderID, code string) (decimal.Decimal, bool, error)

	// Provider returns the billing provider behind an order.
	Provider(ctx context.Context, orderID string) (*domain.Provider, bool, error)

	// Order returns the referral order with its authorized line items.
	Order(ctx context.Context, orderID string) (*domain.Order, bool, error)
}

// NormalizeTIN strips every non-digit character from a TIN. The second
// return is false unless the result is exactly nine digits; rate lookups for
// an invalid TIN fail closed rather than erroring.
func NormalizeTIN(tin string) (string, bool) {
	var b strings.Builder
	for _, r := range tin {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	return normalized, len(normalized) == 9
}
