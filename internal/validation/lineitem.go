package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// LineItemMatcher verifies that every billed claim line is backed by an order
// line. Matching is first-hit over the order lines in position, and an order
// line is consumed once matched so duplicate billing cannot ride on one
// authorization.
type LineItemMatcher struct {
	gateway reference.Gateway
	log     *logrus.Logger
}

// NewLineItemMatcher creates a matcher over the gateway's category dimension.
func NewLineItemMatcher(gateway reference.Gateway, logger *logrus.Logger) *LineItemMatcher {
	return &LineItemMatcher{gateway: gateway, log: logger}
}

// Match matches claim lines against order lines. Either side empty is an
// immediate failure. Claim codes with no order counterpart are reported as
// missing codes and fail the stage. Component-billing splits (TC or 26 on a
// line whose order counterpart is billed global) are recorded as metadata
// with a global-vs-component note in the messages, and never fail on their
// own.
func (m *LineItemMatcher) Match(ctx context.Context, order *domain.Order, claim *domain.Claim) (*domain.LineItemResult, error) {
	result := &domain.LineItemResult{Status: domain.StatusPass}

	if order == nil || len(order.Lines) == 0 {
		result.Status = domain.StatusFail
		result.Messages = append(result.Messages, "order has no authorized line items")
		return result, nil
	}
	if claim == nil || len(claim.Lines) == 0 {
		result.Status = domain.StatusFail
		result.Messages = append(result.Messages, "claim has no billable line items")
		return result, nil
	}

	// Component splits bill the same authorized study twice (TC line plus 26
	// line), so splits share one order line instead of consuming it.
	consumed := make(map[int]bool, len(order.Lines))
	componentMatched := make(map[int]bool, len(order.Lines))

	for _, line := range claim.Lines {
		isComponent := line.HasModifier(domain.ModifierTechnical) ||
			line.HasModifier(domain.ModifierProfessional)

		matchedAt := -1
		for i, orderLine := range order.Lines {
			if consumed[i] {
				continue
			}
			equivalent, err := m.equivalent(ctx, line.ProcedureCode, orderLine.ProcedureCode)
			if err != nil {
				return nil, err
			}
			if equivalent {
				matchedAt = i
				break
			}
		}

		if matchedAt == -1 {
			result.MissingCodes = append(result.MissingCodes, line.ProcedureCode)
			continue
		}

		if isComponent {
			componentMatched[matchedAt] = true
			componentType := "technical"
			if line.HasModifier(domain.ModifierProfessional) {
				componentType = "professional"
			}
			result.ComponentBilling = append(result.ComponentBilling, domain.ComponentBilling{
				LineIndex:          line.Index,
				ProcedureCode:      line.ProcedureCode,
				IsComponentBilling: true,
				ComponentType:      componentType,
			})
			result.Messages = append(result.Messages, fmt.Sprintf(
				"CPT %s billed as %s component against a global order line",
				line.ProcedureCode, componentType))
		} else {
			consumed[matchedAt] = true
			if componentMatched[matchedAt] {
				result.ComponentBilling = append(result.ComponentBilling, domain.ComponentBilling{
					LineIndex:     line.Index,
					ProcedureCode: line.ProcedureCode,
					BilledGlobal:  true,
				})
				result.Messages = append(result.Messages, fmt.Sprintf(
					"CPT %s billed global alongside component billing of the same order line",
					line.ProcedureCode))
			}
		}
	}

	if len(result.MissingCodes) > 0 {
		sort.Strings(result.MissingCodes)
		result.Status = domain.StatusFail
		result.Messages = append(result.Messages, fmt.Sprintf(
			"claim bills codes not present on the order: %s",
			strings.Join(result.MissingCodes, ", ")))
		m.log.WithFields(logrus.Fields{
			"order_id":      order.ID,
			"missing_codes": result.MissingCodes,
		}).Debug("Unauthorized claim codes")
	}
	return result, nil
}

// equivalent reports whether a billed code satisfies an ordered code. Exact
// match always does. Imaging codes (prefix "7") are interchangeable when they
// share a category and their first four digits. Therapeutic codes (prefix
// "2") are interchangeable on enough of a common prefix alone, so a
// substitution survives a sparse category table.
func (m *LineItemMatcher) equivalent(ctx context.Context, claimCode, orderCode string) (bool, error) {
	if claimCode == orderCode {
		return true, nil
	}
	if len(claimCode) < 4 || len(orderCode) < 4 {
		return false, nil
	}

	switch {
	case strings.HasPrefix(claimCode, "7") && strings.HasPrefix(orderCode, "7"):
		if claimCode[:4] != orderCode[:4] {
			return false, nil
		}
		return m.sameCategory(ctx, claimCode, orderCode)
	case strings.HasPrefix(claimCode, "2") && strings.HasPrefix(orderCode, "2"):
		return prefixSimilarity(claimCode, orderCode) >= 0.8, nil
	}
	return false, nil
}

func (m *LineItemMatcher) sameCategory(ctx context.Context, a, b string) (bool, error) {
	catA, foundA, err := m.gateway.CategoryFor(ctx, a)
	if err != nil {
		return false, fmt.Errorf("matching %s: %w", a, err)
	}
	catB, foundB, err := m.gateway.CategoryFor(ctx, b)
	if err != nil {
		return false, fmt.Errorf("matching %s: %w", b, err)
	}
	if !foundA || !foundB {
		return false, nil
	}
	return catA == catB, nil
}

// prefixSimilarity is the shared leading-character count over the longer
// code's length.
func prefixSimilarity(a, b string) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	shared := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			break
		}
		shared++
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return float64(shared) / float64(longest)
}
