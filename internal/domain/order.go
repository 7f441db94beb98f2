package domain

// Order is the referral authorization a claim bills against: the set of
// procedures pre-approved for a patient encounter. Orders are owned by the
// reference store and are read-only to the validation core.
type Order struct {
	ID         string       `json:"id"`
	ProviderID string       `json:"provider_id,omitempty"`
	Lines      []*OrderLine `json:"lines"`
}

// OrderLine is one authorized procedure on an order.
type OrderLine struct {
	ProcedureCode string   `json:"procedure_code"`
	Modifiers     []string `json:"modifiers,omitempty"`
	Units         int      `json:"units"`
	Description   string   `json:"description,omitempty"`
}

// Codes returns the distinct authorized procedure codes on the order.
func (o *Order) Codes() []string {
	seen := make(map[string]struct{}, len(o.Lines))
	codes := make([]string, 0, len(o.Lines))
	for _, line := range o.Lines {
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

// HasModifier reports whether the ordered line carries the given modifier.
func (l *OrderLine) HasModifier(mod string) bool {
	for _, m := range l.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// Provider is the billing identity behind an order. TIN is stored as entered;
// callers normalize it before any rate lookup.
type Provider struct {
	TIN           string `json:"tin"`
	Name          string `json:"name,omitempty"`
	NetworkStatus string `json:"network_status,omitempty"`
}
