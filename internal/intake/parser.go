// Package intake reads raw HCFA/CMS-1500 claim records and normalizes them
// into domain claims. The format in the wild is loose: modifiers arrive as
// comma lists, arrays, or scalars; units and charges as strings or numbers;
// lines as an array or an index-keyed map. Intake absorbs all of that so the
// validators only ever see one shape.
package intake

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
)

// Parser converts raw claim documents into normalized domain claims.
type Parser struct {
	log *logrus.Logger
}

// NewParser creates a claim parser.
func NewParser(logger *logrus.Logger) *Parser {
	return &Parser{log: logger}
}

type rawClaim struct {
	OrderID       string             `json:"order_id"`
	PatientName   string             `json:"patient_name"`
	DateOfService string             `json:"date_of_service"`
	Lines         []rawLine          `json:"lines"`
	LineItems     map[string]rawLine `json:"line_items"`
}

type rawLine struct {
	ProcedureCode string          `json:"procedure_code"`
	Modifiers     json.RawMessage `json:"modifiers"`
	Units         json.RawMessage `json:"units"`
	Charge        json.RawMessage `json:"charge"`
	DateOfService string          `json:"date_of_service"`
}

// ParseFile reads and normalizes one claim file.
func (p *Parser) ParseFile(path string) (*domain.Claim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening claim file: %w", err)
	}
	defer f.Close()

	claim, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing claim file %s: %w", path, err)
	}
	claim.SourceFile = path
	return claim, nil
}

// Parse reads and normalizes one claim record.
func (p *Parser) Parse(r io.Reader) (*domain.Claim, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading claim: %w", err)
	}

	var raw rawClaim
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidClaim, err)
	}
	if raw.OrderID == "" {
		return nil, fmt.Errorf("%w: missing order_id", domain.ErrInvalidClaim)
	}

	claim := &domain.Claim{
		OrderID:     raw.OrderID,
		PatientName: raw.PatientName,
	}
	if raw.DateOfService != "" {
		if dos, err := parseDate(raw.DateOfService); err == nil {
			claim.DateOfService = dos
		} else {
			p.log.WithFields(logrus.Fields{
				"order_id": raw.OrderID,
				"value":    raw.DateOfService,
			}).Warn("Unparseable date of service, leaving unset")
		}
	}

	for i, rl := range orderedLines(raw) {
		line, err := p.normalizeLine(i, rl)
		if err != nil {
			// A malformed line is skipped, never the whole claim.
			p.log.WithFields(logrus.Fields{
				"order_id": raw.OrderID,
				"line":     i,
				"error":    err,
			}).Warn("Skipping malformed claim line")
			continue
		}
		claim.Lines = append(claim.Lines, line)
	}

	if err := claim.Validate(); err != nil {
		return nil, err
	}
	return claim, nil
}

// orderedLines merges the two accepted line representations. Index-keyed
// maps are sorted numerically so downstream first-hit rules stay stable.
func orderedLines(raw rawClaim) []rawLine {
	if len(raw.Lines) > 0 {
		return raw.Lines
	}
	keys := make([]string, 0, len(raw.LineItems))
	for k := range raw.LineItems {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aerr := strconv.Atoi(keys[i])
		b, berr := strconv.Atoi(keys[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	lines := make([]rawLine, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, raw.LineItems[k])
	}
	return lines
}

func (p *Parser) normalizeLine(index int, raw rawLine) (*domain.ClaimLine, error) {
	code := strings.TrimSpace(raw.ProcedureCode)
	if code == "" {
		return nil, fmt.Errorf("missing procedure code")
	}

	units, err := parseUnits(raw.Units)
	if err != nil {
		return nil, fmt.Errorf("parsing units: %w", err)
	}

	charge, err := parseCharge(raw.Charge)
	if err != nil {
		return nil, fmt.Errorf("parsing charge: %w", err)
	}

	return &domain.ClaimLine{
		Index:         index,
		ProcedureCode: code,
		Modifiers:     parseModifiers(raw.Modifiers),
		Units:         units,
		Charge:        charge,
	}, nil
}

// parseModifiers accepts a JSON array, a separated string, or a scalar and
// normalizes to an ordered upper-cased set.
func parseModifiers(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return domain.NormalizeModifiers(list...)
	}
	var scalar string
	if err := json.Unmarshal(raw, &scalar); err == nil {
		return domain.NormalizeModifiers(scalar)
	}
	return nil
}

// parseUnits accepts a number or numeric string; absent units default to 1.
func parseUnits(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 1, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative units %d", n)
		}
		if n == 0 {
			return 1, nil
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("units %q is not a number", s)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative units %d", n)
		}
		if n == 0 {
			return 1, nil
		}
		return n, nil
	}
	return 0, fmt.Errorf("unsupported units representation %s", string(raw))
}

// parseCharge accepts a number or a decimal string, with or without a
// leading dollar sign.
func parseCharge(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return decimal.NewFromFloat(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("charge %q is not a decimal", s)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported charge representation %s", string(raw))
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006-01-02T15:04:05Z07:00",
	"20060102",
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
