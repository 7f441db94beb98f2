package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
)

// PostgresGateway is the production Gateway over the PostgreSQL reference
// schema (see migrations/). All lookups are reads; the schema is loaded once
// before a batch and treated as immutable while it runs.
type PostgresGateway struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresGateway creates a gateway over an existing connection pool.
func NewPostgresGateway(db *pgxpool.Pool, logger *logrus.Logger) *PostgresGateway {
	return &PostgresGateway{db: db, log: logger}
}

// AncillaryCodes returns every code whose category is flagged ancillary.
func (g *PostgresGateway) AncillaryCodes(ctx context.Context) (map[string]struct{}, error) {
	query := `
		SELECT pc.code
		FROM procedure_categories pc
		JOIN categories c ON c.name = pc.category
		WHERE c.ancillary = TRUE`

	rows, err := g.db.Query(ctx, query)
	if err != nil {
		g.log.WithError(err).Error("Failed to load ancillary codes")
		return nil, fmt.Errorf("loading ancillary codes: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning ancillary code: %w", err)
		}
		codes[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ancillary codes: %w", err)
	}
	return codes, nil
}

// CategoryFor returns the configured category dimension row for a code.
func (g *PostgresGateway) CategoryFor(ctx context.Context, code string) (string, bool, error) {
	query := `SELECT category FROM procedure_categories WHERE code = $1`

	var category string
	err := g.db.QueryRow(ctx, query, code).Scan(&category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		g.log.WithFields(logrus.Fields{"code": code, "error": err}).Error("Failed to look up category")
		return "", false, fmt.Errorf("looking up category for %s: %w", code, err)
	}
	return category, true, nil
}

// PPORate returns the contracted rate for (tin, code, modifier). The TIN is
// normalized first; an invalid TIN fails closed. An empty modifier selects
// the unmodified rate row.
func (g *PostgresGateway) PPORate(ctx context.Context, tin, code, modifier string) (decimal.Decimal, bool, error) {
	normalized, ok := NormalizeTIN(tin)
	if !ok {
		g.log.WithField("tin", tin).Debug("Invalid TIN, PPO lookup fails closed")
		return decimal.Zero, false, nil
	}

	query := `
		SELECT rate FROM ppo_rates
		WHERE tin = $1 AND code = $2 AND modifier = $3`

	var rate decimal.Decimal
	err := g.db.QueryRow(ctx, query, normalized, code, modifier).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		g.log.WithFields(logrus.Fields{"tin": normalized, "code": code, "error": err}).Error("Failed to look up PPO rate")
		return decimal.Zero, false, fmt.Errorf("looking up PPO rate for %s/%s: %w", normalized, code, err)
	}
	return rate, true, nil
}

// OTARate returns a one-time-agreement rate negotiated for an order.
func (g *PostgresGateway) OTARate(ctx context.Context, orderID, code string) (decimal.Decimal, bool, error) {
	query := `SELECT rate FROM ota_rates WHERE order_id = $1 AND code = $2`

	var rate decimal.Decimal
	err := g.db.QueryRow(ctx, query, orderID, code).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		g.log.WithFields(logrus.Fields{"order_id": orderID, "code": code, "error": err}).Error("Failed to look up OTA rate")
		return decimal.Zero, false, fmt.Errorf("looking up OTA rate for %s/%s: %w", orderID, code, err)
	}
	return rate, true, nil
}

// Provider returns the billing provider behind an order.
func (g *PostgresGateway) Provider(ctx context.Context, orderID string) (*domain.Provider, bool, error) {
	query := `
		SELECT p.tin, p.name, p.network_status
		FROM providers p
		JOIN orders o ON o.provider_id = p.id
		WHERE o.id = $1`

	var provider domain.Provider
	err := g.db.QueryRow(ctx, query, orderID).Scan(&provider.TIN, &provider.Name, &provider.NetworkStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		g.log.WithFields(logrus.Fields{"order_id": orderID, "error": err}).Error("Failed to look up provider")
		return nil, false, fmt.Errorf("looking up provider for order %s: %w", orderID, err)
	}
	return &provider, true, nil
}

// Order returns the referral order and its authorized line items.
func (g *PostgresGateway) Order(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	var order domain.Order
	err := g.db.QueryRow(ctx, `SELECT id, provider_id FROM orders WHERE id = $1`, orderID).
		Scan(&order.ID, &order.ProviderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		g.log.WithFields(logrus.Fields{"order_id": orderID, "error": err}).Error("Failed to look up order")
		return nil, false, fmt.Errorf("looking up order %s: %w", orderID, err)
	}

	rows, err := g.db.Query(ctx, `
		SELECT code, modifiers, units, description
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_no`, orderID)
	if err != nil {
		return nil, false, fmt.Errorf("loading order lines for %s: %w", orderID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		var modifiers string
		if err := rows.Scan(&line.ProcedureCode, &modifiers, &line.Units, &line.Description); err != nil {
			return nil, false, fmt.Errorf("scanning order line: %w", err)
		}
		line.Modifiers = domain.NormalizeModifiers(modifiers)
		order.Lines = append(order.Lines, &line)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating order lines: %w", err)
	}
	return &order, true, nil
}
