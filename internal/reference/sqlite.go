package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/claimcheck/internal/domain"
)

// SQLiteGateway is the embedded Gateway used for standalone and offline batch
// runs. It speaks the same contract as PostgresGateway over a local SQLite
// file, creating the schema on first open.
type SQLiteGateway struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteGateway opens (or creates) the reference database at dbPath.
func NewSQLiteGateway(dbPath string, logger *logrus.Logger) (*SQLiteGateway, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating reference db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening reference db: %w", err)
	}

	// WAL keeps concurrent batch workers from blocking on reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := createReferenceSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating reference schema: %w", err)
	}

	g := newSQLGateway(db, logger)
	g.dbPath = dbPath
	return g, nil
}

// newSQLGateway wraps an existing database handle. Split out so tests can
// inject a mocked handle.
func newSQLGateway(db *sql.DB, logger *logrus.Logger) *SQLiteGateway {
	return &SQLiteGateway{db: db, log: logger}
}

func createReferenceSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		name      TEXT PRIMARY KEY,
		ancillary INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS procedure_categories (
		code     TEXT PRIMARY KEY,
		category TEXT NOT NULL REFERENCES categories(name)
	);
	CREATE TABLE IF NOT EXISTS providers (
		id             TEXT PRIMARY KEY,
		tin            TEXT NOT NULL,
		name           TEXT NOT NULL DEFAULT '',
		network_status TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS orders (
		id          TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL REFERENCES providers(id)
	);
	CREATE TABLE IF NOT EXISTS order_lines (
		order_id    TEXT NOT NULL REFERENCES orders(id),
		line_no     INTEGER NOT NULL,
		code        TEXT NOT NULL,
		modifiers   TEXT NOT NULL DEFAULT '',
		units       INTEGER NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (order_id, line_no)
	);
	CREATE TABLE IF NOT EXISTS ppo_rates (
		tin      TEXT NOT NULL,
		code     TEXT NOT NULL,
		modifier TEXT NOT NULL DEFAULT '',
		rate     TEXT NOT NULL,
		PRIMARY KEY (tin, code, modifier)
	);
	CREATE TABLE IF NOT EXISTS ota_rates (
		order_id TEXT NOT NULL,
		code     TEXT NOT NULL,
		rate     TEXT NOT NULL,
		PRIMARY KEY (order_id, code)
	);
	CREATE INDEX IF NOT EXISTS idx_ppo_rates_tin ON ppo_rates(tin);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// AncillaryCodes returns every code whose category is flagged ancillary.
func (g *SQLiteGateway) AncillaryCodes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT pc.code
		FROM procedure_categories pc
		JOIN categories c ON c.name = pc.category
		WHERE c.ancillary = 1`)
	if err != nil {
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
func (g *SQLiteGateway) CategoryFor(ctx context.Context, code string) (string, bool, error) {
	var category string
	err := g.db.QueryRowContext(ctx,
		`SELECT category FROM procedure_categories WHERE code = ?`, code).Scan(&category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("looking up category for %s: %w", code, err)
	}
	return category, true, nil
}

// PPORate returns the contracted rate for (tin, code, modifier), failing
// closed on an invalid TIN.
func (g *SQLiteGateway) PPORate(ctx context.Context, tin, code, modifier string) (decimal.Decimal, bool, error) {
	normalized, ok := NormalizeTIN(tin)
	if !ok {
		return decimal.Zero, false, nil
	}

	var raw string
	err := g.db.QueryRowContext(ctx,
		`SELECT rate FROM ppo_rates WHERE tin = ? AND code = ? AND modifier = ?`,
		normalized, code, modifier).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("looking up PPO rate for %s/%s: %w", normalized, code, err)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parsing PPO rate %q: %w", raw, err)
	}
	return rate, true, nil
}

// OTARate returns a one-time-agreement rate negotiated for an order.
func (g *SQLiteGateway) OTARate(ctx context.Context, orderID, code string) (decimal.Decimal, bool, error) {
	var raw string
	err := g.db.QueryRowContext(ctx,
		`SELECT rate FROM ota_rates WHERE order_id = ? AND code = ?`, orderID, code).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("looking up OTA rate for %s/%s: %w", orderID, code, err)
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parsing OTA rate %q: %w", raw, err)
	}
	return rate, true, nil
}

// Provider returns the billing provider behind an order.
func (g *SQLiteGateway) Provider(ctx context.Context, orderID string) (*domain.Provider, bool, error) {
	var provider domain.Provider
	err := g.db.QueryRowContext(ctx, `
		SELECT p.tin, p.name, p.network_status
		FROM providers p
		JOIN orders o ON o.provider_id = p.id
		WHERE o.id = ?`, orderID).
		Scan(&provider.TIN, &provider.Name, &provider.NetworkStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("looking up provider for order %s: %w", orderID, err)
	}
	return &provider, true, nil
}

// Order returns the referral order and its authorized line items.
func (g *SQLiteGateway) Order(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	var order domain.Order
	err := g.db.QueryRowContext(ctx,
		`SELECT id, provider_id FROM orders WHERE id = ?`, orderID).
		Scan(&order.ID, &order.ProviderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("looking up order %s: %w", orderID, err)
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT code, modifiers, units, description
		FROM order_lines
		WHERE order_id = ?
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

// Close closes the underlying database handle.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

// Seed helpers used by standalone deployments and tests to load reference
// data into the lite store.

// SeedCategory inserts a category and its ancillary flag.
func (g *SQLiteGateway) SeedCategory(ctx context.Context, name string, ancillary bool) error {
	flag := 0
	if ancillary {
		flag = 1
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO categories (name, ancillary) VALUES (?, ?)`, name, flag)
	if err != nil {
		return fmt.Errorf("seeding category %s: %w", name, err)
	}
	return nil
}

// SeedProcedureCategory maps a procedure code to a category.
func (g *SQLiteGateway) SeedProcedureCategory(ctx context.Context, code, category string) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO procedure_categories (code, category) VALUES (?, ?)`, code, category)
	if err != nil {
		return fmt.Errorf("seeding procedure category %s: %w", code, err)
	}
	return nil
}

// SeedProvider inserts a provider row.
func (g *SQLiteGateway) SeedProvider(ctx context.Context, id, tin, name, networkStatus string) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO providers (id, tin, name, network_status) VALUES (?, ?, ?, ?)`,
		id, tin, name, networkStatus)
	if err != nil {
		return fmt.Errorf("seeding provider %s: %w", id, err)
	}
	return nil
}

// SeedOrder inserts an order and its authorized lines.
func (g *SQLiteGateway) SeedOrder(ctx context.Context, order *domain.Order) error {
	if _, err := g.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO orders (id, provider_id) VALUES (?, ?)`,
		order.ID, order.ProviderID); err != nil {
		return fmt.Errorf("seeding order %s: %w", order.ID, err)
	}
	for i, line := range order.Lines {
		if _, err := g.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO order_lines (order_id, line_no, code, modifiers, units, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			order.ID, i, line.ProcedureCode, strings.Join(line.Modifiers, ","),
			line.Units, line.Description); err != nil {
			return fmt.Errorf("seeding order line %d for %s: %w", i, order.ID, err)
		}
	}
	return nil
}

// SeedPPORate inserts a contracted rate row. The TIN is normalized before
// storage so lookups against normalized TINs hit.
func (g *SQLiteGateway) SeedPPORate(ctx context.Context, tin, code, modifier string, rate decimal.Decimal) error {
	normalized, ok := NormalizeTIN(tin)
	if !ok {
		return fmt.Errorf("seeding PPO rate: invalid TIN %q", tin)
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ppo_rates (tin, code, modifier, rate) VALUES (?, ?, ?, ?)`,
		normalized, code, modifier, rate.String())
	if err != nil {
		return fmt.Errorf("seeding PPO rate %s/%s: %w", normalized, code, err)
	}
	return nil
}

// SeedOTARate inserts a one-time-agreement rate row.
func (g *SQLiteGateway) SeedOTARate(ctx context.Context, orderID, code string, rate decimal.Decimal) error {
	_, err := g.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ota_rates (order_id, code, rate) VALUES (?, ?, ?)`,
		orderID, code, rate.String())
	if err != nil {
		return fmt.Errorf("seeding OTA rate %s/%s: %w", orderID, code, err)
	}
	return nil
}
