package reference

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
)

func newTestGateway(t *testing.T) *SQLiteGateway {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	g, err := NewSQLiteGateway(filepath.Join(t.TempDir(), "reference.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestSQLiteGatewayPPORate(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SeedPPORate(ctx, "59-1262719", "73722", "", decimal.NewFromFloat(850.00)))
	require.NoError(t, g.SeedPPORate(ctx, "59-1262719", "73722", "TC", decimal.NewFromFloat(520.00)))

	// Lookup with a raw, unnormalized TIN must hit the normalized row.
	rate, found, err := g.PPORate(ctx, " 59-1262719 ", "73722", "")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, rate.Equal(decimal.NewFromFloat(850.00)))

	rate, found, err = g.PPORate(ctx, "591262719", "73722", "TC")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, rate.Equal(decimal.NewFromFloat(520.00)))

	// A modifier with no specific row is not found, never the base rate.
	_, found, err = g.PPORate(ctx, "591262719", "73722", "26")
	require.NoError(t, err)
	assert.False(t, found)

	// Invalid TIN fails closed without error.
	_, found, err = g.PPORate(ctx, "59-1262", "73722", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteGatewayAncillaryCodes(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SeedCategory(ctx, "supplies", true))
	require.NoError(t, g.SeedCategory(ctx, "imaging", false))
	require.NoError(t, g.SeedProcedureCategory(ctx, "A4550", "supplies"))
	require.NoError(t, g.SeedProcedureCategory(ctx, "73722", "imaging"))

	codes, err := g.AncillaryCodes(ctx)
	require.NoError(t, err)
	assert.Contains(t, codes, "A4550")
	assert.NotContains(t, codes, "73722")
}

func TestSQLiteGatewayCategoryFor(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SeedCategory(ctx, "imaging", false))
	require.NoError(t, g.SeedProcedureCategory(ctx, "73722", "imaging"))

	category, found, err := g.CategoryFor(ctx, "73722")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "imaging", category)

	_, found, err = g.CategoryFor(ctx, "99999")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteGatewayOrderAndProvider(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SeedProvider(ctx, "prov-1", "59-1262719", "Radiology Assoc", "in_network"))
	require.NoError(t, g.SeedOrder(ctx, &domain.Order{
		ID:         "ORD-100",
		ProviderID: "prov-1",
		Lines: []*domain.OrderLine{
			{ProcedureCode: "73722", Modifiers: []string{"RT"}, Units: 1, Description: "MRI lower extremity with contrast"},
			{ProcedureCode: "27093", Units: 1, Description: "Hip injection for arthrography"},
		},
	}))

	order, found, err := g.Order(ctx, "ORD-100")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "73722", order.Lines[0].ProcedureCode)
	assert.Equal(t, []string{"RT"}, order.Lines[0].Modifiers)

	provider, found, err := g.Provider(ctx, "ORD-100")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "591262719", provider.TIN)

	_, found, err = g.Order(ctx, "ORD-missing")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = g.Provider(ctx, "ORD-missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteGatewayOTARate(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, g.SeedOTARate(ctx, "ORD-100", "95886", decimal.NewFromFloat(212.50)))

	rate, found, err := g.OTARate(ctx, "ORD-100", "95886")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, rate.Equal(decimal.NewFromFloat(212.50)))

	_, found, err = g.OTARate(ctx, "ORD-100", "73722")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteGatewayQueryErrorSurfaces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	g := newSQLGateway(db, logger)

	mock.ExpectQuery("SELECT rate FROM ppo_rates").
		WillReturnError(assert.AnError)

	_, _, err = g.PPORate(context.Background(), "591262719", "73722", "")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
