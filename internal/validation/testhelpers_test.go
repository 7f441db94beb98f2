package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/reference"
)

// fakeGateway is an in-memory Gateway for validator tests.
type fakeGateway struct {
	ancillary  map[string]struct{}
	categories map[string]string
	ppo        map[string]decimal.Decimal
	ota        map[string]decimal.Decimal
	providers  map[string]*domain.Provider
	orders     map[string]*domain.Order

	err error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		ancillary:  map[string]struct{}{},
		categories: map[string]string{},
		ppo:        map[string]decimal.Decimal{},
		ota:        map[string]decimal.Decimal{},
		providers:  map[string]*domain.Provider{},
		orders:     map[string]*domain.Order{},
	}
}

func ppoKey(tin, code, modifier string) string {
	return fmt.Sprintf("%s|%s|%s", tin, code, modifier)
}

func (f *fakeGateway) AncillaryCodes(ctx context.Context) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ancillary, nil
}

func (f *fakeGateway) CategoryFor(ctx context.Context, code string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	category, ok := f.categories[code]
	return category, ok, nil
}

func (f *fakeGateway) PPORate(ctx context.Context, tin, code, modifier string) (decimal.Decimal, bool, error) {
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	normalized, ok := reference.NormalizeTIN(tin)
	if !ok {
		return decimal.Zero, false, nil
	}
	rate, ok := f.ppo[ppoKey(normalized, code, modifier)]
	return rate, ok, nil
}

func (f *fakeGateway) OTARate(ctx context.Context, orderID, code string) (decimal.Decimal, bool, error) {
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	rate, ok := f.ota[orderID+"|"+code]
	return rate, ok, nil
}

func (f *fakeGateway) Provider(ctx context.Context, orderID string) (*domain.Provider, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	provider, ok := f.providers[orderID]
	return provider, ok, nil
}

func (f *fakeGateway) Order(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	order, ok := f.orders[orderID]
	return order, ok, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}
