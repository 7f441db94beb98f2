package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/claimcheck/internal/domain"
)

// ResilientGateway wraps a remote Gateway with a circuit breaker and a rate
// limiter. An open breaker means the reference store is effectively
// unreachable; per the error taxonomy that is batch-fatal, so it surfaces as
// ErrStoreUnavailable rather than as a per-claim not-found.
type ResilientGateway struct {
	next    Gateway
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     *logrus.Logger
}

// NewResilientGateway wraps next. lookupsPerSecond caps the outbound lookup
// rate; zero disables limiting.
func NewResilientGateway(next Gateway, lookupsPerSecond float64, logger *logrus.Logger) *ResilientGateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "reference-store",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Reference store circuit breaker state changed")
		},
	})

	var limiter *rate.Limiter
	if lookupsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(lookupsPerSecond), int(lookupsPerSecond)+1)
	}

	return &ResilientGateway{
		next:    next,
		breaker: breaker,
		limiter: limiter,
		log:     logger,
	}
}

func (g *ResilientGateway) execute(ctx context.Context, op func() (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	result, err := g.breaker.Execute(op)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", domain.ErrStoreUnavailable)
		}
		return nil, err
	}
	return result, nil
}

type rateReply struct {
	rate  decimal.Decimal
	found bool
}

// AncillaryCodes loads the ancillary code set through the breaker.
func (g *ResilientGateway) AncillaryCodes(ctx context.Context) (map[string]struct{}, error) {
	result, err := g.execute(ctx, func() (interface{}, error) {
		return g.next.AncillaryCodes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]struct{}), nil
}

// CategoryFor looks up a code's category through the breaker.
func (g *ResilientGateway) CategoryFor(ctx context.Context, code string) (string, bool, error) {
	result, err := g.execute(ctx, func() (interface{}, error) {
		category, found, err := g.next.CategoryFor(ctx, code)
		if err != nil {
			return nil, err
		}
		return categoryEntry{Category: category, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	entry := result.(categoryEntry)
	return entry.Category, entry.Found, nil
}

// PPORate looks up a contracted rate through the breaker.
func (g *ResilientGateway) PPORate(ctx context.Context, tin, code, modifier string) (decimal.Decimal, bool, error) {
	result, err := g.execute(ctx, func() (interface{}, error) {
		r, found, err := g.next.PPORate(ctx, tin, code, modifier)
		if err != nil {
			return nil, err
		}
		return rateReply{rate: r, found: found}, nil
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	reply := result.(rateReply)
	return reply.rate, reply.found, nil
}

// OTARate looks up a one-time-agreement rate through the breaker.
func (g *ResilientGateway) OTARate(ctx context.Context, orderID, code string) (decimal.Decimal, bool, error) {
	result, err := g.execute(ctx, func() (interface{}, error) {
		r, found, err := g.next.OTARate(ctx, orderID, code)
		if err != nil {
			return nil, err
		}
		return rateReply{rate: r, found: found}, nil
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	reply := result.(rateReply)
	return reply.rate, reply.found, nil
}

// Provider looks up an order's provider through the breaker.
func (g *ResilientGateway) Provider(ctx context.Context, orderID string) (*domain.Provider, bool, error) {
	result, err := g.execute(ctx, func() (interface{}, error) {
		provider, found, err := g.next.Provider(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !found {
			return (*domain.Provider)(nil), nil
		}
		return provider, nil
	})
	if err != nil {
		return nil, false, err
	}
	provider := result.(*domain.Provider)
	return provider, provider != nil, nil
}

// Order looks up a referral order through the breaker.
func (g *ResilientGateway) Order(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	result, err := g.execute(ctx, func() (interface{}, error) {
		order, found, err := g.next.Order(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !found {
			return (*domain.Order)(nil), nil
		}
		return order, nil
	})
	if err != nil {
		return nil, false, err
	}
	order := result.(*domain.Order)
	return order, order != nil, nil
}
