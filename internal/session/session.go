// Package session accumulates per-claim validation results over one batch run
// and summarizes them. Results are append-only; a recorded result is never
// mutated or replaced.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/claimcheck/internal/domain"
)

// Session is one batch run's result ledger. Safe for concurrent use by the
// batch workers.
type Session struct {
	ID        string
	StartedAt time.Time

	mu      sync.Mutex
	results []*domain.ValidationResult
}

// Summary is the aggregate view of a finished session.
type Summary struct {
	SessionID     string          `json:"session_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Claims        int             `json:"claims"`
	Passed        int             `json:"passed"`
	Failed        int             `json:"failed"`
	ProcessErrors int             `json:"process_errors"`
	ApprovedTotal decimal.Decimal `json:"approved_total"`
}

// New creates a session with a fresh identifier.
func New() *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

// Record appends one claim's result.
func (s *Session) Record(result *domain.ValidationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

// Results returns a snapshot copy of the recorded results.
func (s *Session) Results() []*domain.ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ValidationResult, len(s.results))
	copy(out, s.results)
	return out
}

// Summarize closes out the session into aggregate counts. Only passed claims
// contribute to the approved total.
func (s *Session) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		SessionID:  s.ID,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now().UTC(),
		Claims:     len(s.results),
	}
	for _, r := range s.results {
		switch r.Status {
		case domain.StatusPass:
			summary.Passed++
			summary.ApprovedTotal = summary.ApprovedTotal.Add(r.Total)
		case domain.StatusFail:
			summary.Failed++
		case domain.StatusProcessError:
			summary.ProcessErrors++
		}
	}
	return summary
}
