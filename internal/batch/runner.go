// Package batch drives directory intake: claim files are picked up from the
// input directory, validated concurrently, and routed to the approved,
// denied, or errored directory with a JSON result written alongside.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/intake"
	"github.com/claimcheck/internal/session"
)

// Validator is the engine the runner drives. Validate must contain its own
// failures: it returns a result, never an error.
type Validator interface {
	Validate(ctx context.Context, claim *domain.Claim) *domain.ValidationResult
}

// Runner processes every claim file in the input directory through a worker
// pool and routes each to its outcome directory.
type Runner struct {
	config    domain.BatchConfig
	parser    *intake.Parser
	validator Validator
	log       *logrus.Logger
}

// NewRunner creates a batch runner.
func NewRunner(config domain.BatchConfig, parser *intake.Parser, validator Validator, logger *logrus.Logger) *Runner {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Runner{config: config, parser: parser, validator: validator, log: logger}
}

// Run validates every .json claim file in the input directory and returns the
// session summary. Individual claim failures never abort the batch; only an
// unreadable input directory does.
func (r *Runner) Run(ctx context.Context) (session.Summary, error) {
	sess := session.New()

	for _, dir := range []string{r.config.SuccessDir, r.config.FailDir, r.config.ErrorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return session.Summary{}, fmt.Errorf("creating outcome directory %s: %w", dir, err)
		}
	}

	entries, err := os.ReadDir(r.config.InputDir)
	if err != nil {
		return session.Summary{}, fmt.Errorf("reading input directory: %w", err)
	}

	files := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < r.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for path := range files {
				r.processFile(ctx, worker, path, sess)
			}
		}(i)
	}

	queued := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		select {
		case files <- filepath.Join(r.config.InputDir, entry.Name()):
			queued++
		case <-ctx.Done():
		}
	}
	close(files)
	wg.Wait()

	summary := sess.Summarize()
	r.log.WithFields(logrus.Fields{
		"session":        summary.SessionID,
		"claims":         summary.Claims,
		"passed":         summary.Passed,
		"failed":         summary.Failed,
		"process_errors": summary.ProcessErrors,
		"approved_total": summary.ApprovedTotal.StringFixed(2),
	}).Info("Batch finished")
	return summary, ctx.Err()
}

func (r *Runner) processFile(ctx context.Context, worker int, path string, sess *session.Session) {
	log := r.log.WithFields(logrus.Fields{"worker": worker, "file": path})

	claim, err := r.parser.ParseFile(path)
	if err != nil {
		log.WithError(err).Warn("Claim file unparseable")
		result := &domain.ValidationResult{
			Status:       domain.StatusProcessError,
			Stage:        domain.StageLoaded,
			ProcessError: err.Error(),
			Messages:     []string{err.Error()},
		}
		sess.Record(result)
		r.route(path, result, log)
		return
	}

	result := r.validator.Validate(ctx, claim)
	sess.Record(result)
	r.route(path, result, log)
}

// route moves the claim file to its outcome directory and writes the result
// JSON next to it.
func (r *Runner) route(path string, result *domain.ValidationResult, log *logrus.Entry) {
	var dir string
	switch result.Status {
	case domain.StatusPass:
		dir = r.config.SuccessDir
	case domain.StatusFail:
		dir = r.config.FailDir
	default:
		dir = r.config.ErrorDir
	}

	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		log.WithError(err).Error("Failed to move claim file")
		return
	}

	resultPath := strings.TrimSuffix(dest, ".json") + ".result.json"
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.WithError(err).Error("Failed to encode result")
		return
	}
	if err := os.WriteFile(resultPath, data, 0o644); err != nil {
		log.WithError(err).Error("Failed to write result file")
		return
	}

	log.WithFields(logrus.Fields{
		"status": result.Status,
		"dest":   dest,
	}).Info("Claim routed")
}
