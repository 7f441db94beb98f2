package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimcheck/internal/domain"
	"github.com/claimcheck/internal/intake"
)

// stubValidator decides by order ID so routing can be asserted per file.
type stubValidator struct {
	statuses map[string]domain.Status
}

func (s *stubValidator) Validate(ctx context.Context, claim *domain.Claim) *domain.ValidationResult {
	status, ok := s.statuses[claim.OrderID]
	if !ok {
		status = domain.StatusPass
	}
	return &domain.ValidationResult{
		OrderID: claim.OrderID,
		Status:  status,
		Stage:   domain.StageDecided,
	}
}

func newTestRunner(t *testing.T, statuses map[string]domain.Status) (*Runner, domain.BatchConfig) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	root := t.TempDir()
	config := domain.BatchConfig{
		InputDir:   filepath.Join(root, "incoming"),
		SuccessDir: filepath.Join(root, "approved"),
		FailDir:    filepath.Join(root, "denied"),
		ErrorDir:   filepath.Join(root, "errored"),
		Workers:    2,
	}
	require.NoError(t, os.MkdirAll(config.InputDir, 0o755))

	runner := NewRunner(config, intake.NewParser(logger), &stubValidator{statuses: statuses}, logger)
	return runner, config
}

func writeClaim(t *testing.T, dir, name, orderID string) {
	t.Helper()
	content := `{"order_id": "` + orderID + `", "lines": [{"procedure_code": "73722"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunRoutesByOutcome(t *testing.T) {
	runner, config := newTestRunner(t, map[string]domain.Status{
		"ORD-PASS": domain.StatusPass,
		"ORD-FAIL": domain.StatusFail,
	})
	writeClaim(t, config.InputDir, "pass.json", "ORD-PASS")
	writeClaim(t, config.InputDir, "fail.json", "ORD-FAIL")

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Claims)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)

	assert.FileExists(t, filepath.Join(config.SuccessDir, "pass.json"))
	assert.FileExists(t, filepath.Join(config.SuccessDir, "pass.result.json"))
	assert.FileExists(t, filepath.Join(config.FailDir, "fail.json"))
	assert.NoFileExists(t, filepath.Join(config.InputDir, "pass.json"))
}

func TestRunUnparseableClaimGoesToErrorDir(t *testing.T) {
	runner, config := newTestRunner(t, nil)
	require.NoError(t, os.WriteFile(
		filepath.Join(config.InputDir, "broken.json"), []byte("{not json"), 0o644))

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Claims)
	assert.Equal(t, 1, summary.ProcessErrors)
	assert.FileExists(t, filepath.Join(config.ErrorDir, "broken.json"))
	assert.FileExists(t, filepath.Join(config.ErrorDir, "broken.result.json"))
}

func TestRunIgnoresNonJSONFiles(t *testing.T) {
	runner, config := newTestRunner(t, nil)
	require.NoError(t, os.WriteFile(
		filepath.Join(config.InputDir, "notes.txt"), []byte("ignore me"), 0o644))
	writeClaim(t, config.InputDir, "claim.json", "ORD-1")

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Claims)
	assert.FileExists(t, filepath.Join(config.InputDir, "notes.txt"))
}

func TestRunEmptyInputDir(t *testing.T) {
	runner, _ := newTestRunner(t, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Claims)
}

func TestRunMissingInputDirErrors(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	runner := NewRunner(domain.BatchConfig{
		InputDir:   filepath.Join(t.TempDir(), "does-not-exist"),
		SuccessDir: t.TempDir(),
		FailDir:    t.TempDir(),
		ErrorDir:   t.TempDir(),
		Workers:    1,
	}, intake.NewParser(logger), &stubValidator{}, logger)

	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}
