package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tourcatalog/internal/catalog"
	"github.com/roach88/tourcatalog/internal/journal"
	"github.com/roach88/tourcatalog/internal/schema"
)

// session is an opened catalog plus the resources a command must release.
type session struct {
	store       *catalog.Store
	journal     *journal.Journal
	metrics     *catalog.Metrics
	metricsFile string
}

// openSession opens the catalog described by opts.Config. withJournal also
// opens the ingest journal when one is configured.
func openSession(opts *RootOptions, withJournal bool) (*session, error) {
	cfg := opts.Config
	s := &session{metricsFile: cfg.MetricsFile}

	policy := schema.PolicyStandard
	if cfg.Strict {
		policy = schema.PolicyStrict
	}
	validator, err := schema.NewValidator(policy)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	if withJournal && cfg.Journal() != "" {
		j, err := journal.Open(cfg.Journal())
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = j
	}
	if s.metricsFile != "" {
		s.metrics = catalog.NewMetrics()
	}

	storeOpts := catalog.Options{
		Validator:      validator,
		LockStaleAfter: cfg.LockStaleAfter(),
		Retention:      cfg.Retention(),
		Metrics:        s.metrics,
		Logger:         slog.Default(),
	}
	if s.journal != nil {
		storeOpts.Journal = s.journal
	}

	st, err := catalog.Open(cfg.DBPath, storeOpts)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	s.store = st
	slog.Debug("catalog opened", "path", cfg.DBPath, "policy", policy, "journal", cfg.Journal())
	return s, nil
}

// close releases the journal and flushes metrics. Failures are logged only.
func (s *session) close() {
	if s.metrics != nil {
		if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
			slog.Warn("failed to write metrics", "path", s.metricsFile, "error", err)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			slog.Error("error closing journal", "error", err)
		}
	}
}
