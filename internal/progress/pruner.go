package progress

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner expires resume positions that have not been touched within the
// retention window. Runs nightly.
type Pruner struct {
	repo      *Repository
	retention time.Duration
	logger    *log.Logger
	cron      *cron.Cron
}

// NewPruner creates a pruner with the given retention window.
func NewPruner(repo *Repository, retention time.Duration, logger *log.Logger) *Pruner {
	if logger == nil {
		logger = log.Default()
	}
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	return &Pruner{
		repo:      repo,
		retention: retention,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the nightly prune and runs one immediately to catch up
// after downtime.
func (p *Pruner) Start() error {
	if _, err := p.cron.AddFunc("15 4 * * *", p.runOnce); err != nil {
		return err
	}
	p.cron.Start()
	go p.runOnce()
	return nil
}

// Stop halts the schedule. Does not wait for an in-flight prune.
func (p *Pruner) Stop() {
	p.cron.Stop()
}

func (p *Pruner) runOnce() {
	cutoff := time.Now().Add(-p.retention)
	removed, err := p.repo.PruneOlderThan(cutoff)
	if err != nil {
		p.logger.Printf("resume prune failed: %v", err)
		return
	}
	if removed > 0 {
		p.logger.Printf("pruned %d stale resume positions", removed)
	}
}
