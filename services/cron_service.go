package services

import (
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/vectorstore"

	"github.com/go-co-op/gocron"
)

// CronService flushes the in-memory index to its snapshot on a fixed
// interval, so a crash between mutation snapshots loses at most one
// interval of writes.
type CronService struct {
	scheduler *gocron.Scheduler
	store     *vectorstore.Store
	path      string
	interval  time.Duration
}

func NewCronService(cfg *config.Config, store *vectorstore.Store) *CronService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &CronService{
		scheduler: s,
		store:     store,
		path:      cfg.SnapshotPath,
		interval:  time.Duration(cfg.SnapshotInterval) * time.Minute,
	}
}

// Start registers the flush job and runs the scheduler in the
// background.
func (c *CronService) Start() error {
	_, err := c.scheduler.Every(c.interval).Tag("vector-snapshot").Do(c.flush)
	if err != nil {
		return err
	}
	c.scheduler.StartAsync()
	logger.Info("snapshot scheduler started", "interval", c.interval.String())
	return nil
}

// Stop halts the scheduler and writes one final snapshot.
func (c *CronService) Stop() {
	c.scheduler.Stop()
	c.flush()
}

func (c *CronService) flush() {
	if err := c.store.Save(c.path); err != nil {
		logger.Error("periodic snapshot failed", "error", err)
		return
	}
	logger.Debug("periodic snapshot written", "chunks", c.store.Len())
}
