package core

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"vidsift/internal/apperrors"
)

// RescanScheduler triggers periodic scans in serve mode. It stays idle
// unless a cron expression is configured; cache purging is never
// scheduled.
type RescanScheduler struct {
	scanService *ScanService
	roots       []string
	schedule    string
	logger      *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRescanScheduler builds a scheduler over the scan service.
func NewRescanScheduler(scanService *ScanService, roots []string, schedule string, logger *zap.Logger) *RescanScheduler {
	return &RescanScheduler{
		scanService: scanService,
		roots:       roots,
		schedule:    schedule,
		logger:      logger.With(zap.String("component", "rescan_scheduler")),
	}
}

// Start registers the schedule and begins firing. A missing schedule is a
// no-op.
func (s *RescanScheduler) Start() error {
	if s.schedule == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.scanService.Start(s.roots); err != nil {
			if err == apperrors.ErrScanAlreadyRunning {
				s.logger.Debug("Skipping scheduled rescan, scan already running")
				return
			}
			s.logger.Error("Scheduled rescan failed to start", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Rescan scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts scheduling and waits for a firing job handoff.
func (s *RescanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.logger.Info("Rescan scheduler stopped")
	}
}
