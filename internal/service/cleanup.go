package service

import (
	"context"
	"sync"
	"time"

	"campustrade-api/internal/repository"

	"go.uber.org/zap"
)

// CleanupConfig holds configuration for the retention scheduler.
type CleanupConfig struct {
	// RetentionAge is how long read notifications are kept.
	// Default: 30 days
	RetentionAge time.Duration

	// CleanupInterval is how often the cleanup runs. Zero disables the scheduler.
	CleanupInterval time.Duration

	// InitialDelay postpones the first run after Start.
	// Default: 1 minute
	InitialDelay time.Duration
}

// CleanupScheduler periodically deletes read notifications past retention.
type CleanupScheduler struct {
	repo      repository.NotificationRepository
	config    CleanupConfig
	log       *zap.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewCleanupScheduler creates a retention scheduler.
func NewCleanupScheduler(repo repository.NotificationRepository, config CleanupConfig, log *zap.Logger) *CleanupScheduler {
	if config.RetentionAge == 0 {
		config.RetentionAge = 30 * 24 * time.Hour
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = time.Minute
	}

	return &CleanupScheduler{
		repo:   repo,
		config: config,
		log:    log.Named("cleanup"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the scheduler. It does nothing when the interval is zero.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	if s.isRunning || s.config.CleanupInterval <= 0 {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.CleanupInterval)
	s.mu.Unlock()

	s.log.Info("cleanup scheduler started",
		zap.Duration("interval", s.config.CleanupInterval),
		zap.Duration("retention", s.config.RetentionAge))

	go s.run()
}

func (s *CleanupScheduler) run() {
	initial := time.NewTimer(s.config.InitialDelay)
	defer initial.Stop()

	for {
		select {
		case <-initial.C:
			s.runCleanup()
		case <-s.ticker.C:
			s.runCleanup()
		case <-s.stopCh:
			s.log.Info("cleanup scheduler stopped")
			return
		}
	}
}

func (s *CleanupScheduler) runCleanup() {
	deleted, err := s.RunNow()
	if err != nil {
		s.log.Error("notification cleanup failed", zap.Error(err))
		return
	}
	s.log.Info("notification cleanup finished", zap.Int64("deleted", deleted))
}

// Stop stops the scheduler.
func (s *CleanupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow deletes read notifications older than the retention age.
func (s *CleanupScheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	return s.repo.DeleteReadBefore(ctx, time.Now().UTC().Add(-s.config.RetentionAge))
}
