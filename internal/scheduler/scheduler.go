package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/models"
)

// runTimeout bounds one pass over every linked account.
const runTimeout = 5 * time.Minute

type Accounts interface {
	ListLinkedAccounts(ctx context.Context, provider models.Provider) ([]models.LinkedAccount, error)
}

type SyncEnqueuer interface {
	EnqueueSync(ctx context.Context, userID, steamID string) (string, error)
}

// Scheduler periodically enqueues a library sync for every linked Steam
// account.
type Scheduler struct {
	accounts Accounts
	enqueuer SyncEnqueuer
	cron     *cron.Cron
	logger   *zap.Logger
}

// New creates a scheduler firing on spec, a standard cron expression or a
// descriptor such as "@every 24h". An empty spec yields a scheduler whose
// Start is a no-op.
func New(accounts Accounts, enqueuer SyncEnqueuer, spec string, logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("scheduler")
	s := &Scheduler{accounts: accounts, enqueuer: enqueuer, logger: logger}
	if spec == "" {
		return s, nil
	}
	cl := cronLogger{logger.Sugar()}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("resync schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	if s.cron == nil {
		s.logger.Info("periodic re-sync disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("periodic re-sync started", zap.Time("next", s.cron.Entries()[0].Next))
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled re-sync failed", zap.Error(err))
	}
}

// RunOnce enqueues a sync for every linked Steam account and returns how
// many were enqueued. Individual enqueue failures are logged and skipped.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	accounts, err := s.accounts.ListLinkedAccounts(ctx, models.ProviderSteam)
	if err != nil {
		return 0, fmt.Errorf("list linked accounts: %w", err)
	}

	enqueued := 0
	for _, a := range accounts {
		if _, err := s.enqueuer.EnqueueSync(ctx, a.UserID, a.ProviderAccountID); err != nil {
			s.logger.Warn("enqueue sync failed", zap.String("user_id", a.UserID), zap.Error(err))
			continue
		}
		enqueued++
	}
	s.logger.Info("re-sync enqueued", zap.Int("accounts", len(accounts)), zap.Int("enqueued", enqueued))
	return enqueued, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
