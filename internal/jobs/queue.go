package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/CondeArmand/gamemate-backend/internal/enrichment"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	MaxRetry      int
	TaskTimeout   time.Duration
}

type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector *asynq.Inspector

	maxRetry    int
	taskTimeout time.Duration
	logger      *zap.Logger
}

func NewQueue(cfg Config, logger *zap.Logger) *Queue {
	logger = logger.Named("queue")
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: logger.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn("task failed",
					zap.String("task_type", t.Type()),
					zap.Int("retry", retried), zap.Int("max_retry", maxRetry),
					zap.Error(err))
			}),
		},
	)
	mux := asynq.NewServeMux()
	inspector := asynq.NewInspector(redisOpt)
	return &Queue{
		client:      client,
		server:      server,
		mux:         mux,
		inspector:   inspector,
		maxRetry:    cfg.MaxRetry,
		taskTimeout: cfg.TaskTimeout,
		logger:      logger,
	}
}

// isTaskConflict checks whether the error indicates a task ID conflict,
// using errors.Is for unwrapped sentinel values and a string fallback.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}

// EnqueueUnique enqueues a task with a deterministic TaskID so a repeated
// sync does not pile up duplicate work for the same user or game. A task
// already holding the ID that is not running (pending, scheduled, retry,
// archived or completed) is deleted and replaced, so the newest payload
// wins. An active task cannot be deleted; the enqueue is then skipped and
// its payload is not refreshed until the next enqueue.
func (q *Queue) EnqueueUnique(ctx context.Context, taskType string, payload interface{}, uniqueID string, opts ...asynq.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	opts = append(opts, asynq.TaskID(uniqueID))
	task := asynq.NewTask(taskType, data, opts...)
	info, err := q.client.EnqueueContext(ctx, task)
	if err == nil {
		return info.ID, nil
	}

	if !isTaskConflict(err) {
		return "", fmt.Errorf("enqueue: %w", err)
	}

	cleared := false
	for _, queueName := range []string{QueueDefault, QueueCritical, QueueLow} {
		if delErr := q.inspector.DeleteTask(queueName, uniqueID); delErr == nil {
			q.logger.Debug("cleared stale task", zap.String("task_id", uniqueID), zap.String("queue", queueName))
			cleared = true
			break
		}
	}

	if cleared {
		info, err = q.client.EnqueueContext(ctx, task)
		if err == nil {
			return info.ID, nil
		}
	}

	// Still conflicting: the task is active.
	if isTaskConflict(err) {
		q.logger.Debug("task already queued, skipping", zap.String("task_type", taskType), zap.String("task_id", uniqueID))
		return uniqueID, nil
	}
	return "", fmt.Errorf("enqueue: %w", err)
}

func (q *Queue) RegisterHandler(taskType string, handler asynq.Handler) {
	q.mux.Handle(taskType, handler)
}

// EnqueueSync schedules a library sync for the user.
func (q *Queue) EnqueueSync(ctx context.Context, userID, steamID string) (string, error) {
	return q.EnqueueUnique(ctx, TaskSyncLibrary,
		SyncLibraryPayload{UserID: userID, SteamID: steamID},
		SyncTaskID(userID), asynq.Queue(QueueCritical), asynq.MaxRetry(q.maxRetry))
}

// EnqueueEnrich schedules one game enrichment. It satisfies
// librarysync.Enqueuer.
func (q *Queue) EnqueueEnrich(ctx context.Context, t enrichment.Task) error {
	p, err := NewEnrichGamePayload(t)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(q.maxRetry)}
	if q.taskTimeout > 0 {
		opts = append(opts, asynq.Timeout(q.taskTimeout))
	}
	_, err = q.EnqueueUnique(ctx, TaskEnrichGame, p, EnrichTaskID(t.UserID, t.SteamAppID), opts...)
	return err
}

// Stats reports the state of every known queue.
func (q *Queue) Stats() ([]*asynq.QueueInfo, error) {
	names, err := q.inspector.Queues()
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	out := make([]*asynq.QueueInfo, 0, len(names))
	for _, name := range names {
		info, err := q.inspector.GetQueueInfo(name)
		if err != nil {
			return nil, fmt.Errorf("queue %s: %w", name, err)
		}
		out = append(out, info)
	}
	return out, nil
}

func (q *Queue) Start(ctx context.Context) error {
	q.logger.Info("job queue worker starting")
	return q.server.Start(q.mux)
}

// Stop shuts the worker down, waiting for active tasks up to asynq's
// shutdown timeout. The client stays usable until Close.
func (q *Queue) Stop() {
	q.server.Shutdown()
}

func (q *Queue) Close() {
	q.client.Close()
	q.inspector.Close()
}
