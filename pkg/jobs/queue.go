// Package jobs runs small retrying background tasks on a fixed worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned when enqueueing on a queue that is not running.
var ErrStopped = errors.New("queue not running")

// Handler processes one payload.
type Handler[T any] func(context.Context, T) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

type job[T any] struct {
	payload T
	attempt int
}

// Queue dispatches payloads of type T to a handler, retrying failures with a fixed delay.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	jobs    chan job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.RWMutex
	started bool
}

// NewQueue builds a queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan job[T], cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop stops accepting work, lets workers drain what is buffered and waits for them.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()

	q.retries.Wait()
	close(q.jobs)
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue pushes a payload onto the queue without blocking past ctx.
func (q *Queue[T]) Enqueue(ctx context.Context, payload T) error {
	return q.push(ctx, job[T]{payload: payload})
}

func (q *Queue[T]) push(ctx context.Context, j job[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started {
		return fmt.Errorf("queue %s: %w", q.name, ErrStopped)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- j:
		return nil
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		if err := q.handler(context.WithoutCancel(q.ctx), j.payload); err != nil {
			q.handleFailure(j, err)
		}
	}
}

func (q *Queue[T]) handleFailure(j job[T], err error) {
	j.attempt++
	if j.attempt > q.cfg.MaxRetries {
		q.logger.Error("job exceeded retries", zap.Int("attempts", j.attempt), zap.Error(err))
		return
	}
	q.logger.Warn("job failed, retrying", zap.Int("attempt", j.attempt), zap.Error(err))

	q.mu.RLock()
	running := q.started
	if running {
		q.retries.Add(1)
	}
	q.mu.RUnlock()
	if !running {
		q.logger.Error("job dropped during shutdown", zap.Error(err))
		return
	}

	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.logger.Error("job dropped during shutdown", zap.Error(err))
		case <-timer.C:
			if perr := q.push(q.ctx, j); perr != nil {
				q.logger.Error("failed to requeue job", zap.Error(perr))
			}
		}
	}()
}
