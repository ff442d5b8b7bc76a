package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vgarvardt/gue/v5"
	adapter "github.com/vgarvardt/gue/v5/adapter/zap"
	"go.uber.org/zap"
)

const resyncJobType = "resync"

var errNoQueue = errors.New("job queue is not configured")

type resyncJobArgs struct {
	Reason string `json:"reason"`
}

// Run processes queued jobs until ctx is canceled.
func (s *Syncer) Run(ctx context.Context) error {
	if s.q == nil {
		return errNoQueue
	}

	workers, err := gue.NewWorkerPool(
		s.q,
		gue.WorkMap{resyncJobType: s.resyncJob},
		s.cfg.WorkerPoolSize,
		gue.WithPoolLogger(adapter.New(s.logger)),
	)
	if err != nil {
		return fmt.Errorf("gue new worker pool: %w", err)
	}

	s.logger.Info("syncer workers have started", zap.Int("pool_size", s.cfg.WorkerPoolSize))

	if err := workers.Run(ctx); err != nil {
		return fmt.Errorf("gue run workers: %w", err)
	}

	return nil
}

// EnqueueResync schedules a mapping resync on the job queue.
func (s *Syncer) EnqueueResync(ctx context.Context, reason string) error {
	if s.q == nil {
		return errNoQueue
	}

	bb, err := json.Marshal(&resyncJobArgs{Reason: reason})
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	if err := s.q.Enqueue(ctx, &gue.Job{Type: resyncJobType, Args: bb}); err != nil {
		return fmt.Errorf("gue enqueue: %w", err)
	}

	return nil
}

// resyncJob returns an error to make gue retry the job later, up to ResyncMaxRetries times.
func (s *Syncer) resyncJob(ctx context.Context, job *gue.Job) error {
	var args resyncJobArgs
	if err := json.Unmarshal(job.Args, &args); err != nil {
		s.logger.Error("resync job: malformed args, dropping", zap.Error(err))
		return nil
	}

	report, err := s.Resync(ctx)
	if err != nil {
		if job.ErrorCount >= s.cfg.ResyncMaxRetries {
			s.logger.Error(
				"resync job: failed, giving up",
				zap.Error(err),
				zap.String("reason", args.Reason),
				zap.Int32("attempts", job.ErrorCount+1),
			)
			return nil
		}
		return fmt.Errorf("resync: %w", err)
	}

	s.logger.Info(
		"resync job: done",
		zap.String("reason", args.Reason),
		zap.Int("payees", report.Payees),
		zap.Int("mapped", report.Mapped),
		zap.Int("ambiguous", report.Ambiguous),
	)

	return nil
}
