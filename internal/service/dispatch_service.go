package service

import (
	"context"
	"fmt"
	"time"

	"github.com/familyos/go-pipeline-service/internal/domain"
	"github.com/familyos/go-pipeline-service/internal/metrics"
	"github.com/familyos/go-pipeline-service/internal/shared/errors"
	"github.com/familyos/go-pipeline-service/internal/shared/logger"
	"github.com/google/uuid"
)

// AudienceResolver resolves a job into push subscriptions
type AudienceResolver interface {
	Resolve(ctx context.Context, job *domain.NotificationJob) ([]domain.WebPushSubscription, error)
}

// DispatchService drains the job queue: claim a batch, resolve each
// job's audience, push to every subscription, record the outcome.
type DispatchService struct {
	jobs        JobStore
	audience    AudienceResolver
	sender      PushSender
	log         *logger.Logger
	batchSize   int
	sendTimeout time.Duration
	workerID    string
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(jobs JobStore, audience AudienceResolver, sender PushSender, log *logger.Logger, batchSize int, sendTimeout time.Duration) *DispatchService {
	if batchSize <= 0 {
		batchSize = 50
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &DispatchService{
		jobs:        jobs,
		audience:    audience,
		sender:      sender,
		log:         log,
		batchSize:   batchSize,
		sendTimeout: sendTimeout,
		workerID:    "dispatch-" + uuid.NewString(),
	}
}

// Dispatch runs one batch pass and returns a per-job outcome record for
// each claimed job
func (s *DispatchService) Dispatch(ctx context.Context) ([]domain.DispatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	now := time.Now().UTC()
	jobs, err := s.jobs.ClaimDue(ctx, s.batchSize, now, s.workerID)
	if err != nil && len(jobs) == 0 {
		return nil, err
	}
	if err != nil {
		// Claimed jobs must still be processed or they stay stuck in
		// sending until an operator intervenes.
		s.log.Error("Claim pass ended early", "error", err, "claimed", len(jobs))
	}

	results := make([]domain.DispatchResult, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, s.processJob(ctx, job))
	}
	return results, nil
}

func (s *DispatchService) processJob(ctx context.Context, job *domain.NotificationJob) domain.DispatchResult {
	id := job.ID.Hex()

	if job.Channel != domain.JobChannelPush {
		// Unsupported channel is a configuration error, not a transient
		// one: fail permanently on the first attempt.
		msg := fmt.Sprintf("channel not implemented: %s", job.Channel)
		if err := s.jobs.MarkFailed(ctx, job.ID, job.Attempts+1, msg); err != nil {
			s.log.Error("Failed to mark job failed", "error", err, "id", id)
		}
		metrics.JobsProcessed.WithLabelValues("failed").Inc()
		return domain.DispatchResult{ID: id, OK: false, Sent: 0, Error: msg}
	}

	subs, err := s.audience.Resolve(ctx, job)
	if err != nil {
		return s.recordFailure(ctx, job, err)
	}

	sent := 0
	for _, sub := range subs {
		if err := s.sendOne(ctx, sub, job); err != nil {
			// A failed send aborts the remaining subscriptions for this
			// job; the whole job routes to the retry path.
			res := s.recordFailure(ctx, job, err)
			res.Sent = sent
			return res
		}
		sent++
		metrics.PushesSent.Inc()
	}

	// Zero resolved subscriptions is success with sent=0, not a failure.
	sentAt := time.Now().UTC()
	if err := s.jobs.MarkSent(ctx, job.ID, sentAt); err != nil {
		s.log.Error("Failed to mark job sent", "error", err, "id", id)
	}
	metrics.JobsProcessed.WithLabelValues("sent").Inc()
	return domain.DispatchResult{ID: id, OK: true, Sent: sent}
}

func (s *DispatchService) sendOne(ctx context.Context, sub domain.WebPushSubscription, job *domain.NotificationJob) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	payload := map[string]interface{}{
		"title": job.Title,
		"body":  job.Body,
		"data":  job.Data,
	}
	return s.sender.Send(sendCtx, sub, payload)
}

// recordFailure routes a job error to the retry path or, when the retry
// budget is exhausted or the error is non-retryable, to terminal failure
func (s *DispatchService) recordFailure(ctx context.Context, job *domain.NotificationJob, cause error) domain.DispatchResult {
	id := job.ID.Hex()
	attempts := job.Attempts + 1
	msg := cause.Error()

	if errors.IsConfigError(cause) || attempts >= job.EffectiveMaxAttempts() {
		if err := s.jobs.MarkFailed(ctx, job.ID, attempts, msg); err != nil {
			s.log.Error("Failed to mark job failed", "error", err, "id", id)
		}
		metrics.JobsProcessed.WithLabelValues("failed").Inc()
		return domain.DispatchResult{ID: id, OK: false, Error: msg}
	}

	next := time.Now().UTC().Add(retryBackoff(attempts))
	if err := s.jobs.MarkRetry(ctx, job.ID, attempts, msg, next); err != nil {
		s.log.Error("Failed to requeue job", "error", err, "id", id)
	}
	metrics.JobsProcessed.WithLabelValues("retried").Inc()
	return domain.DispatchResult{ID: id, OK: false, Error: msg}
}
