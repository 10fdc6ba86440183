package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/redis/go-redis/v9"

	"reimburse/internal/app/notify"
	"reimburse/internal/domain/model"
	"reimburse/internal/domain/repository"
)

const (
	defaultPopTimeout  = 5 * time.Second
	defaultSendTimeout = 30 * time.Second
	defaultMaxAttempts = 3
)

// errPermanent marks jobs that retrying cannot fix.
var errPermanent = errors.New("permanent notification failure")

type NotificationWorkerOptions struct {
	QueueName   string
	NotifyTo    []string // Reviewer addresses for new-request notifications
	BaseURL     string   // Public base for attachment links; may be empty
	MaxAttempts int
	PopTimeout  time.Duration
	SendTimeout time.Duration
}

// NotificationWorker consumes notification jobs from Redis and delivers them
// through a sink. Jobs are processed one at a time.
type NotificationWorker struct {
	rdb         *redis.Client
	expenseRepo repository.ExpenseRepository
	sink        notify.Sink
	opts        NotificationWorkerOptions
}

func NewNotificationWorker(rdb *redis.Client, expenseRepo repository.ExpenseRepository, sink notify.Sink, opts NotificationWorkerOptions) *NotificationWorker {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = defaultPopTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	return &NotificationWorker{rdb: rdb, expenseRepo: expenseRepo, sink: sink, opts: opts}
}

// Start blocks until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	log.WithField("queue", w.opts.QueueName).Info("Notification worker started")
	for {
		if ctx.Err() != nil {
			log.Info("Notification worker stopping...")
			return
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.WithField("queue", w.opts.QueueName).WithError(err).Error("Failed to BRPop from Redis queue")
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second): // Wait before retrying on other errors
			}
		}
	}
}

// ProcessNext waits up to the pop timeout for one job and handles it. It
// reports whether a job was taken; the error covers queue failures only.
func (w *NotificationWorker) ProcessNext(ctx context.Context) (bool, error) {
	result, err := w.rdb.BRPop(ctx, w.opts.PopTimeout, w.opts.QueueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	// result is [queueName, value]
	if len(result) < 2 || result[1] == "" {
		log.Warn("BRPop returned an empty notification job")
		return false, nil
	}
	w.processPayload(ctx, result[1])
	return true, nil
}

func (w *NotificationWorker) processPayload(ctx context.Context, raw string) {
	var job model.NotificationJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.WithError(err).Error("Dropping undecodable notification job")
		return
	}
	fields := log.Fields{"job_id": job.ID, "job_type": job.JobType, "attempt": job.Attempts + 1}

	sendCtx, cancel := context.WithTimeout(ctx, w.opts.SendTimeout)
	err := w.handleJob(sendCtx, &job)
	cancel()
	if err == nil {
		log.WithFields(fields).Info("Notification delivered")
		return
	}

	job.Attempts++
	if errors.Is(err, errPermanent) || job.Attempts >= w.opts.MaxAttempts {
		log.WithFields(fields).WithError(err).Error("Notification failed, giving up")
		return
	}
	log.WithFields(fields).WithError(err).Warn("Notification failed, re-queueing")
	w.requeueJob(ctx, &job)
}

func (w *NotificationWorker) handleJob(ctx context.Context, job *model.NotificationJob) error {
	switch job.JobType {
	case model.JobTypeRequestCreated:
		var payload model.RequestCreatedPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("%w: decode payload: %v", errPermanent, err)
		}
		req, err := w.expenseRepo.FindByID(ctx, payload.RequestID)
		if err != nil {
			return fmt.Errorf("load request %s: %w", payload.RequestID, err)
		}
		msg, err := notify.RenderRequestCreated(req, w.opts.NotifyTo, w.opts.BaseURL)
		if err != nil {
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		return w.deliver(ctx, job, msg)

	case model.JobTypePlainMessage:
		var payload model.PlainMessagePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("%w: decode payload: %v", errPermanent, err)
		}
		return w.deliver(ctx, job, notify.Message{
			To: payload.To, Subject: payload.Subject, Text: payload.Text, HTML: payload.HTML,
			Private: payload.Private,
		})

	default:
		return fmt.Errorf("%w: unknown job type %q", errPermanent, job.JobType)
	}
}

// deliver sends msg to the sinks that have not accepted it yet and records
// the ones that do, so a re-queued job only retries the failed sinks.
func (w *NotificationWorker) deliver(ctx context.Context, job *model.NotificationJob, msg notify.Message) error {
	delivered, err := notify.Deliver(ctx, w.sink, msg, job.Delivered)
	job.Delivered = append(job.Delivered, delivered...)
	if errors.Is(err, notify.ErrNoRecipientSink) {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	return err
}

// requeueJob puts the job at the back of the queue.
func (w *NotificationWorker) requeueJob(ctx context.Context, job *model.NotificationJob) {
	raw, err := json.Marshal(job)
	if err != nil {
		log.WithField("job_id", job.ID).WithError(err).Error("Failed to marshal job for re-queue")
		return
	}
	if err := w.rdb.LPush(ctx, w.opts.QueueName, raw).Err(); err != nil {
		log.WithField("job_id", job.ID).WithError(err).Error("Failed to re-queue notification job")
	}
}
