package service

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"reimburse/internal/app/notify"
	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

// NotificationService puts notification jobs on the Redis queue consumed by
// worker.NotificationWorker.
type NotificationService struct {
	rdb   *redis.Client
	queue string
	now   func() time.Time
}

func NewNotificationService(rdb *redis.Client, queueName string) *NotificationService {
	return &NotificationService{rdb: rdb, queue: queueName, now: time.Now}
}

// Enqueue wraps payload in a job and pushes it onto the queue.
func (s *NotificationService) Enqueue(ctx context.Context, jobType string, payload any) (*model.NotificationJob, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, common.Errorf("failed to marshal %s payload: %w", jobType, err)
	}
	job := &model.NotificationJob{
		ID:        uuid.NewString(),
		JobType:   jobType,
		Payload:   payloadBytes,
		CreatedAt: s.now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, common.Errorf("failed to marshal notification job: %w", err)
	}

	if err := s.rdb.LPush(ctx, s.queue, raw).Err(); err != nil {
		return nil, common.Errorf("failed to push notification job to Redis queue: %w: %v", common.ErrUnavailable, err)
	}

	log.WithFields(log.Fields{
		"job_id":   job.ID,
		"job_type": jobType,
	}).Debug("Notification job enqueued")
	return job, nil
}

// NotifyRequestCreated queues the reviewer notification for a new request.
func (s *NotificationService) NotifyRequestCreated(ctx context.Context, requestID string) error {
	_, err := s.Enqueue(ctx, model.JobTypeRequestCreated, model.RequestCreatedPayload{RequestID: requestID})
	return err
}

// SendMessage queues an already rendered message.
func (s *NotificationService) SendMessage(ctx context.Context, msg notify.Message) error {
	_, err := s.Enqueue(ctx, model.JobTypePlainMessage, model.PlainMessagePayload{
		To: msg.To, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML, Private: msg.Private,
	})
	return err
}
