package worker

import (
	"context"
	"fmt"
	"time"

	log "github.com/Ptt-Alertor/logrus"

	"reimburse/internal/app/notify"
	"reimburse/internal/domain/model"
	"reimburse/internal/domain/repository"
)

// PendingDigest mails a summary of requests still waiting for review. It is a
// cron.Job.
type PendingDigest struct {
	expenseRepo repository.ExpenseRepository
	sink        notify.Sink
	to          []string
	timeout     time.Duration
	now         func() time.Time
}

func NewPendingDigest(expenseRepo repository.ExpenseRepository, sink notify.Sink, to []string) *PendingDigest {
	return &PendingDigest{
		expenseRepo: expenseRepo,
		sink:        sink,
		to:          to,
		timeout:     time.Minute,
		now:         time.Now,
	}
}

func (d *PendingDigest) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	n, err := d.Send(ctx)
	if err != nil {
		log.WithError(err).Error("Pending digest failed")
		return
	}
	log.WithField("pending", n).Info("Pending digest done")
}

// Send delivers the digest and returns how many requests it listed. Nothing
// is sent when no request is pending.
func (d *PendingDigest) Send(ctx context.Context) (int, error) {
	reqs, err := d.expenseRepo.List(ctx, model.ExpenseFilter{Status: model.StatusPending})
	if err != nil {
		return 0, fmt.Errorf("list pending requests: %w", err)
	}
	if len(reqs) == 0 {
		return 0, nil
	}
	msg, err := notify.RenderPendingDigest(reqs, d.to, d.now())
	if err != nil {
		return 0, err
	}
	if err := d.sink.Send(ctx, msg); err != nil {
		return 0, fmt.Errorf("send pending digest: %w", err)
	}
	return len(reqs), nil
}
