package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/metrics"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NotificationPublisher interface {
	Publish(ctx context.Context, msg config.NotificationMessage) (string, error)
}

// LogNotificationPublisher writes notifications to the log. Used when no
// pub/sub project is configured.
type LogNotificationPublisher struct {
	Logger *logrus.Logger
}

func (p LogNotificationPublisher) Publish(ctx context.Context, msg config.NotificationMessage) (string, error) {
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"field":          "NotificationPublisher",
			"event_kind":     msg.EventKind,
			"entity_ids":     msg.EntityIds,
			"correlation_id": msg.CorrelationId,
		}).Info("notification")
	}
	return fmt.Sprintf("log-%d", msg.NotificationId), nil
}

// RetryPolicy is the backoff schedule for failed publishes: attempt n waits
// BaseBackoff * 2^(n-1), capped at MaxBackoff. After MaxAttempts the
// notification is FAILED and only a replay brings it back.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	maxAttempts, base, maxBackoff := config.NotificationRetryConfig()
	return RetryPolicy{MaxAttempts: maxAttempts, BaseBackoff: base, MaxBackoff: maxBackoff}
}

func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		return p.MaxBackoff
	}
	return backoff
}

func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publisher    NotificationPublisher
	Policy       RetryPolicy

	BatchSize    int
	PollInterval time.Duration
	LockTimeout  time.Duration

	now func() time.Time
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger, publisher NotificationPublisher) *OutboxDispatcher {
	if publisher == nil {
		publisher = LogNotificationPublisher{Logger: logger}
	}
	return &OutboxDispatcher{
		DB:           db,
		Logger:       logger,
		DispatcherID: uuid.NewString(),
		Publisher:    publisher,
		Policy:       DefaultRetryPolicy(),
		BatchSize:    50,
		PollInterval: 500 * time.Millisecond,
		LockTimeout:  30 * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if d.Logger != nil {
		config.LogInfo(d.Logger, "workflow", "OutboxDispatcher.Run", "dispatcher started", d.DispatcherID)
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && d.Logger != nil {
			config.LogError(d.Logger, "workflow", "OutboxDispatcher.Run", "dispatch", d.DispatcherID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch of due notifications and publishes them.
// PROCESSING rows whose lock is older than LockTimeout belong to a crashed
// dispatcher and are claimed again.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	now := d.now()
	staleBefore := now.Add(-d.LockTimeout)

	var claimed []models.NotificationRecord
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := models.LockForUpdateSkipLocked(tx).
			Where(`(status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
				OR (status = ? AND locked_at IS NOT NULL AND locked_at <= ?)`,
				models.NotificationStatusPending, now, models.NotificationStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize)
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = models.NotificationStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].Attempts++
			if err := tx.Model(&models.NotificationRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":          models.NotificationStatusProcessing,
				"locked_at":       now,
				"locked_by":       d.DispatcherID,
				"attempts":        gorm.Expr("attempts + 1"),
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rec := range claimed {
		messageId, pubErr := d.Publisher.Publish(ctx, rec.ToMessage())
		if pubErr != nil {
			d.markFailed(ctx, rec, pubErr)
			continue
		}
		d.markSent(ctx, rec, messageId)
		sent++
	}
	return sent, nil
}

func (d *OutboxDispatcher) markSent(ctx context.Context, rec models.NotificationRecord, messageId string) {
	now := d.now()
	err := d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("id = ? AND locked_by = ?", rec.ID, d.DispatcherID).
		Updates(map[string]interface{}{
			"status":     models.NotificationStatusSent,
			"sent_at":    now,
			"message_id": messageId,
			"last_error": nil,
			"locked_at":  nil,
			"locked_by":  nil,
		}).Error
	if err != nil && d.Logger != nil {
		config.LogError(d.Logger, "workflow", "OutboxDispatcher.markSent", "update", rec.ID, err)
	}
	metrics.CountNotification("sent")
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, rec models.NotificationRecord, pubErr error) {
	msg := pubErr.Error()
	values := map[string]interface{}{
		"last_error": msg,
		"locked_at":  nil,
		"locked_by":  nil,
	}
	outcome := "retry"
	var next time.Time
	if d.Policy.Exhausted(rec.Attempts) {
		values["status"] = models.NotificationStatusFailed
		values["next_attempt_at"] = nil
		outcome = "failed"
	} else {
		next = d.now().Add(d.Policy.Backoff(rec.Attempts))
		values["status"] = models.NotificationStatusPending
		values["next_attempt_at"] = next
	}
	if err := d.DB.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("id = ? AND locked_by = ?", rec.ID, d.DispatcherID).
		Updates(values).Error; err != nil && d.Logger != nil {
		config.LogError(d.Logger, "workflow", "OutboxDispatcher.markFailed", "update", rec.ID, err)
	}
	metrics.CountNotification(outcome)

	if d.Logger == nil {
		return
	}
	fields := logrus.Fields{
		"field":          "OutboxDispatcher",
		"record_id":      rec.ID,
		"event_kind":     rec.EventKind,
		"attempt":        rec.Attempts,
		"correlation_id": rec.CorrelationId,
	}
	if outcome == "failed" {
		d.Logger.WithFields(fields).Error("notification moved to FAILED after max attempts: " + msg)
		return
	}
	fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
	d.Logger.WithFields(fields).Warn("notification publish failed: " + msg)
}
