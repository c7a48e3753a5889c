package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"gorm.io/gorm"
)

// NotificationRecord is the outbox row for one domain event. Rows are
// written after the business transaction commits and published by the
// notification dispatcher.
type NotificationRecord struct {
	ID            int                    `gorm:"primary_key;index:idx_notification_dispatch,priority:3" json:"id"`
	EventKind     NotificationEventKind  `gorm:"size:60;not null;index" json:"event_kind"`
	EntityType    EntityKind             `gorm:"size:30;not null" json:"entity_type"`
	EntityIds     []int                  `gorm:"serializer:json;type:text" json:"entity_ids"`
	Context       map[string]interface{} `gorm:"serializer:json;type:text" json:"context"`
	Status        NotificationStatus     `gorm:"size:20;not null;default:'PENDING';index:idx_notification_dispatch,priority:1" json:"status"` // PENDING|PROCESSING|SENT|FAILED
	Attempts      int                    `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time             `gorm:"index:idx_notification_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt      *time.Time             `gorm:"index" json:"locked_at"`
	LockedBy      *string                `gorm:"size:100" json:"locked_by"`
	LastError     *string                `gorm:"type:text" json:"last_error"`
	MessageId     *string                `gorm:"size:255" json:"message_id"`
	SentAt        *time.Time             `json:"sent_at"`
	CorrelationId string                 `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r NotificationRecord) ToMessage() config.NotificationMessage {
	return config.NotificationMessage{
		NotificationId: r.ID,
		EventKind:      string(r.EventKind),
		EntityType:     string(r.EntityType),
		EntityIds:      r.EntityIds,
		Context:        r.Context,
		OccurredAt:     r.CreatedAt,
		CorrelationId:  r.CorrelationId,
	}
}

// EventEntityKind maps an event to the entity it is about.
func EventEntityKind(kind NotificationEventKind) EntityKind {
	switch kind {
	case NotificationGoodsReceiptCreated, NotificationGoodsReceiptApproved:
		return EntityKindGoodsReceipt
	default:
		return EntityKindProductReturn
	}
}

func EnqueueNotification(ctx context.Context, db *gorm.DB, kind NotificationEventKind, entityIds []int, data map[string]interface{}, correlationId string) (*NotificationRecord, error) {
	now := time.Now().UTC()
	record := NotificationRecord{
		EventKind:     kind,
		EntityType:    EventEntityKind(kind),
		EntityIds:     entityIds,
		Context:       data,
		Status:        NotificationStatusPending,
		NextAttemptAt: &now,
		CorrelationId: correlationId,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func GetNotification(ctx context.Context, db *gorm.DB, id int) (*NotificationRecord, error) {
	return getById[NotificationRecord](db.WithContext(ctx), "notification", id)
}

// ReplayNotification puts a FAILED notification back in the queue with a fresh attempt budget.
func ReplayNotification(ctx context.Context, db *gorm.DB, id int) (*NotificationRecord, error) {
	var record *NotificationRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = lockById[NotificationRecord](tx, "notification", id)
		if err != nil {
			return err
		}
		if record.Status != NotificationStatusFailed {
			return &InvalidStateError{Id: id, From: string(record.Status), To: string(NotificationStatusPending),
				Message: "only FAILED notifications can be replayed"}
		}
		now := time.Now().UTC()
		values := map[string]interface{}{
			"status":          NotificationStatusPending,
			"attempts":        0,
			"next_attempt_at": now,
			"locked_at":       nil,
			"locked_by":       nil,
		}
		if err := tx.Model(&NotificationRecord{}).Where("id = ?", id).Updates(values).Error; err != nil {
			return err
		}
		record.Status = NotificationStatusPending
		record.Attempts = 0
		record.NextAttemptAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func ListNotifications(ctx context.Context, db *gorm.DB, status NotificationStatus, limit int) ([]NotificationRecord, error) {
	query := db.WithContext(ctx).Model(&NotificationRecord{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []NotificationRecord
	err := query.Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}
