package workflow

import (
	"context"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxNotifier writes a PENDING NotificationRecord for the dispatcher.
// It is called after commit; a failed write is logged and dropped.
type OutboxNotifier struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func (n *OutboxNotifier) Notify(ctx context.Context, kind models.NotificationEventKind, entityIds []int, data map[string]interface{}) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	if _, err := models.EnqueueNotification(context.WithoutCancel(ctx), n.DB, kind, entityIds, data, correlationId); err != nil {
		if n.Logger != nil {
			config.LogError(n.Logger, "workflow", "Notify", string(kind), entityIds, err)
		}
	}
}
