package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ReconciliationReport is one drift finding from the ledger consistency check.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. LEDGER_JOURNAL, PO_RECEIVED
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. InventoryRecord, PurchaseOrderItem
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	ReconciliationCheckLedgerJournal = "LEDGER_JOURNAL"
	ReconciliationCheckPOReceived    = "PO_RECEIVED"
)

func ListReconciliationReports(ctx context.Context, db *gorm.DB, correlationId string) ([]ReconciliationReport, error) {
	query := db.WithContext(ctx).Model(&ReconciliationReport{})
	if correlationId != "" {
		query = query.Where("correlation_id = ?", correlationId)
	}
	var reports []ReconciliationReport
	err := query.Order("id").Find(&reports).Error
	return reports, err
}
