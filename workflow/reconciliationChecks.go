package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ReconciliationResult struct {
	CorrelationId string
	LedgerDrifts  int
	OrderDrifts   int
	Repaired      int
}

type committedReceipt struct {
	PurchaseOrderItemId int
	Accepted            decimal.Decimal
}

// RunLedgerReconciliation compares inventory records with their movement
// journal and purchase order lines with their approved receipts, writing one
// reconciliation_reports row per finding. With repair set, drifted
// inventory records are rebuilt from the journal.
func RunLedgerReconciliation(ctx context.Context, db *gorm.DB, logger *logrus.Logger, repair bool) (*ReconciliationResult, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	result := &ReconciliationResult{CorrelationId: uuid.NewString()}
	db = db.WithContext(ctx)

	drifts, err := models.RecomputeFromJournal(db)
	if err != nil {
		config.LogError(logger, "workflow", "RunLedgerReconciliation", "RecomputeFromJournal", nil, err)
		return nil, err
	}
	var reports []models.ReconciliationReport
	for _, drift := range drifts {
		reports = append(reports, models.ReconciliationReport{
			CheckType:  models.ReconciliationCheckLedgerJournal,
			EntityType: "InventoryRecord",
			EntityId:   drift.Record.ID,
			Details: fmt.Sprintf("product %d location %d: %s", drift.Record.ProductId, drift.Record.LocationId,
				strings.Join(drift.Messages, "; ")),
			CorrelationId: result.CorrelationId,
		})
	}
	result.LedgerDrifts = len(drifts)

	orderReports, err := purchaseOrderReceivedDrift(db, result.CorrelationId)
	if err != nil {
		config.LogError(logger, "workflow", "RunLedgerReconciliation", "purchaseOrderReceivedDrift", nil, err)
		return nil, err
	}
	result.OrderDrifts = len(orderReports)
	reports = append(reports, orderReports...)

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(reports) > 0 {
			if err := tx.Create(&reports).Error; err != nil {
				return err
			}
		}
		if !repair {
			return nil
		}
		for _, drift := range drifts {
			if _, err := models.RebuildInventoryRecord(tx, drift.Record.ProductId, drift.Record.LocationId); err != nil {
				return err
			}
			result.Repaired++
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "workflow", "RunLedgerReconciliation", "write reports", result.CorrelationId, err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"field":          "LedgerReconciliation",
		"correlation_id": result.CorrelationId,
		"ledger_drifts":  result.LedgerDrifts,
		"order_drifts":   result.OrderDrifts,
		"repaired":       result.Repaired,
	}).Info("ledger reconciliation completed")
	return result, nil
}

// purchaseOrderReceivedDrift checks that every PO line's received quantity
// equals the accepted quantity of its approved goods receipts.
func purchaseOrderReceivedDrift(db *gorm.DB, correlationId string) ([]models.ReconciliationReport, error) {
	var committed []committedReceipt
	err := db.Model(&models.GoodsReceiptItem{}).
		Select("goods_receipt_items.purchase_order_item_id, COALESCE(SUM(goods_receipt_items.accepted_quantity), 0) AS accepted").
		Joins("JOIN goods_receipts ON goods_receipts.id = goods_receipt_items.goods_receipt_id").
		Where("goods_receipts.status = ?", models.GoodsReceiptStatusCompleted).
		Group("goods_receipt_items.purchase_order_item_id").
		Scan(&committed).Error
	if err != nil {
		return nil, err
	}
	acceptedByItem := make(map[int]decimal.Decimal, len(committed))
	for _, c := range committed {
		acceptedByItem[c.PurchaseOrderItemId] = c.Accepted
	}

	var items []models.PurchaseOrderItem
	if err := db.Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	var reports []models.ReconciliationReport
	for _, item := range items {
		accepted := acceptedByItem[item.ID]
		if item.ReceivedQuantity.Equal(accepted) {
			continue
		}
		reports = append(reports, models.ReconciliationReport{
			CheckType:  models.ReconciliationCheckPOReceived,
			EntityType: "PurchaseOrderItem",
			EntityId:   item.ID,
			Details: fmt.Sprintf("purchase order %d product %d: received %s, approved receipts accepted %s",
				item.PurchaseOrderId, item.ProductId, item.ReceivedQuantity, accepted),
			CorrelationId: correlationId,
		})
	}
	return reports, nil
}
