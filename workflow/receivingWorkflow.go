package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NewGoodsReceipt struct {
	PurchaseOrderId int                   `json:"purchase_order_id" validate:"required,gt=0"`
	ReceivedDate    time.Time             `json:"received_date"`
	Notes           string                `json:"notes"`
	Items           []NewGoodsReceiptItem `json:"items" validate:"required,min=1,dive"`
}

// NewGoodsReceiptItem identifies its PO line by PurchaseOrderItemId, or by
// ProductId when the product appears on exactly one line.
type NewGoodsReceiptItem struct {
	PurchaseOrderItemId int             `json:"purchase_order_item_id"`
	ProductId           int             `json:"product_id" validate:"required,gt=0"`
	OrderedQuantity     decimal.Decimal `json:"ordered_quantity"`
	ReceivedQuantity    decimal.Decimal `json:"received_quantity"`
	AcceptedQuantity    decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity    decimal.Decimal `json:"rejected_quantity"`
	QualityNotes        string          `json:"quality_notes"`
}

type QualityCheckResult struct {
	GoodsReceiptItemId int             `json:"goods_receipt_item_id" validate:"required,gt=0"`
	AcceptedQuantity   decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity   decimal.Decimal `json:"rejected_quantity"`
	QualityNotes       string          `json:"quality_notes"`
}

type ReceivingWorkflow struct {
	coordinator *TransactionCoordinator
	locations   LocationDirectory
	notifier    NotificationDispatcher
	auth        AuthContext
	logger      *logrus.Logger
	now         func() time.Time
}

func NewReceivingWorkflow(deps Dependencies) *ReceivingWorkflow {
	return &ReceivingWorkflow{
		coordinator: deps.coordinator(),
		locations:   deps.Locations,
		notifier:    deps.Notifier,
		auth:        deps.Auth,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

func validateInput(input any) error {
	if err := utils.ValidateStruct(input); err != nil {
		return models.NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	return nil
}

// CreateGoodsReceipt records what arrived against a purchase order. It does
// not touch inventory; only approval commits stock.
func (w *ReceivingWorkflow) CreateGoodsReceipt(ctx context.Context, input *NewGoodsReceipt) (*models.GoodsReceipt, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	destination, err := w.locations.GetMainWarehouse(ctx)
	if err != nil {
		if errors.Is(err, models.ErrMainWarehouseNotConfigured) {
			return nil, models.NewValidationError("destination_location_id", "%v", err)
		}
		return nil, err
	}
	userId := w.auth.ActingUserId(ctx)
	receivedDate := input.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = w.now()
	}

	var receipt *models.GoodsReceipt
	lockKeys := []string{entityLockKey(models.EntityKindPurchaseOrder, input.PurchaseOrderId)}
	err = w.coordinator.Run(ctx, "CreateGoodsReceipt", lockKeys, func(tx *gorm.DB) error {
		po, err := models.LockPurchaseOrder(tx, input.PurchaseOrderId)
		if err != nil {
			return err
		}
		if !models.CanTransition(models.EntityKindPurchaseOrder, string(po.Status), string(models.PurchaseOrderStatusPartiallyReceived)) {
			return &models.InvalidStateError{Entity: models.EntityKindPurchaseOrder, Id: po.ID, From: string(po.Status),
				Message: fmt.Sprintf("goods can only be received against Submitted, Confirmed or Partially Received orders; %s is %s",
					po.OrderNumber, po.Status)}
		}
		open, err := models.LockOpenGoodsReceipts(tx, po.ID)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return models.NewConflictError("previous receipt not confirmed: %s is still %s", open[0].ReceiptNumber, open[0].Status)
		}

		items, err := buildGoodsReceiptItems(po, input.Items)
		if err != nil {
			return err
		}
		number, err := models.NextTransactionNumber(tx, models.GoodsReceiptNumberPrefix, receivedDate)
		if err != nil {
			return err
		}
		receipt = &models.GoodsReceipt{
			ReceiptNumber:         number,
			PurchaseOrderId:       po.ID,
			DestinationLocationId: destination.ID,
			Status:                models.GoodsReceiptStatusPendingQC,
			ReceivedDate:          receivedDate,
			Notes:                 input.Notes,
			TotalValue:            decimal.Zero,
			CreatedBy:             userId,
			Items:                 items,
		}
		if err := tx.Create(receipt).Error; err != nil {
			return err
		}
		return models.RefreshPurchaseOrderReceivingStatus(tx, po)
	})
	if err != nil {
		return nil, err
	}

	w.notifier.Notify(ctx, models.NotificationGoodsReceiptCreated, []int{receipt.ID}, map[string]interface{}{
		"receipt_number":    receipt.ReceiptNumber,
		"purchase_order_id": receipt.PurchaseOrderId,
	})
	return receipt, nil
}

func buildGoodsReceiptItems(po *models.PurchaseOrder, inputs []NewGoodsReceiptItem) ([]models.GoodsReceiptItem, error) {
	seen := make(map[int]bool, len(inputs))
	items := make([]models.GoodsReceiptItem, 0, len(inputs))
	for _, in := range inputs {
		var poItem *models.PurchaseOrderItem
		if in.PurchaseOrderItemId > 0 {
			poItem = po.ItemById(in.PurchaseOrderItemId)
		} else {
			poItem = po.ItemByProduct(in.ProductId)
		}
		if poItem == nil || poItem.ProductId != in.ProductId {
			return nil, models.NewValidationError("items", "product %d does not match a single line of purchase order %s", in.ProductId, po.OrderNumber)
		}
		if seen[poItem.ID] {
			return nil, models.NewValidationError("items", "purchase order line %d appears more than once", poItem.ID)
		}
		seen[poItem.ID] = true

		if !in.OrderedQuantity.IsZero() && !in.OrderedQuantity.Equal(poItem.OrderedQuantity) {
			return nil, models.NewValidationError("ordered_quantity", "ordered quantity %s for product %d does not match the purchase order (%s)",
				in.OrderedQuantity, in.ProductId, poItem.OrderedQuantity)
		}
		item := models.GoodsReceiptItem{
			PurchaseOrderItemId: poItem.ID,
			ProductId:           poItem.ProductId,
			OrderedQuantity:     poItem.OrderedQuantity,
			ReceivedQuantity:    in.ReceivedQuantity,
			AcceptedQuantity:    in.AcceptedQuantity,
			RejectedQuantity:    in.RejectedQuantity,
			QualityNotes:        in.QualityNotes,
			UnitPrice:           poItem.UnitPrice,
		}
		if err := item.ValidateQuantities(); err != nil {
			return nil, err
		}
		if in.ReceivedQuantity.GreaterThan(poItem.RemainingQuantity()) {
			return nil, &models.OverReceiptError{
				ProductId:       poItem.ProductId,
				Ordered:         poItem.OrderedQuantity,
				AlreadyReceived: poItem.ReceivedQuantity,
				Requested:       in.ReceivedQuantity,
			}
		}
		item.QualityStatus = item.DeriveQualityStatus()
		items = append(items, item)
	}
	return items, nil
}

// PerformQualityCheck records the accepted/rejected split per item. It is
// not an approval and moves no stock.
func (w *ReceivingWorkflow) PerformQualityCheck(ctx context.Context, receiptId int, results []QualityCheckResult) (*models.GoodsReceipt, error) {
	if len(results) == 0 {
		return nil, models.NewValidationError("results", "at least one quality check result is required")
	}
	for i := range results {
		if err := validateInput(&results[i]); err != nil {
			return nil, err
		}
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var receipt *models.GoodsReceipt
	lockKeys := []string{entityLockKey(models.EntityKindGoodsReceipt, receiptId)}
	err := w.coordinator.Run(ctx, "PerformQualityCheck", lockKeys, func(tx *gorm.DB) error {
		var err error
		receipt, err = models.LockGoodsReceipt(tx, receiptId)
		if err != nil {
			return err
		}
		if receipt.Status != models.GoodsReceiptStatusPendingQC {
			return &models.InvalidStateError{Entity: models.EntityKindGoodsReceipt, Id: receipt.ID, From: string(receipt.Status),
				To: string(models.GoodsReceiptStatusInspecting),
				Message: fmt.Sprintf("quality check requires status Pending QC; %s is %s", receipt.ReceiptNumber, receipt.Status)}
		}

		byId := make(map[int]*models.GoodsReceiptItem, len(receipt.Items))
		for i := range receipt.Items {
			byId[receipt.Items[i].ID] = &receipt.Items[i]
		}
		checked := make(map[int]bool, len(results))
		for _, r := range results {
			item, ok := byId[r.GoodsReceiptItemId]
			if !ok {
				return models.NewValidationError("goods_receipt_item_id", "item %d does not belong to goods receipt %s", r.GoodsReceiptItemId, receipt.ReceiptNumber)
			}
			item.AcceptedQuantity = r.AcceptedQuantity
			item.RejectedQuantity = r.RejectedQuantity
			if r.QualityNotes != "" {
				item.QualityNotes = r.QualityNotes
			}
			if err := item.ValidateQuantities(); err != nil {
				return err
			}
			item.QualityStatus = item.DeriveQualityStatus()
			checked[item.ID] = true
		}
		// no item may stay Pending once the receipt is Inspecting
		for i := range receipt.Items {
			item := &receipt.Items[i]
			if item.QualityStatus == models.QualityStatusPending {
				return models.NewValidationError("results", "quality check for product %d on goods receipt %s has no accepted or rejected quantity",
					item.ProductId, receipt.ReceiptNumber)
			}
		}
		for i := range receipt.Items {
			if !checked[receipt.Items[i].ID] {
				continue
			}
			if err := models.SaveGoodsReceiptItemQuality(tx, &receipt.Items[i]); err != nil {
				return err
			}
		}

		receipt.QualityCheckBy = &userId
		receipt.QualityCheckAt = &now
		return models.UpdateGoodsReceiptStatus(tx, receipt, models.GoodsReceiptStatusInspecting, map[string]interface{}{
			"quality_check_by": userId,
			"quality_check_at": now,
		})
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ApproveGoodsReceipt commits accepted quantities to inventory at locationId
// (0 means the receipt's destination) and advances the purchase order.
func (w *ReceivingWorkflow) ApproveGoodsReceipt(ctx context.Context, receiptId int, locationId int) (*models.GoodsReceipt, error) {
	if locationId < 0 {
		return nil, models.NewValidationError("location_id", "location id must not be negative")
	}
	if locationId > 0 {
		if _, err := w.locations.GetLocation(ctx, locationId); err != nil {
			return nil, err
		}
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var (
		receipt   *models.GoodsReceipt
		po        *models.PurchaseOrder
		movements []*models.StockMovement
	)
	lockKeys := []string{entityLockKey(models.EntityKindGoodsReceipt, receiptId)}
	err := w.coordinator.Run(ctx, "ApproveGoodsReceipt", lockKeys, func(tx *gorm.DB) error {
		movements = nil
		var err error
		receipt, err = models.LockGoodsReceipt(tx, receiptId)
		if err != nil {
			return err
		}
		if receipt.Status == models.GoodsReceiptStatusCompleted {
			return models.NewConflictError("goods receipt %s is already approved", receipt.ReceiptNumber)
		}
		if err := models.RequireTransition(models.EntityKindGoodsReceipt, receipt.ID, string(receipt.Status), string(models.GoodsReceiptStatusCompleted)); err != nil {
			return err
		}
		target := locationId
		if target == 0 {
			target = receipt.DestinationLocationId
		}

		po, err = models.LockPurchaseOrder(tx, receipt.PurchaseOrderId)
		if err != nil {
			return err
		}

		// product order keeps inventory row locks in a stable order across transactions
		items := make([]*models.GoodsReceiptItem, 0, len(receipt.Items))
		for i := range receipt.Items {
			items = append(items, &receipt.Items[i])
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].ProductId < items[j].ProductId })

		total := decimal.Zero
		for _, item := range items {
			if item.QualityStatus == models.QualityStatusPending {
				return &models.InvalidStateError{Entity: models.EntityKindGoodsReceipt, Id: receipt.ID, From: string(receipt.Status),
					Message: fmt.Sprintf("quality check is pending for product %d on goods receipt %s", item.ProductId, receipt.ReceiptNumber)}
			}
			if !item.AcceptedQuantity.IsPositive() {
				continue
			}
			poItem := po.ItemById(item.PurchaseOrderItemId)
			if poItem == nil {
				return models.NewValidationError("items", "purchase order line %d no longer exists", item.PurchaseOrderItemId)
			}
			if err := models.AddReceivedQuantity(tx, poItem, item.AcceptedQuantity); err != nil {
				return err
			}
			movement, _, err := models.ApplyMovement(tx, models.MovementInput{
				ProductId:     item.ProductId,
				LocationId:    target,
				MovementType:  models.MovementTypePurchase,
				Quantity:      item.AcceptedQuantity,
				UnitCost:      poItem.UnitPrice,
				ReferenceType: models.MovementReferenceGoodsReceipt,
				ReferenceId:   receipt.ID,
				Notes:         receipt.ReceiptNumber,
				CreatedBy:     userId,
			})
			if err != nil {
				return err
			}
			movements = append(movements, movement)
			total = total.Add(item.AcceptedQuantity.Mul(poItem.UnitPrice))
		}

		receipt.ApprovedBy = &userId
		receipt.ApprovedAt = &now
		receipt.ApprovedLocationId = &target
		receipt.TotalValue = total
		if err := models.UpdateGoodsReceiptStatus(tx, receipt, models.GoodsReceiptStatusCompleted, map[string]interface{}{
			"approved_by":          userId,
			"approved_at":          now,
			"approved_location_id": target,
			"total_value":          total,
		}); err != nil {
			return err
		}
		return models.RefreshPurchaseOrderReceivingStatus(tx, po)
	})
	if err != nil {
		return nil, err
	}
	recordMovements(movements)

	w.notifier.Notify(ctx, models.NotificationGoodsReceiptApproved, []int{receipt.ID}, map[string]interface{}{
		"receipt_number":        receipt.ReceiptNumber,
		"purchase_order_id":     receipt.PurchaseOrderId,
		"purchase_order_status": po.Status,
		"location_id":           *receipt.ApprovedLocationId,
		"total_value":           receipt.TotalValue.String(),
	})
	return receipt, nil
}

// DeleteGoodsReceipt discards a receipt that was never approved.
func (w *ReceivingWorkflow) DeleteGoodsReceipt(ctx context.Context, receiptId int) error {
	lockKeys := []string{entityLockKey(models.EntityKindGoodsReceipt, receiptId)}
	return w.coordinator.Run(ctx, "DeleteGoodsReceipt", lockKeys, func(tx *gorm.DB) error {
		_, err := models.DeleteGoodsReceipt(tx, receiptId)
		return err
	})
}
