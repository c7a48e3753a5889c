package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GoodsReceipt is immutable once Completed.
type GoodsReceipt struct {
	ID                    int                `gorm:"primary_key" json:"id"`
	ReceiptNumber         string             `gorm:"size:50;not null;uniqueIndex" json:"receipt_number"`
	PurchaseOrderId       int                `gorm:"index;not null" json:"purchase_order_id"`
	DestinationLocationId int                `gorm:"index;not null" json:"destination_location_id"`
	Status                GoodsReceiptStatus `gorm:"size:20;not null;index" json:"status"`
	ReceivedDate          time.Time          `gorm:"not null" json:"received_date"`
	Notes                 string             `gorm:"type:text" json:"notes"`
	QualityCheckBy        *int               `json:"quality_check_by"`
	QualityCheckAt        *time.Time         `json:"quality_check_at"`
	ApprovedBy            *int               `json:"approved_by"`
	ApprovedAt            *time.Time         `json:"approved_at"`
	ApprovedLocationId    *int               `json:"approved_location_id"`
	TotalValue            decimal.Decimal    `gorm:"type:decimal(20,4);not null;default:0" json:"total_value"`
	CreatedBy             int                `json:"created_by"`
	Items                 []GoodsReceiptItem `gorm:"foreignKey:GoodsReceiptId" json:"items"`
	CreatedAt             time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type GoodsReceiptItem struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	GoodsReceiptId      int             `gorm:"index;not null" json:"goods_receipt_id"`
	PurchaseOrderItemId int             `gorm:"index;not null" json:"purchase_order_item_id"`
	ProductId           int             `gorm:"index;not null" json:"product_id"`
	OrderedQuantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"ordered_quantity"`
	ReceivedQuantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"received_quantity"`
	AcceptedQuantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"accepted_quantity"`
	RejectedQuantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"rejected_quantity"`
	QualityStatus       QualityStatus   `gorm:"size:20;not null" json:"quality_status"`
	QualityNotes        string          `gorm:"type:text" json:"quality_notes"`
	UnitPrice           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
}

// ValidateQuantities checks received > 0, accepted/rejected >= 0 and
// accepted + rejected <= received.
func (item *GoodsReceiptItem) ValidateQuantities() error {
	if !item.ReceivedQuantity.IsPositive() {
		return NewValidationError("received_quantity", "received quantity for product %d must be positive", item.ProductId)
	}
	if item.AcceptedQuantity.IsNegative() || item.RejectedQuantity.IsNegative() {
		return NewValidationError("accepted_quantity", "accepted and rejected quantities for product %d must not be negative", item.ProductId)
	}
	if item.AcceptedQuantity.Add(item.RejectedQuantity).GreaterThan(item.ReceivedQuantity) {
		return NewValidationError("accepted_quantity", "accepted %s + rejected %s exceeds received %s for product %d",
			item.AcceptedQuantity, item.RejectedQuantity, item.ReceivedQuantity, item.ProductId)
	}
	return nil
}

// DeriveQualityStatus maps the accepted/rejected split to a quality status.
// No outcome recorded yet stays Pending.
func (item *GoodsReceiptItem) DeriveQualityStatus() QualityStatus {
	switch {
	case item.AcceptedQuantity.IsZero() && item.RejectedQuantity.IsZero():
		return QualityStatusPending
	case item.AcceptedQuantity.Equal(item.ReceivedQuantity):
		return QualityStatusPassed
	case item.AcceptedQuantity.IsZero():
		return QualityStatusFailed
	default:
		return QualityStatusPartial
	}
}

func GetGoodsReceipt(ctx context.Context, db *gorm.DB, id int) (*GoodsReceipt, error) {
	var receipt GoodsReceipt
	err := db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("id = ?", id).First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("goods receipt", id)
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// LockGoodsReceipt locks the receipt row, then its item rows.
func LockGoodsReceipt(tx *gorm.DB, id int) (*GoodsReceipt, error) {
	receipt, err := lockById[GoodsReceipt](tx, "goods receipt", id)
	if err != nil {
		return nil, err
	}
	if err := LockForUpdate(tx).Where("goods_receipt_id = ?", id).Order("id").Find(&receipt.Items).Error; err != nil {
		return nil, err
	}
	return receipt, nil
}

// LockOpenGoodsReceipts returns receipts of the order that are not Completed.
func LockOpenGoodsReceipts(tx *gorm.DB, purchaseOrderId int) ([]GoodsReceipt, error) {
	var receipts []GoodsReceipt
	err := LockForUpdate(tx).
		Where("purchase_order_id = ? AND status <> ?", purchaseOrderId, GoodsReceiptStatusCompleted).
		Order("id").Find(&receipts).Error
	return receipts, err
}

func ListGoodsReceiptsForOrder(ctx context.Context, db *gorm.DB, purchaseOrderId int) ([]GoodsReceipt, error) {
	var receipts []GoodsReceipt
	err := db.WithContext(ctx).Where("purchase_order_id = ?", purchaseOrderId).Order("id").Find(&receipts).Error
	return receipts, err
}

// UpdateGoodsReceiptStatus validates the transition and writes status plus any extra columns.
func UpdateGoodsReceiptStatus(tx *gorm.DB, receipt *GoodsReceipt, next GoodsReceiptStatus, extra map[string]interface{}) error {
	if err := RequireTransition(EntityKindGoodsReceipt, receipt.ID, string(receipt.Status), string(next)); err != nil {
		return err
	}
	values := map[string]interface{}{"status": next}
	for k, v := range extra {
		values[k] = v
	}
	if err := tx.Model(&GoodsReceipt{}).Where("id = ?", receipt.ID).Updates(values).Error; err != nil {
		return err
	}
	receipt.Status = next
	return nil
}

func SaveGoodsReceiptItemQuality(tx *gorm.DB, item *GoodsReceiptItem) error {
	return tx.Model(&GoodsReceiptItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"accepted_quantity": item.AcceptedQuantity,
		"rejected_quantity": item.RejectedQuantity,
		"quality_status":    item.QualityStatus,
		"quality_notes":     item.QualityNotes,
	}).Error
}

// DeleteGoodsReceipt removes a receipt that has not been approved.
func DeleteGoodsReceipt(tx *gorm.DB, id int) (*GoodsReceipt, error) {
	receipt, err := LockGoodsReceipt(tx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status == GoodsReceiptStatusCompleted {
		return nil, &InvalidStateError{Entity: EntityKindGoodsReceipt, Id: id, From: string(receipt.Status),
			Message: "goods receipt " + receipt.ReceiptNumber + " is completed and cannot be deleted"}
	}
	if err := tx.Where("goods_receipt_id = ?", id).Delete(&GoodsReceiptItem{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&GoodsReceipt{}, id).Error; err != nil {
		return nil, err
	}
	return receipt, nil
}
