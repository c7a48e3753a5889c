package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PurchaseOrder struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	OrderNumber   string              `gorm:"size:50;not null;uniqueIndex" json:"order_number"`
	SupplierId    int                 `gorm:"index;not null" json:"supplier_id"`
	OrderDate     time.Time           `gorm:"not null" json:"order_date"`
	Status        PurchaseOrderStatus `gorm:"size:30;not null;index" json:"status"`
	TotalAmount   decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	PaidAmount    decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	BalanceAmount decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"balance_amount"`
	Notes         string              `gorm:"type:text" json:"notes"`
	CreatedBy     int                 `json:"created_by"`
	Items         []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderId" json:"items"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// PurchaseOrderItem.ReceivedQuantity only grows, and only when a goods
// receipt is approved (accepted quantity), never past OrderedQuantity.
type PurchaseOrderItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId  int             `gorm:"index;not null" json:"purchase_order_id"`
	ProductId        int             `gorm:"index;not null" json:"product_id"`
	OrderedQuantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"ordered_quantity"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"received_quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	LineTotal        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"line_total"`
}

type NewPurchaseOrder struct {
	SupplierId int                    `json:"supplier_id" validate:"required,gt=0"`
	OrderDate  time.Time              `json:"order_date"`
	Notes      string                 `json:"notes"`
	Items      []NewPurchaseOrderItem `json:"items" validate:"required,min=1,dive"`
}

type NewPurchaseOrderItem struct {
	ProductId int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (input *NewPurchaseOrder) Validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	for _, item := range input.Items {
		if !item.Quantity.IsPositive() {
			return NewValidationError("quantity", "ordered quantity for product %d must be positive", item.ProductId)
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError("unit_price", "unit price for product %d must not be negative", item.ProductId)
		}
	}
	return nil
}

// CreatePurchaseOrder stores a submitted order inside the caller's transaction.
func CreatePurchaseOrder(tx *gorm.DB, input *NewPurchaseOrder, userId int) (*PurchaseOrder, error) {
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	number, err := NextTransactionNumber(tx, PurchaseOrderNumberPrefix, orderDate)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]PurchaseOrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		lineTotal := in.Quantity.Mul(in.UnitPrice)
		total = total.Add(lineTotal)
		items = append(items, PurchaseOrderItem{
			ProductId:        in.ProductId,
			OrderedQuantity:  in.Quantity,
			ReceivedQuantity: decimal.Zero,
			UnitPrice:        in.UnitPrice,
			LineTotal:        lineTotal,
		})
	}
	if err := RequireTransition(EntityKindPurchaseOrder, 0, string(PurchaseOrderStatusDraft), string(PurchaseOrderStatusSubmitted)); err != nil {
		return nil, err
	}

	order := PurchaseOrder{
		OrderNumber:   number,
		SupplierId:    input.SupplierId,
		OrderDate:     orderDate,
		Status:        PurchaseOrderStatusSubmitted,
		TotalAmount:   total,
		PaidAmount:    decimal.Zero,
		BalanceAmount: total,
		Notes:         input.Notes,
		CreatedBy:     userId,
		Items:         items,
	}
	if err := tx.Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetPurchaseOrder(ctx context.Context, db *gorm.DB, id int) (*PurchaseOrder, error) {
	var order PurchaseOrder
	err := db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundError("purchase order", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockPurchaseOrder locks the order row, then its item rows.
func LockPurchaseOrder(tx *gorm.DB, id int) (*PurchaseOrder, error) {
	order, err := lockById[PurchaseOrder](tx, "purchase order", id)
	if err != nil {
		return nil, err
	}
	if err := LockForUpdate(tx).Where("purchase_order_id = ?", id).Order("id").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (po *PurchaseOrder) ItemById(id int) *PurchaseOrderItem {
	for i := range po.Items {
		if po.Items[i].ID == id {
			return &po.Items[i]
		}
	}
	return nil
}

// ItemByProduct returns the single line for productId, or nil when the
// product is absent or appears on more than one line.
func (po *PurchaseOrder) ItemByProduct(productId int) *PurchaseOrderItem {
	var found *PurchaseOrderItem
	for i := range po.Items {
		if po.Items[i].ProductId == productId {
			if found != nil {
				return nil
			}
			found = &po.Items[i]
		}
	}
	return found
}

// RemainingQuantity is what may still be received on the line.
func (item *PurchaseOrderItem) RemainingQuantity() decimal.Decimal {
	remaining := item.OrderedQuantity.Sub(item.ReceivedQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsFullyReceived is true when every line's committed (approved) quantity
// has reached its ordered quantity.
func (po *PurchaseOrder) IsFullyReceived() bool {
	for _, item := range po.Items {
		if item.ReceivedQuantity.LessThan(item.OrderedQuantity) {
			return false
		}
	}
	return true
}

// ReceivingStatus derives the order status from committed quantities.
// Nothing committed yet leaves the status as it is.
func (po *PurchaseOrder) ReceivingStatus() PurchaseOrderStatus {
	anyReceived := false
	for _, item := range po.Items {
		if item.ReceivedQuantity.IsPositive() {
			anyReceived = true
			break
		}
	}
	if !anyReceived {
		return po.Status
	}
	if po.IsFullyReceived() {
		return PurchaseOrderStatusReceived
	}
	return PurchaseOrderStatusPartiallyReceived
}

// RefreshPurchaseOrderReceivingStatus writes ReceivingStatus when it differs.
func RefreshPurchaseOrderReceivingStatus(tx *gorm.DB, po *PurchaseOrder) error {
	next := po.ReceivingStatus()
	if next == po.Status {
		return nil
	}
	return UpdatePurchaseOrderStatus(tx, po, next)
}

func UpdatePurchaseOrderStatus(tx *gorm.DB, po *PurchaseOrder, next PurchaseOrderStatus) error {
	if err := RequireTransition(EntityKindPurchaseOrder, po.ID, string(po.Status), string(next)); err != nil {
		return err
	}
	if err := tx.Model(&PurchaseOrder{}).Where("id = ?", po.ID).Update("status", next).Error; err != nil {
		return err
	}
	po.Status = next
	return nil
}

// AddReceivedQuantity commits accepted quantity onto a PO line.
func AddReceivedQuantity(tx *gorm.DB, item *PurchaseOrderItem, accepted decimal.Decimal) error {
	received := item.ReceivedQuantity.Add(accepted)
	if received.GreaterThan(item.OrderedQuantity) {
		return &OverReceiptError{
			ProductId:       item.ProductId,
			Ordered:         item.OrderedQuantity,
			AlreadyReceived: item.ReceivedQuantity,
			Requested:       accepted,
		}
	}
	if err := tx.Model(&PurchaseOrderItem{}).Where("id = ?", item.ID).
		Update("received_quantity", received).Error; err != nil {
		return err
	}
	item.ReceivedQuantity = received
	return nil
}

// RecordPurchaseOrderPayment moves amount from balance to paid.
func RecordPurchaseOrderPayment(tx *gorm.DB, id int, amount decimal.Decimal) (*PurchaseOrder, error) {
	if !amount.IsPositive() {
		return nil, NewValidationError("amount", "payment amount must be positive")
	}
	order, err := lockById[PurchaseOrder](tx, "purchase order", id)
	if err != nil {
		return nil, err
	}
	if order.Status == PurchaseOrderStatusCancelled || order.Status == PurchaseOrderStatusDraft {
		return nil, &InvalidStateError{Entity: EntityKindPurchaseOrder, Id: id,
			Message: "payments can only be recorded against submitted orders"}
	}
	paid := order.PaidAmount.Add(amount)
	if paid.GreaterThan(order.TotalAmount) {
		return nil, NewValidationError("amount", "payment of %s exceeds balance %s", amount, order.BalanceAmount)
	}
	order.PaidAmount = paid
	order.BalanceAmount = order.TotalAmount.Sub(paid)
	if err := tx.Model(&PurchaseOrder{}).Where("id = ?", id).Updates(map[string]interface{}{
		"paid_amount":    order.PaidAmount,
		"balance_amount": order.BalanceAmount,
	}).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// DeletePurchaseOrder removes an order that has no goods receipts.
func DeletePurchaseOrder(tx *gorm.DB, id int) error {
	order, err := lockById[PurchaseOrder](tx, "purchase order", id)
	if err != nil {
		return err
	}
	var receipts int64
	if err := tx.Model(&GoodsReceipt{}).Where("purchase_order_id = ?", id).Count(&receipts).Error; err != nil {
		return err
	}
	if receipts > 0 {
		return NewConflictError("purchase order %s has goods receipts and cannot be deleted", order.OrderNumber)
	}
	if err := tx.Where("purchase_order_id = ?", id).Delete(&PurchaseOrderItem{}).Error; err != nil {
		return err
	}
	return tx.Delete(&PurchaseOrder{}, id).Error
}
