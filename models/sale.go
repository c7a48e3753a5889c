package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Sale struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SaleNumber  string          `gorm:"size:50;not null;uniqueIndex" json:"sale_number"`
	CustomerId  int             `gorm:"index" json:"customer_id"`
	LocationId  int             `gorm:"index;not null" json:"location_id"`
	SaleDate    time.Time       `gorm:"not null" json:"sale_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	Status      SaleStatus      `gorm:"size:20;not null;index" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleRefund records money returned against a sale. One refund per return.
type SaleRefund struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SaleId          int             `gorm:"index;not null" json:"sale_id"`
	ProductReturnId int             `gorm:"not null;uniqueIndex" json:"product_return_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	RefundMethod    RefundMethod    `gorm:"size:20;not null" json:"refund_method"`
	Reason          string          `gorm:"type:text" json:"reason"`
	CreatedBy       int             `json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSale struct {
	SaleNumber  string          `json:"sale_number" validate:"required,max=50"`
	CustomerId  int             `json:"customer_id"`
	LocationId  int             `json:"location_id" validate:"required,gt=0"`
	SaleDate    time.Time       `json:"sale_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CreateSale records a completed sale. Point-of-sale owns sales; this is
// used to seed data and by tests.
func CreateSale(ctx context.Context, db *gorm.DB, input *NewSale) (*Sale, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	if !input.TotalAmount.IsPositive() {
		return nil, NewValidationError("total_amount", "sale total must be positive")
	}
	saleDate := input.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now()
	}
	sale := Sale{
		SaleNumber:  input.SaleNumber,
		CustomerId:  input.CustomerId,
		LocationId:  input.LocationId,
		SaleDate:    saleDate,
		TotalAmount: input.TotalAmount,
		Status:      SaleStatusCompleted,
	}
	if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func GetSale(ctx context.Context, db *gorm.DB, id int) (*Sale, error) {
	return getById[Sale](db.WithContext(ctx), "sale", id)
}

func LockSale(tx *gorm.DB, id int) (*Sale, error) {
	return lockById[Sale](tx, "sale", id)
}

// LockSaleRefunds loads every refund of the sale under row locks and
// returns them with their total.
func LockSaleRefunds(tx *gorm.DB, saleId int) ([]SaleRefund, decimal.Decimal, error) {
	var refunds []SaleRefund
	if err := LockForUpdate(tx).Where("sale_id = ?", saleId).Order("id").Find(&refunds).Error; err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range refunds {
		total = total.Add(r.Amount)
	}
	return refunds, total, nil
}

func ListSaleRefunds(ctx context.Context, db *gorm.DB, saleId int) ([]SaleRefund, error) {
	var refunds []SaleRefund
	err := db.WithContext(ctx).Where("sale_id = ?", saleId).Order("id").Find(&refunds).Error
	return refunds, err
}

// RefundStatus is Refunded once refunds cover the total, Partial Refund before that.
func (s *Sale) RefundStatus(refundedTotal decimal.Decimal) SaleStatus {
	if refundedTotal.GreaterThanOrEqual(s.TotalAmount) {
		return SaleStatusRefunded
	}
	return SaleStatusPartialRefund
}
