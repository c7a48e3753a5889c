package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductReturn struct {
	ID                 int                   `gorm:"primary_key" json:"id"`
	ReturnNumber       string                `gorm:"size:50;not null;uniqueIndex" json:"return_number"`
	SourceType         ReturnSourceType      `gorm:"size:20;not null;index:idx_return_source" json:"source_type"`
	SourceId           int                   `gorm:"not null;index:idx_return_source" json:"source_id"`
	ProductId          int                   `gorm:"index;not null" json:"product_id"`
	LocationId         int                   `gorm:"index;not null" json:"location_id"`
	CustomerId         int                   `gorm:"index" json:"customer_id"`
	Quantity           decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reason             string                `gorm:"type:text" json:"reason"`
	Notes              string                `gorm:"type:text" json:"notes"`
	Status             ReturnStatus          `gorm:"size:20;not null;index" json:"status"`
	Condition          string                `gorm:"size:30" json:"condition"`
	RecommendedAction  InspectionAction      `gorm:"size:30" json:"recommended_action"`
	InspectionNotes    string                `gorm:"type:text" json:"inspection_notes"`
	InspectedBy        *int                  `json:"inspected_by"`
	InspectedAt        *time.Time            `json:"inspected_at"`
	ResolutionType     *ReturnResolutionType `gorm:"size:30" json:"resolution_type"`
	RefundAmount       decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0" json:"refund_amount"`
	RefundMethod       *RefundMethod         `gorm:"size:20" json:"refund_method"`
	TransferLocationId *int                  `json:"transfer_location_id"`
	ApprovalNotes      string                `gorm:"type:text" json:"approval_notes"`
	ApprovedBy         *int                  `json:"approved_by"`
	ApprovedAt         *time.Time            `json:"approved_at"`
	RejectionReason    string                `gorm:"type:text" json:"rejection_reason"`
	RejectedBy         *int                  `json:"rejected_by"`
	RejectedAt         *time.Time            `json:"rejected_at"`
	CancellationReason string                `gorm:"type:text" json:"cancellation_reason"`
	CancelledBy        *int                  `json:"cancelled_by"`
	CancelledAt        *time.Time            `json:"cancelled_at"`
	ProcessedBy        *int                  `json:"processed_by"`
	ProcessedAt        *time.Time            `json:"processed_at"`
	CreatedBy          int                   `json:"created_by"`
	CreatedAt          time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProductReturn(ctx context.Context, db *gorm.DB, id int) (*ProductReturn, error) {
	return getById[ProductReturn](db.WithContext(ctx), "product return", id)
}

func LockProductReturn(tx *gorm.DB, id int) (*ProductReturn, error) {
	return lockById[ProductReturn](tx, "product return", id)
}

type ProductReturnFilter struct {
	SourceType ReturnSourceType
	SourceId   int
	Status     ReturnStatus
	Limit      int
}

func ListProductReturns(ctx context.Context, db *gorm.DB, filter ProductReturnFilter) ([]ProductReturn, error) {
	query := db.WithContext(ctx).Model(&ProductReturn{})
	if filter.SourceType != "" {
		query = query.Where("source_type = ?", filter.SourceType)
	}
	if filter.SourceId > 0 {
		query = query.Where("source_id = ?", filter.SourceId)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var returns []ProductReturn
	err := query.Order("id DESC").Limit(limit).Find(&returns).Error
	return returns, err
}

// UpdateProductReturnStatus validates the transition and writes status plus any extra columns.
func UpdateProductReturnStatus(tx *gorm.DB, ret *ProductReturn, next ReturnStatus, extra map[string]interface{}) error {
	if err := RequireTransition(EntityKindProductReturn, ret.ID, string(ret.Status), string(next)); err != nil {
		return err
	}
	values := map[string]interface{}{"status": next}
	for k, v := range extra {
		values[k] = v
	}
	if err := tx.Model(&ProductReturn{}).Where("id = ?", ret.ID).Updates(values).Error; err != nil {
		return err
	}
	ret.Status = next
	return nil
}
