package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// WarrantyClaim and JobSheet are owned by the repair desk. Returns only need
// to know that the referenced document exists.
type WarrantyClaim struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ClaimNumber string    `gorm:"size:50;not null;uniqueIndex" json:"claim_number"`
	CustomerId  int       `gorm:"index" json:"customer_id"`
	ProductId   int       `gorm:"index" json:"product_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type JobSheet struct {
	ID         int       `gorm:"primary_key" json:"id"`
	JobNumber  string    `gorm:"size:50;not null;uniqueIndex" json:"job_number"`
	CustomerId int       `gorm:"index" json:"customer_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateWarrantyClaim(ctx context.Context, db *gorm.DB, claimNumber string, customerId int, productId int) (*WarrantyClaim, error) {
	claim := WarrantyClaim{ClaimNumber: claimNumber, CustomerId: customerId, ProductId: productId}
	if err := db.WithContext(ctx).Create(&claim).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func CreateJobSheet(ctx context.Context, db *gorm.DB, jobNumber string, customerId int) (*JobSheet, error) {
	job := JobSheet{JobNumber: jobNumber, CustomerId: customerId}
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ReturnSourceExists reports whether the sale, warranty claim or job sheet exists.
func ReturnSourceExists(ctx context.Context, db *gorm.DB, sourceType ReturnSourceType, sourceId int) (bool, error) {
	var model interface{}
	switch sourceType {
	case ReturnSourceSale:
		model = &Sale{}
	case ReturnSourceWarrantyClaim:
		model = &WarrantyClaim{}
	case ReturnSourceJobSheet:
		model = &JobSheet{}
	default:
		return false, NewValidationError("source_type", "unknown return source %q", sourceType)
	}
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", sourceId).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
