package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TransactionNumberSeries hands out yearly document numbers per prefix
// (GRN-2026-000001, RET-2026-000001). The row is locked for the rest of the
// caller's transaction, so numbers never repeat and a rolled back
// transaction gives its number back.
type TransactionNumberSeries struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Prefix    string    `gorm:"size:10;not null;uniqueIndex:idx_series_prefix_year" json:"prefix"`
	Year      int       `gorm:"not null;uniqueIndex:idx_series_prefix_year" json:"year"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	GoodsReceiptNumberPrefix  = "GRN"
	ProductReturnNumberPrefix = "RET"
	PurchaseOrderNumberPrefix = "PO"
)

func NextTransactionNumber(tx *gorm.DB, prefix string, at time.Time) (string, error) {
	year := at.UTC().Year()
	series, err := lockOrCreate(tx, &TransactionNumberSeries{Prefix: prefix, Year: year},
		"prefix = ? AND year = ?", prefix, year)
	if err != nil {
		return "", err
	}
	next := series.LastValue + 1
	if err := tx.Model(&TransactionNumberSeries{}).Where("id = ?", series.ID).
		Update("last_value", next).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, next), nil
}
