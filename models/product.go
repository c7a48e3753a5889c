package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Sku       string          `gorm:"size:64;not null;uniqueIndex" json:"sku"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku      string          `json:"sku" validate:"required,max=64"`
	Name     string          `json:"name" validate:"required,max=255"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

func CreateProduct(ctx context.Context, db *gorm.DB, input *NewProduct) (*Product, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	if input.UnitCost.IsNegative() {
		return nil, NewValidationError("unit_cost", "unit cost must not be negative")
	}
	product := Product{
		Sku:      input.Sku,
		Name:     input.Name,
		UnitCost: input.UnitCost,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProduct reads through the redis cache.
func GetProduct(ctx context.Context, db *gorm.DB, id int) (*Product, error) {
	if cached, err := utils.RetrieveRedis[Product](id); err == nil && cached != nil {
		return cached, nil
	}
	product, err := getById[Product](db.WithContext(ctx), "product", id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[Product](product, id)
	return product, nil
}
