package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/shop_backend/utils"
	"gorm.io/gorm"
)

// Location is a shop floor, back room or warehouse holding stock.
type Location struct {
	ID              int       `gorm:"primary_key" json:"id"`
	Code            string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	IsMainWarehouse *bool     `gorm:"not null;default:false" json:"is_main_warehouse"`
	IsActive        *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLocation struct {
	Code            string `json:"code" validate:"required,max=20"`
	Name            string `json:"name" validate:"required,max=100"`
	IsMainWarehouse bool   `json:"is_main_warehouse"`
}

var ErrMainWarehouseNotConfigured = errors.New("main warehouse is not configured")

func CreateLocation(ctx context.Context, db *gorm.DB, input *NewLocation) (*Location, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	isMain := input.IsMainWarehouse
	location := Location{
		Code:            input.Code,
		Name:            input.Name,
		IsMainWarehouse: &isMain,
		IsActive:        utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func GetLocation(ctx context.Context, db *gorm.DB, id int) (*Location, error) {
	if cached, err := utils.RetrieveRedis[Location](id); err == nil && cached != nil {
		return cached, nil
	}
	location, err := getById[Location](db.WithContext(ctx), "location", id)
	if err != nil {
		return nil, err
	}
	_ = utils.StoreRedis[Location](location, id)
	return location, nil
}

// GetMainWarehouse returns the active main warehouse with the lowest id.
func GetMainWarehouse(ctx context.Context, db *gorm.DB) (*Location, error) {
	var location Location
	err := db.WithContext(ctx).
		Where("is_main_warehouse = ? AND is_active = ?", true, true).
		Order("id").First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMainWarehouseNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}
