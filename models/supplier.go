package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"max=30"`
	Email string `json:"email" validate:"omitempty,email"`
}

func CreateSupplier(ctx context.Context, db *gorm.DB, input *NewSupplier) (*Supplier, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	supplier := Supplier{
		Name:     input.Name,
		Phone:    input.Phone,
		Email:    input.Email,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, db *gorm.DB, id int) (*Supplier, error) {
	return getById[Supplier](db.WithContext(ctx), "supplier", id)
}
