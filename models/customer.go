package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/shop_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Phone     string    `gorm:"size:30;index" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"max=30"`
	Email string `json:"email" validate:"omitempty,email"`
}

func CreateCustomer(ctx context.Context, db *gorm.DB, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}
	customer := Customer{Name: input.Name, Phone: input.Phone, Email: input.Email}
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, db *gorm.DB, id int) (*Customer, error) {
	return getById[Customer](db.WithContext(ctx), "customer", id)
}
