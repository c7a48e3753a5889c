package workflow

import (
	"context"
	"sort"

	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PurchaseOrderWorkflow struct {
	coordinator *TransactionCoordinator
	suppliers   SupplierDirectory
	products    ProductCatalog
	auth        AuthContext
	logger      *logrus.Logger
}

func NewPurchaseOrderWorkflow(deps Dependencies) *PurchaseOrderWorkflow {
	return &PurchaseOrderWorkflow{
		coordinator: deps.coordinator(),
		suppliers:   deps.Suppliers,
		products:    deps.Products,
		auth:        deps.Auth,
		logger:      deps.Logger,
	}
}

// SubmitPurchaseOrder stores a new order in Submitted status, ready to be received against.
func (w *PurchaseOrderWorkflow) SubmitPurchaseOrder(ctx context.Context, input *models.NewPurchaseOrder) (*models.PurchaseOrder, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if _, err := w.suppliers.GetSupplier(ctx, input.SupplierId); err != nil {
		return nil, err
	}
	productIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		productIds = append(productIds, item.ProductId)
	}
	sort.Ints(productIds)
	for _, id := range productIds {
		if _, err := w.products.GetProduct(ctx, id); err != nil {
			return nil, err
		}
	}

	userId := w.auth.ActingUserId(ctx)
	var order *models.PurchaseOrder
	err := w.coordinator.Run(ctx, "SubmitPurchaseOrder", nil, func(tx *gorm.DB) error {
		var err error
		order, err = models.CreatePurchaseOrder(tx, input, userId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (w *PurchaseOrderWorkflow) transition(ctx context.Context, operation string, orderId int, next models.PurchaseOrderStatus) (*models.PurchaseOrder, error) {
	var order *models.PurchaseOrder
	lockKeys := []string{entityLockKey(models.EntityKindPurchaseOrder, orderId)}
	err := w.coordinator.Run(ctx, operation, lockKeys, func(tx *gorm.DB) error {
		var err error
		order, err = models.LockPurchaseOrder(tx, orderId)
		if err != nil {
			return err
		}
		if order.Status == next {
			return models.NewConflictError("purchase order %s is already %s", order.OrderNumber, next)
		}
		return models.UpdatePurchaseOrderStatus(tx, order, next)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (w *PurchaseOrderWorkflow) ConfirmPurchaseOrder(ctx context.Context, orderId int) (*models.PurchaseOrder, error) {
	return w.transition(ctx, "ConfirmPurchaseOrder", orderId, models.PurchaseOrderStatusConfirmed)
}

// CancelPurchaseOrder is only possible before anything has been received.
func (w *PurchaseOrderWorkflow) CancelPurchaseOrder(ctx context.Context, orderId int) (*models.PurchaseOrder, error) {
	return w.transition(ctx, "CancelPurchaseOrder", orderId, models.PurchaseOrderStatusCancelled)
}

// ClosePurchaseOrder marks a fully received order Completed.
func (w *PurchaseOrderWorkflow) ClosePurchaseOrder(ctx context.Context, orderId int) (*models.PurchaseOrder, error) {
	return w.transition(ctx, "ClosePurchaseOrder", orderId, models.PurchaseOrderStatusCompleted)
}

func (w *PurchaseOrderWorkflow) DeletePurchaseOrder(ctx context.Context, orderId int) error {
	lockKeys := []string{entityLockKey(models.EntityKindPurchaseOrder, orderId)}
	return w.coordinator.Run(ctx, "DeletePurchaseOrder", lockKeys, func(tx *gorm.DB) error {
		return models.DeletePurchaseOrder(tx, orderId)
	})
}

func (w *PurchaseOrderWorkflow) RecordPayment(ctx context.Context, orderId int, amount decimal.Decimal) (*models.PurchaseOrder, error) {
	var order *models.PurchaseOrder
	lockKeys := []string{entityLockKey(models.EntityKindPurchaseOrder, orderId)}
	err := w.coordinator.Run(ctx, "RecordPurchaseOrderPayment", lockKeys, func(tx *gorm.DB) error {
		var err error
		order, err = models.RecordPurchaseOrderPayment(tx, orderId, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
