package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NewProductReturn struct {
	SourceType models.ReturnSourceType `json:"source_type" validate:"required"`
	SourceId   int                     `json:"source_id" validate:"required,gt=0"`
	ProductId  int                     `json:"product_id" validate:"required,gt=0"`
	LocationId int                     `json:"location_id" validate:"gte=0"`
	CustomerId int                     `json:"customer_id" validate:"gte=0"`
	Quantity   decimal.Decimal         `json:"quantity"`
	Reason     string                  `json:"reason" validate:"max=1000"`
	Notes      string                  `json:"notes"`
}

type InspectReturnInput struct {
	Condition         string                  `json:"condition" validate:"required,max=30"`
	RecommendedAction models.InspectionAction `json:"recommended_action" validate:"required,oneof=APPROVE REJECT HOLD"`
	Notes             string                  `json:"notes"`
}

type ApproveReturnInput struct {
	ResolutionType models.ReturnResolutionType `json:"resolution_type" validate:"required"`
	RefundAmount   decimal.Decimal             `json:"refund_amount"`
	Notes          string                      `json:"notes"`
}

// ProcessReturnInput fields left empty fall back to what was approved.
type ProcessReturnInput struct {
	ResolutionType     models.ReturnResolutionType `json:"resolution_type"`
	RefundAmount       decimal.Decimal             `json:"refund_amount"`
	RefundMethod       models.RefundMethod         `json:"refund_method"`
	TransferLocationId int                         `json:"transfer_location_id"`
}

type ReturnWorkflow struct {
	coordinator *TransactionCoordinator
	products    ProductCatalog
	locations   LocationDirectory
	customers   CustomerDirectory
	sales       SaleDirectory
	sources     ReturnSourceDirectory
	notifier    NotificationDispatcher
	auth        AuthContext
	logger      *logrus.Logger
	now         func() time.Time
}

func NewReturnWorkflow(deps Dependencies) *ReturnWorkflow {
	return &ReturnWorkflow{
		coordinator: deps.coordinator(),
		products:    deps.Products,
		locations:   deps.Locations,
		customers:   deps.Customers,
		sales:       deps.Sales,
		sources:     deps.Sources,
		notifier:    deps.Notifier,
		auth:        deps.Auth,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

func returnLockKeys(returnId int, saleId int) []string {
	keys := []string{entityLockKey(models.EntityKindProductReturn, returnId)}
	if saleId > 0 {
		keys = append(keys, entityLockKey(models.EntityKindSale, saleId))
	}
	return keys
}

// CreateReturn registers an item coming back from a customer. Stock is not
// touched until the return is processed.
func (w *ReturnWorkflow) CreateReturn(ctx context.Context, input *NewProductReturn) (*models.ProductReturn, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.SourceType.IsValid() {
		return nil, models.NewValidationError("source_type", "unknown return source %q", input.SourceType)
	}
	if !input.Quantity.IsPositive() {
		return nil, models.NewValidationError("quantity", "return quantity must be positive")
	}
	if _, err := w.products.GetProduct(ctx, input.ProductId); err != nil {
		return nil, err
	}

	var location *models.Location
	var err error
	if input.LocationId > 0 {
		location, err = w.locations.GetLocation(ctx, input.LocationId)
	} else {
		location, err = w.locations.GetMainWarehouse(ctx)
		if errors.Is(err, models.ErrMainWarehouseNotConfigured) {
			return nil, models.NewValidationError("location_id", "%v", err)
		}
	}
	if err != nil {
		return nil, err
	}

	customerId := input.CustomerId
	if customerId > 0 {
		if _, err := w.customers.GetCustomer(ctx, customerId); err != nil {
			return nil, err
		}
	}
	if input.SourceType == models.ReturnSourceSale {
		sale, err := w.sales.GetSale(ctx, input.SourceId)
		if err != nil {
			return nil, err
		}
		if sale.Status == models.SaleStatusCancelled {
			return nil, models.NewValidationError("source_id", "sale %s is cancelled", sale.SaleNumber)
		}
		if customerId == 0 {
			customerId = sale.CustomerId
		}
	} else {
		exists, err := w.sources.SourceExists(ctx, input.SourceType, input.SourceId)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.NewNotFoundError(string(input.SourceType), input.SourceId)
		}
	}

	userId := w.auth.ActingUserId(ctx)
	var ret *models.ProductReturn
	err = w.coordinator.Run(ctx, "CreateReturn", nil, func(tx *gorm.DB) error {
		number, err := models.NextTransactionNumber(tx, models.ProductReturnNumberPrefix, w.now())
		if err != nil {
			return err
		}
		ret = &models.ProductReturn{
			ReturnNumber: number,
			SourceType:   input.SourceType,
			SourceId:     input.SourceId,
			ProductId:    input.ProductId,
			LocationId:   location.ID,
			CustomerId:   customerId,
			Quantity:     input.Quantity,
			Reason:       input.Reason,
			Notes:        input.Notes,
			Status:       models.ReturnStatusReceived,
			RefundAmount: decimal.Zero,
			CreatedBy:    userId,
		}
		return tx.Create(ret).Error
	})
	if err != nil {
		return nil, err
	}

	w.notifier.Notify(ctx, models.NotificationReturnCreated, []int{ret.ID}, map[string]interface{}{
		"return_number": ret.ReturnNumber,
		"source_type":   ret.SourceType,
		"source_id":     ret.SourceId,
	})
	return ret, nil
}

// InspectReturn records the inspection outcome. The recommended action
// decides where the return goes next.
func (w *ReturnWorkflow) InspectReturn(ctx context.Context, returnId int, input InspectReturnInput) (*models.ProductReturn, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var next models.ReturnStatus
	switch input.RecommendedAction {
	case models.InspectionActionApprove:
		next = models.ReturnStatusPendingApproval
	case models.InspectionActionReject:
		next = models.ReturnStatusRejected
	default:
		next = models.ReturnStatusInspecting
	}

	var ret *models.ProductReturn
	err := w.coordinator.Run(ctx, "InspectReturn", returnLockKeys(returnId, 0), func(tx *gorm.DB) error {
		var err error
		ret, err = models.LockProductReturn(tx, returnId)
		if err != nil {
			return err
		}
		if ret.Status != models.ReturnStatusReceived && ret.Status != models.ReturnStatusInspecting {
			return &models.InvalidStateError{Entity: models.EntityKindProductReturn, Id: ret.ID, From: string(ret.Status), To: string(next),
				Message: fmt.Sprintf("return %s can only be inspected while Received or Inspecting; it is %s", ret.ReturnNumber, ret.Status)}
		}
		extra := map[string]interface{}{
			"condition":          input.Condition,
			"recommended_action": input.RecommendedAction,
			"inspection_notes":   input.Notes,
			"inspected_by":       userId,
			"inspected_at":       now,
		}
		if next == models.ReturnStatusRejected {
			extra["rejection_reason"] = input.Notes
			extra["rejected_by"] = userId
			extra["rejected_at"] = now
			ret.RejectionReason = input.Notes
			ret.RejectedBy = &userId
			ret.RejectedAt = &now
		}
		ret.Condition = input.Condition
		ret.RecommendedAction = input.RecommendedAction
		ret.InspectionNotes = input.Notes
		ret.InspectedBy = &userId
		ret.InspectedAt = &now
		return models.UpdateProductReturnStatus(tx, ret, next, extra)
	})
	if err != nil {
		return nil, err
	}
	if next == models.ReturnStatusRejected {
		w.notifier.Notify(ctx, models.NotificationReturnRejected, []int{ret.ID}, map[string]interface{}{
			"return_number": ret.ReturnNumber,
			"reason":        ret.RejectionReason,
		})
	}
	return ret, nil
}

func (w *ReturnWorkflow) ApproveReturn(ctx context.Context, returnId int, input ApproveReturnInput) (*models.ProductReturn, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	if !input.ResolutionType.IsValid() {
		return nil, models.NewValidationError("resolution_type", "unknown resolution type %q", input.ResolutionType)
	}
	if input.RefundAmount.IsNegative() {
		return nil, models.NewValidationError("refund_amount", "refund amount must not be negative")
	}
	if input.ResolutionType != models.ReturnResolutionRefund && !input.RefundAmount.IsZero() {
		return nil, models.NewValidationError("refund_amount", "refund amount only applies to %s", models.ReturnResolutionRefund)
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var ret *models.ProductReturn
	err := w.coordinator.Run(ctx, "ApproveReturn", returnLockKeys(returnId, 0), func(tx *gorm.DB) error {
		var err error
		ret, err = models.LockProductReturn(tx, returnId)
		if err != nil {
			return err
		}
		if ret.Status == models.ReturnStatusApproved {
			return models.NewConflictError("return %s is already approved", ret.ReturnNumber)
		}
		if ret.Status != models.ReturnStatusPendingApproval && ret.Status != models.ReturnStatusInspecting {
			return &models.InvalidStateError{Entity: models.EntityKindProductReturn, Id: ret.ID, From: string(ret.Status),
				To: string(models.ReturnStatusApproved)}
		}
		if input.ResolutionType == models.ReturnResolutionRefund && ret.SourceType != models.ReturnSourceSale {
			return models.NewValidationError("resolution_type", "refunds are only possible for returns against a sale; %s came from %s",
				ret.ReturnNumber, ret.SourceType)
		}

		resolution := input.ResolutionType
		ret.ResolutionType = &resolution
		ret.RefundAmount = input.RefundAmount
		ret.ApprovalNotes = input.Notes
		ret.ApprovedBy = &userId
		ret.ApprovedAt = &now
		return models.UpdateProductReturnStatus(tx, ret, models.ReturnStatusApproved, map[string]interface{}{
			"resolution_type": resolution,
			"refund_amount":   input.RefundAmount,
			"approval_notes":  input.Notes,
			"approved_by":     userId,
			"approved_at":     now,
		})
	})
	if err != nil {
		return nil, err
	}

	w.notifier.Notify(ctx, models.NotificationReturnApproved, []int{ret.ID}, map[string]interface{}{
		"return_number":   ret.ReturnNumber,
		"resolution_type": *ret.ResolutionType,
		"refund_amount":   ret.RefundAmount.String(),
	})
	return ret, nil
}

func (w *ReturnWorkflow) RejectReturn(ctx context.Context, returnId int, reason string) (*models.ProductReturn, error) {
	if reason == "" {
		return nil, models.NewValidationError("reason", "a rejection reason is required")
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var ret *models.ProductReturn
	err := w.coordinator.Run(ctx, "RejectReturn", returnLockKeys(returnId, 0), func(tx *gorm.DB) error {
		var err error
		ret, err = models.LockProductReturn(tx, returnId)
		if err != nil {
			return err
		}
		if ret.Status == models.ReturnStatusRejected {
			return models.NewConflictError("return %s is already rejected", ret.ReturnNumber)
		}
		ret.RejectionReason = reason
		ret.RejectedBy = &userId
		ret.RejectedAt = &now
		return models.UpdateProductReturnStatus(tx, ret, models.ReturnStatusRejected, map[string]interface{}{
			"rejection_reason": reason,
			"rejected_by":      userId,
			"rejected_at":      now,
		})
	})
	if err != nil {
		return nil, err
	}

	w.notifier.Notify(ctx, models.NotificationReturnRejected, []int{ret.ID}, map[string]interface{}{
		"return_number": ret.ReturnNumber,
		"reason":        reason,
	})
	return ret, nil
}

// ProcessReturn carries out the approved resolution: refund, restock,
// transfer or scrap. The returned unit always comes back into stock at the
// return's location first, so every resolution leaves an audit trail.
func (w *ReturnWorkflow) ProcessReturn(ctx context.Context, returnId int, input ProcessReturnInput) (*models.ProductReturn, error) {
	if input.ResolutionType != "" && !input.ResolutionType.IsValid() {
		return nil, models.NewValidationError("resolution_type", "unknown resolution type %q", input.ResolutionType)
	}
	if input.RefundAmount.IsNegative() {
		return nil, models.NewValidationError("refund_amount", "refund amount must not be negative")
	}
	if input.TransferLocationId < 0 {
		return nil, models.NewValidationError("transfer_location_id", "transfer location id must not be negative")
	}

	// directory lookups stay outside the transaction
	current, err := models.GetProductReturn(ctx, w.coordinator.DB, returnId)
	if err != nil {
		return nil, err
	}
	product, err := w.products.GetProduct(ctx, current.ProductId)
	if err != nil {
		return nil, err
	}
	resolution := input.ResolutionType
	if resolution == "" && current.ResolutionType != nil {
		resolution = *current.ResolutionType
	}
	if resolution == "" {
		return nil, models.NewValidationError("resolution_type", "return %s has no resolution type", current.ReturnNumber)
	}
	if resolution == models.ReturnResolutionTransferred {
		if input.TransferLocationId == 0 {
			return nil, models.NewValidationError("transfer_location_id", "a transfer location is required")
		}
		if input.TransferLocationId == current.LocationId {
			return nil, models.NewValidationError("transfer_location_id", "transfer location must differ from the return location")
		}
		if _, err := w.locations.GetLocation(ctx, input.TransferLocationId); err != nil {
			return nil, err
		}
	}
	if resolution == models.ReturnResolutionRefund && !input.RefundMethod.IsValid() {
		return nil, models.NewValidationError("refund_method", "refund method must be one of CASH, CARD, BANK_TRANSFER, STORE_CREDIT")
	}

	saleId := 0
	if current.SourceType == models.ReturnSourceSale {
		saleId = current.SourceId
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var (
		ret       *models.ProductReturn
		sale      *models.Sale
		movements []*models.StockMovement
	)
	err = w.coordinator.Run(ctx, "ProcessReturn", returnLockKeys(returnId, saleId), func(tx *gorm.DB) error {
		movements = nil
		sale = nil
		var err error
		ret, err = models.LockProductReturn(tx, returnId)
		if err != nil {
			return err
		}
		if ret.Status == models.ReturnStatusCompleted {
			return models.NewConflictError("return %s is already processed", ret.ReturnNumber)
		}
		if err := models.RequireTransition(models.EntityKindProductReturn, ret.ID, string(ret.Status), string(models.ReturnStatusCompleted)); err != nil {
			return err
		}

		extra := map[string]interface{}{
			"resolution_type": resolution,
			"processed_by":    userId,
			"processed_at":    now,
		}
		if resolution == models.ReturnResolutionRefund {
			amount := input.RefundAmount
			if amount.IsZero() {
				amount = ret.RefundAmount
			}
			sale, err = w.refund(tx, ret, amount, input.RefundMethod, userId)
			if err != nil {
				return err
			}
			method := input.RefundMethod
			ret.RefundAmount = amount
			ret.RefundMethod = &method
			extra["refund_amount"] = amount
			extra["refund_method"] = method
		}

		ref := models.MovementInput{
			ProductId:     ret.ProductId,
			LocationId:    ret.LocationId,
			MovementType:  models.MovementTypeReturnFromCustomer,
			Quantity:      ret.Quantity,
			UnitCost:      product.UnitCost,
			ReferenceType: models.MovementReferenceProductReturn,
			ReferenceId:   ret.ID,
			Notes:         ret.ReturnNumber,
			CreatedBy:     userId,
		}
		in, _, err := models.ApplyMovement(tx, ref)
		if err != nil {
			return err
		}
		movements = append(movements, in)

		switch resolution {
		case models.ReturnResolutionTransferred:
			out := ref
			out.MovementType = models.MovementTypeTransferOut
			out.Quantity = ret.Quantity.Neg()
			out.UnitCost = decimal.Zero
			outMovement, _, err := models.ApplyMovement(tx, out)
			if err != nil {
				return err
			}
			transferIn := ref
			transferIn.LocationId = input.TransferLocationId
			transferIn.MovementType = models.MovementTypeTransferIn
			transferIn.UnitCost = outMovement.UnitCost
			inMovement, _, err := models.ApplyMovement(tx, transferIn)
			if err != nil {
				return err
			}
			movements = append(movements, outMovement, inMovement)
			target := input.TransferLocationId
			ret.TransferLocationId = &target
			extra["transfer_location_id"] = target
		case models.ReturnResolutionScrapped:
			scrap := ref
			scrap.MovementType = models.MovementTypeScrap
			scrap.Quantity = ret.Quantity.Neg()
			scrap.UnitCost = decimal.Zero
			scrapMovement, _, err := models.ApplyMovement(tx, scrap)
			if err != nil {
				return err
			}
			movements = append(movements, scrapMovement)
		}

		ret.ResolutionType = &resolution
		ret.ProcessedBy = &userId
		ret.ProcessedAt = &now
		return models.UpdateProductReturnStatus(tx, ret, models.ReturnStatusCompleted, extra)
	})
	if err != nil {
		return nil, err
	}
	recordMovements(movements)

	data := map[string]interface{}{
		"return_number":   ret.ReturnNumber,
		"resolution_type": resolution,
		"quantity":        ret.Quantity.String(),
	}
	if sale != nil {
		data["sale_id"] = sale.ID
		data["sale_status"] = sale.Status
		data["refund_amount"] = ret.RefundAmount.String()
	}
	w.notifier.Notify(ctx, models.NotificationReturnCompleted, []int{ret.ID}, data)
	return ret, nil
}

// refund books a SaleRefund against the return's sale and moves the sale to
// Partial Refund or Refunded. Prior refunds are read under lock so two
// concurrent refunds cannot both pass the bound.
func (w *ReturnWorkflow) refund(tx *gorm.DB, ret *models.ProductReturn, amount decimal.Decimal, method models.RefundMethod, userId int) (*models.Sale, error) {
	if ret.SourceType != models.ReturnSourceSale {
		return nil, models.NewValidationError("resolution_type", "refunds are only possible for returns against a sale; %s came from %s",
			ret.ReturnNumber, ret.SourceType)
	}
	if !amount.IsPositive() {
		return nil, models.NewValidationError("refund_amount", "refund amount must be positive")
	}
	sale, err := models.LockSale(tx, ret.SourceId)
	if err != nil {
		return nil, err
	}
	_, refunded, err := models.LockSaleRefunds(tx, sale.ID)
	if err != nil {
		return nil, err
	}
	if refunded.Add(amount).GreaterThan(sale.TotalAmount) {
		return nil, &models.OverRefundError{
			SaleId:          sale.ID,
			Total:           sale.TotalAmount,
			AlreadyRefunded: refunded,
			Requested:       amount,
		}
	}
	next := sale.RefundStatus(refunded.Add(amount))
	if err := models.RequireTransition(models.EntityKindSale, sale.ID, string(sale.Status), string(next)); err != nil {
		return nil, err
	}

	if err := tx.Create(&models.SaleRefund{
		SaleId:          sale.ID,
		ProductReturnId: ret.ID,
		Amount:          amount,
		RefundMethod:    method,
		Reason:          ret.Reason,
		CreatedBy:       userId,
	}).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Sale{}).Where("id = ?", sale.ID).Update("status", next).Error; err != nil {
		return nil, err
	}
	sale.Status = next
	return sale, nil
}

// CancelReturn withdraws a return. It never writes a stock movement.
func (w *ReturnWorkflow) CancelReturn(ctx context.Context, returnId int, reason string) (*models.ProductReturn, error) {
	if reason == "" {
		return nil, models.NewValidationError("reason", "a cancellation reason is required")
	}
	userId := w.auth.ActingUserId(ctx)
	now := w.now()

	var ret *models.ProductReturn
	err := w.coordinator.Run(ctx, "CancelReturn", returnLockKeys(returnId, 0), func(tx *gorm.DB) error {
		var err error
		ret, err = models.LockProductReturn(tx, returnId)
		if err != nil {
			return err
		}
		if ret.Status == models.ReturnStatusCancelled {
			return models.NewConflictError("return %s is already cancelled", ret.ReturnNumber)
		}
		ret.CancellationReason = reason
		ret.CancelledBy = &userId
		ret.CancelledAt = &now
		return models.UpdateProductReturnStatus(tx, ret, models.ReturnStatusCancelled, map[string]interface{}{
			"cancellation_reason": reason,
			"cancelled_by":        userId,
			"cancelled_at":        now,
		})
	})
	if err != nil {
		return nil, err
	}

	w.notifier.Notify(ctx, models.NotificationReturnCancelled, []int{ret.ID}, map[string]interface{}{
		"return_number": ret.ReturnNumber,
		"reason":        reason,
	})
	return ret, nil
}
