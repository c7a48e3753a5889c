package workflow

import (
	"context"
	"sort"

	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ManualMovement is a stock change entered by staff rather than produced by
// a receipt or a return.
type ManualMovement struct {
	ProductId     int                          `json:"product_id" validate:"required,gt=0"`
	LocationId    int                          `json:"location_id" validate:"required,gt=0"`
	MovementType  models.StockMovementType     `json:"movement_type" validate:"required,oneof=ADJUSTMENT USAGE SCRAP RESERVATION RELEASE"`
	Quantity      decimal.Decimal              `json:"quantity"`
	UnitCost      decimal.Decimal              `json:"unit_cost"`
	ReferenceType models.MovementReferenceType `json:"reference_type"`
	ReferenceId   int                          `json:"reference_id" validate:"gte=0"`
	Notes         string                       `json:"notes" validate:"max=1000"`
}

type StockTransfer struct {
	ProductId      int             `json:"product_id" validate:"required,gt=0"`
	FromLocationId int             `json:"from_location_id" validate:"required,gt=0"`
	ToLocationId   int             `json:"to_location_id" validate:"required,gt=0,nefield=FromLocationId"`
	Quantity       decimal.Decimal `json:"quantity"`
	Notes          string          `json:"notes" validate:"max=1000"`
}

type InventoryWorkflow struct {
	coordinator *TransactionCoordinator
	products    ProductCatalog
	locations   LocationDirectory
	auth        AuthContext
	logger      *logrus.Logger
}

func NewInventoryWorkflow(deps Dependencies) *InventoryWorkflow {
	return &InventoryWorkflow{
		coordinator: deps.coordinator(),
		products:    deps.Products,
		locations:   deps.Locations,
		auth:        deps.Auth,
		logger:      deps.Logger,
	}
}

func (w *InventoryWorkflow) checkProductAndLocations(ctx context.Context, productId int, locationIds ...int) error {
	if _, err := w.products.GetProduct(ctx, productId); err != nil {
		return err
	}
	for _, id := range locationIds {
		if _, err := w.locations.GetLocation(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// RecordMovement applies one manual movement. USAGE and SCRAP take a
// positive quantity and book it as outbound; ADJUSTMENT keeps its sign.
func (w *InventoryWorkflow) RecordMovement(ctx context.Context, input *ManualMovement) (*models.StockMovement, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Quantity.IsZero() {
		return nil, models.NewValidationError("quantity", "quantity must not be zero")
	}
	quantity := input.Quantity
	if input.MovementType.Direction() < 0 {
		quantity = quantity.Abs().Neg()
	} else if input.MovementType.Direction() > 0 {
		quantity = quantity.Abs()
	}
	if err := w.checkProductAndLocations(ctx, input.ProductId, input.LocationId); err != nil {
		return nil, err
	}
	refType := input.ReferenceType
	if refType == "" {
		refType = models.MovementReferenceManual
	}

	userId := w.auth.ActingUserId(ctx)
	var movement *models.StockMovement
	err := w.coordinator.Run(ctx, "RecordMovement", nil, func(tx *gorm.DB) error {
		var err error
		movement, _, err = models.ApplyMovement(tx, models.MovementInput{
			ProductId:     input.ProductId,
			LocationId:    input.LocationId,
			MovementType:  input.MovementType,
			Quantity:      quantity,
			UnitCost:      input.UnitCost,
			ReferenceType: refType,
			ReferenceId:   input.ReferenceId,
			Notes:         input.Notes,
			CreatedBy:     userId,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	recordMovements([]*models.StockMovement{movement})
	return movement, nil
}

// TransferStock moves quantity between two locations as a TRANSFER_OUT and
// TRANSFER_IN pair valued at the source's average cost.
func (w *InventoryWorkflow) TransferStock(ctx context.Context, input *StockTransfer) ([]*models.StockMovement, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, models.NewValidationError("quantity", "transfer quantity must be positive")
	}
	if err := w.checkProductAndLocations(ctx, input.ProductId, input.FromLocationId, input.ToLocationId); err != nil {
		return nil, err
	}

	userId := w.auth.ActingUserId(ctx)
	var movements []*models.StockMovement
	err := w.coordinator.Run(ctx, "TransferStock", nil, func(tx *gorm.DB) error {
		movements = nil
		// both rows are taken in location order before either is changed
		locationIds := []int{input.FromLocationId, input.ToLocationId}
		sort.Ints(locationIds)
		for _, id := range locationIds {
			if _, err := models.GetLockedInventoryRecord(tx, input.ProductId, id); err != nil {
				return err
			}
		}

		out, _, err := models.ApplyMovement(tx, models.MovementInput{
			ProductId:     input.ProductId,
			LocationId:    input.FromLocationId,
			MovementType:  models.MovementTypeTransferOut,
			Quantity:      input.Quantity.Neg(),
			ReferenceType: models.MovementReferenceManual,
			Notes:         input.Notes,
			CreatedBy:     userId,
		})
		if err != nil {
			return err
		}
		in, _, err := models.ApplyMovement(tx, models.MovementInput{
			ProductId:     input.ProductId,
			LocationId:    input.ToLocationId,
			MovementType:  models.MovementTypeTransferIn,
			Quantity:      input.Quantity,
			UnitCost:      out.UnitCost,
			ReferenceType: models.MovementReferenceManual,
			ReferenceId:   out.ID,
			Notes:         input.Notes,
			CreatedBy:     userId,
		})
		if err != nil {
			return err
		}
		movements = append(movements, out, in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordMovements(movements)
	return movements, nil
}
