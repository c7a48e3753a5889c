package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryRecord is the materialized balance for one (product, location).
// It is created lazily by the first movement and only ever changed through
// ApplyMovement (or RebuildInventoryRecord when repairing drift).
type InventoryRecord struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProductId         int             `gorm:"not null;uniqueIndex:idx_inventory_product_location" json:"product_id"`
	LocationId        int             `gorm:"not null;uniqueIndex:idx_inventory_product_location;index" json:"location_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	ReservedQuantity  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"reserved_quantity"`
	AvailableQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"available_quantity"`
	AverageCost       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"average_cost"`
	TotalValue        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_value"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave keeps available = quantity - reserved on every write.
func (r *InventoryRecord) BeforeSave(tx *gorm.DB) error {
	r.AvailableQuantity = r.Quantity.Sub(r.ReservedQuantity)
	return nil
}

// StockMovement is one append-only journal line. Quantity is signed; for
// RESERVATION/RELEASE the before/after pair tracks the reserved column.
type StockMovement struct {
	ID             int                   `gorm:"primary_key" json:"id"`
	ProductId      int                   `gorm:"not null;index:idx_movement_product_location" json:"product_id"`
	LocationId     int                   `gorm:"not null;index:idx_movement_product_location" json:"location_id"`
	MovementType   StockMovementType     `gorm:"size:30;not null;index" json:"movement_type"`
	Quantity       decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"quantity"`
	QuantityBefore decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"quantity_before"`
	QuantityAfter  decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"quantity_after"`
	UnitCost       decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0" json:"unit_cost"`
	TotalCost      decimal.Decimal       `gorm:"type:decimal(20,4);not null;default:0" json:"total_cost"`
	ReferenceType  MovementReferenceType `gorm:"size:30;index:idx_movement_reference" json:"reference_type"`
	ReferenceId    int                   `gorm:"index:idx_movement_reference" json:"reference_id"`
	Notes          string                `gorm:"type:text" json:"notes"`
	CreatedBy      int                   `json:"created_by"`
	CreatedAt      time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

var ErrStockMovementImmutable = errors.New("stock movements are append-only")

// BeforeCreate enforces the journal arithmetic: after - before == quantity,
// and the sign of quantity matches the movement type.
func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.Quantity.IsZero() {
		return NewValidationError("quantity", "movement quantity must not be zero")
	}
	if !m.QuantityAfter.Sub(m.QuantityBefore).Equal(m.Quantity) {
		return fmt.Errorf("stock movement arithmetic mismatch: before %s + %s != after %s",
			m.QuantityBefore, m.Quantity, m.QuantityAfter)
	}
	if !directionMatches(m.MovementType, m.Quantity) {
		return NewValidationError("quantity", "sign of %s does not match movement type %s", m.Quantity, m.MovementType)
	}
	return nil
}

func (m *StockMovement) BeforeUpdate(tx *gorm.DB) error {
	return ErrStockMovementImmutable
}

func (m *StockMovement) BeforeDelete(tx *gorm.DB) error {
	return ErrStockMovementImmutable
}

func directionMatches(t StockMovementType, quantity decimal.Decimal) bool {
	switch t.Direction() {
	case 1:
		return quantity.IsPositive()
	case -1:
		return quantity.IsNegative()
	}
	return !quantity.IsZero()
}

// MovementInput describes one ledger change. Quantity is a signed delta:
// positive for inbound and reservation, negative for outbound and release.
type MovementInput struct {
	ProductId     int
	LocationId    int
	MovementType  StockMovementType
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	ReferenceType MovementReferenceType
	ReferenceId   int
	Notes         string
	CreatedBy     int
}

func (input MovementInput) validate() error {
	if input.ProductId <= 0 {
		return NewValidationError("product_id", "product is required")
	}
	if input.LocationId <= 0 {
		return NewValidationError("location_id", "location is required")
	}
	if !input.MovementType.IsValid() {
		return NewValidationError("movement_type", "unknown movement type %q", input.MovementType)
	}
	if input.Quantity.IsZero() {
		return NewValidationError("quantity", "quantity must not be zero")
	}
	if !directionMatches(input.MovementType, input.Quantity) {
		return NewValidationError("quantity", "sign of %s does not match movement type %s", input.Quantity, input.MovementType)
	}
	if input.UnitCost.IsNegative() {
		return NewValidationError("unit_cost", "unit cost must not be negative")
	}
	return nil
}

// ApplyMovement is the only write path into the ledger: it locks (or lazily
// creates) the inventory record, applies the delta and appends the movement,
// all on the caller's transaction.
func ApplyMovement(tx *gorm.DB, input MovementInput) (*StockMovement, *InventoryRecord, error) {
	if err := input.validate(); err != nil {
		return nil, nil, err
	}
	record, err := lockInventoryRecord(tx, input.ProductId, input.LocationId)
	if err != nil {
		return nil, nil, err
	}

	var before, after decimal.Decimal
	unitCost := input.UnitCost
	if input.MovementType.IsReservation() {
		before = record.ReservedQuantity
		after = before.Add(input.Quantity)
		if after.IsNegative() {
			return nil, nil, &InsufficientStockError{ProductId: input.ProductId, LocationId: input.LocationId,
				Available: before, Requested: input.Quantity.Abs()}
		}
		if after.GreaterThan(record.Quantity) {
			return nil, nil, &InsufficientStockError{ProductId: input.ProductId, LocationId: input.LocationId,
				Available: record.Quantity.Sub(before), Requested: input.Quantity}
		}
		record.ReservedQuantity = after
	} else {
		before = record.Quantity
		after = before.Add(input.Quantity)
		if input.Quantity.IsNegative() && after.LessThan(record.ReservedQuantity) {
			return nil, nil, &InsufficientStockError{ProductId: input.ProductId, LocationId: input.LocationId,
				Available: record.Quantity.Sub(record.ReservedQuantity), Requested: input.Quantity.Abs()}
		}
		unitCost = record.applyValuation(input.Quantity, input.UnitCost)
		record.Quantity = after
	}

	if err := tx.Save(record).Error; err != nil {
		return nil, nil, err
	}

	movement := StockMovement{
		ProductId:      input.ProductId,
		LocationId:     input.LocationId,
		MovementType:   input.MovementType,
		Quantity:       input.Quantity,
		QuantityBefore: before,
		QuantityAfter:  after,
		UnitCost:       unitCost,
		TotalCost:      input.Quantity.Abs().Mul(unitCost),
		ReferenceType:  input.ReferenceType,
		ReferenceId:    input.ReferenceId,
		Notes:          input.Notes,
		CreatedBy:      input.CreatedBy,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, nil, err
	}
	return &movement, record, nil
}

// applyValuation moves total value by delta using weighted average cost and
// returns the unit cost the movement was valued at. Must run before
// Quantity is updated.
func (r *InventoryRecord) applyValuation(delta decimal.Decimal, unitCost decimal.Decimal) decimal.Decimal {
	cost := r.AverageCost
	if delta.IsPositive() && unitCost.IsPositive() {
		cost = unitCost
	}
	r.TotalValue = r.TotalValue.Add(delta.Mul(cost))
	newQty := r.Quantity.Add(delta)
	if newQty.IsPositive() {
		r.AverageCost = r.TotalValue.DivRound(newQty, 4)
	} else {
		r.TotalValue = decimal.Zero
	}
	return cost
}

func lockInventoryRecord(tx *gorm.DB, productId int, locationId int) (*InventoryRecord, error) {
	return lockOrCreate(tx, &InventoryRecord{ProductId: productId, LocationId: locationId},
		"product_id = ? AND location_id = ?", productId, locationId)
}

// GetLockedInventoryRecord locks (or lazily creates) the record for the rest
// of the transaction. Callers touching several records take them in a fixed
// order with this before applying movements.
func GetLockedInventoryRecord(tx *gorm.DB, productId int, locationId int) (*InventoryRecord, error) {
	return lockInventoryRecord(tx, productId, locationId)
}

// GetInventoryRecord returns the balance for (product, location). A pair
// with no movements yet reads as an all-zero record with ID 0.
func GetInventoryRecord(db *gorm.DB, productId int, locationId int) (*InventoryRecord, error) {
	var record InventoryRecord
	err := db.Where("product_id = ? AND location_id = ?", productId, locationId).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &InventoryRecord{ProductId: productId, LocationId: locationId}, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type InventoryFilter struct {
	ProductId  int
	LocationId int
	Limit      int
}

func (f InventoryFilter) apply(db *gorm.DB) *gorm.DB {
	if f.ProductId > 0 {
		db = db.Where("product_id = ?", f.ProductId)
	}
	if f.LocationId > 0 {
		db = db.Where("location_id = ?", f.LocationId)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return db.Limit(limit)
}

func ListInventoryRecords(db *gorm.DB, filter InventoryFilter) ([]InventoryRecord, error) {
	var records []InventoryRecord
	err := filter.apply(db).Order("product_id, location_id").Find(&records).Error
	return records, err
}

// ListStockMovements returns movements newest first.
func ListStockMovements(db *gorm.DB, filter InventoryFilter) ([]StockMovement, error) {
	var movements []StockMovement
	err := filter.apply(db).Order("id DESC").Find(&movements).Error
	return movements, err
}

func ListMovementsByReference(db *gorm.DB, refType MovementReferenceType, refId int) ([]StockMovement, error) {
	var movements []StockMovement
	err := db.Where("reference_type = ? AND reference_id = ?", refType, refId).Order("id").Find(&movements).Error
	return movements, err
}

// ReserveStock moves quantity from available to reserved.
func ReserveStock(tx *gorm.DB, productId int, locationId int, quantity decimal.Decimal, refType MovementReferenceType, refId int, userId int) (*StockMovement, *InventoryRecord, error) {
	if !quantity.IsPositive() {
		return nil, nil, NewValidationError("quantity", "reservation quantity must be positive")
	}
	return ApplyMovement(tx, MovementInput{
		ProductId:     productId,
		LocationId:    locationId,
		MovementType:  MovementTypeReservation,
		Quantity:      quantity,
		ReferenceType: refType,
		ReferenceId:   refId,
		CreatedBy:     userId,
	})
}

// ReleaseStock moves quantity from reserved back to available.
func ReleaseStock(tx *gorm.DB, productId int, locationId int, quantity decimal.Decimal, refType MovementReferenceType, refId int, userId int) (*StockMovement, *InventoryRecord, error) {
	if !quantity.IsPositive() {
		return nil, nil, NewValidationError("quantity", "release quantity must be positive")
	}
	return ApplyMovement(tx, MovementInput{
		ProductId:     productId,
		LocationId:    locationId,
		MovementType:  MovementTypeRelease,
		Quantity:      quantity.Neg(),
		ReferenceType: refType,
		ReferenceId:   refId,
		CreatedBy:     userId,
	})
}

// JournalBalance is what the journal says a record should hold.
type JournalBalance struct {
	ProductId  int
	LocationId int
	Quantity   decimal.Decimal
	Reserved   decimal.Decimal
}

var journalBalanceSelect = fmt.Sprintf(
	"product_id, location_id, "+
		"COALESCE(SUM(CASE WHEN movement_type IN ('%s','%s') THEN 0 ELSE quantity END), 0) AS quantity, "+
		"COALESCE(SUM(CASE WHEN movement_type IN ('%s','%s') THEN quantity ELSE 0 END), 0) AS reserved",
	MovementTypeReservation, MovementTypeRelease, MovementTypeReservation, MovementTypeRelease)

func JournalBalances(db *gorm.DB) ([]JournalBalance, error) {
	var balances []JournalBalance
	err := db.Model(&StockMovement{}).Select(journalBalanceSelect).
		Group("product_id, location_id").Scan(&balances).Error
	return balances, err
}

// LedgerDrift is one record whose balances disagree with its journal.
type LedgerDrift struct {
	Record   InventoryRecord
	Journal  JournalBalance
	Messages []string
}

// RecomputeFromJournal compares every inventory record with the sums of its
// journal. Records with movements but no row are reported with ID 0.
func RecomputeFromJournal(db *gorm.DB) ([]LedgerDrift, error) {
	balances, err := JournalBalances(db)
	if err != nil {
		return nil, err
	}
	var records []InventoryRecord
	if err := db.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}

	type key struct{ productId, locationId int }
	byKey := make(map[key]JournalBalance, len(balances))
	for _, b := range balances {
		byKey[key{b.ProductId, b.LocationId}] = b
	}

	var drifts []LedgerDrift
	for _, r := range records {
		k := key{r.ProductId, r.LocationId}
		b, ok := byKey[k]
		delete(byKey, k)
		if !ok {
			b = JournalBalance{ProductId: r.ProductId, LocationId: r.LocationId}
		}
		var messages []string
		if !r.Quantity.Equal(b.Quantity) {
			messages = append(messages, fmt.Sprintf("quantity %s, journal sum %s", r.Quantity, b.Quantity))
		}
		if !r.ReservedQuantity.Equal(b.Reserved) {
			messages = append(messages, fmt.Sprintf("reserved %s, journal sum %s", r.ReservedQuantity, b.Reserved))
		}
		if !r.AvailableQuantity.Equal(r.Quantity.Sub(r.ReservedQuantity)) {
			messages = append(messages, fmt.Sprintf("available %s, expected %s", r.AvailableQuantity, r.Quantity.Sub(r.ReservedQuantity)))
		}
		if len(messages) > 0 {
			drifts = append(drifts, LedgerDrift{Record: r, Journal: b, Messages: messages})
		}
	}
	for _, b := range byKey {
		drifts = append(drifts, LedgerDrift{
			Record:   InventoryRecord{ProductId: b.ProductId, LocationId: b.LocationId},
			Journal:  b,
			Messages: []string{"journal has movements but no inventory record exists"},
		})
	}
	return drifts, nil
}

func journalBalanceFor(tx *gorm.DB, productId int, locationId int) (JournalBalance, error) {
	var balance JournalBalance
	err := tx.Model(&StockMovement{}).Select(journalBalanceSelect).
		Where("product_id = ? AND location_id = ?", productId, locationId).
		Group("product_id, location_id").Scan(&balance).Error
	balance.ProductId = productId
	balance.LocationId = locationId
	return balance, err
}

// RebuildInventoryRecord overwrites quantity and reserved with the journal
// sums. Valuation is left alone. Returns the record as rewritten.
func RebuildInventoryRecord(tx *gorm.DB, productId int, locationId int) (*InventoryRecord, error) {
	record, err := lockInventoryRecord(tx, productId, locationId)
	if err != nil {
		return nil, err
	}
	balance, err := journalBalanceFor(tx, productId, locationId)
	if err != nil {
		return nil, err
	}
	record.Quantity = balance.Quantity
	record.ReservedQuantity = balance.Reserved
	if !record.Quantity.IsPositive() {
		record.TotalValue = decimal.Zero
	} else {
		record.TotalValue = record.AverageCost.Mul(record.Quantity)
	}
	if err := tx.Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}
