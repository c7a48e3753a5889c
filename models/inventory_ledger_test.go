package models_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/shop_backend/models"
	"gorm.io/gorm"
)

const (
	testProduct  = 1
	testLocation = 1
)

func apply(t *testing.T, db *gorm.DB, movementType models.StockMovementType, qty string, unitCost string) *models.StockMovement {
	t.Helper()
	input := models.MovementInput{
		ProductId:     testProduct,
		LocationId:    testLocation,
		MovementType:  movementType,
		Quantity:      dec(qty),
		ReferenceType: models.MovementReferenceManual,
	}
	if unitCost != "" {
		input.UnitCost = dec(unitCost)
	}
	movement, _, err := models.ApplyMovement(db, input)
	if err != nil {
		t.Fatalf("ApplyMovement %s %s: %v", movementType, qty, err)
	}
	return movement
}

func TestApplyMovementKeepsBeforeAfterAndAverageCost(t *testing.T) {
	db := openTestDB(t)

	first := apply(t, db, models.MovementTypePurchase, "10", "5")
	if !first.QuantityBefore.IsZero() || !first.QuantityAfter.Equal(dec("10")) {
		t.Fatalf("first movement before/after = %s/%s", first.QuantityBefore, first.QuantityAfter)
	}
	if !first.TotalCost.Equal(dec("50")) {
		t.Fatalf("first total cost = %s, want 50", first.TotalCost)
	}

	sale := apply(t, db, models.MovementTypeSale, "-4", "")
	if !sale.QuantityBefore.Equal(dec("10")) || !sale.QuantityAfter.Equal(dec("6")) {
		t.Fatalf("sale before/after = %s/%s", sale.QuantityBefore, sale.QuantityAfter)
	}
	if !sale.UnitCost.Equal(dec("5")) {
		t.Fatalf("outbound movement should be valued at average cost, got %s", sale.UnitCost)
	}

	_, record, err := models.ApplyMovement(db, models.MovementInput{
		ProductId: testProduct, LocationId: testLocation,
		MovementType: models.MovementTypePurchase, Quantity: dec("4"), UnitCost: dec("10"),
	})
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if !record.Quantity.Equal(dec("10")) || !record.AverageCost.Equal(dec("7")) || !record.TotalValue.Equal(dec("70")) {
		t.Fatalf("record = qty %s avg %s value %s, want 10/7/70", record.Quantity, record.AverageCost, record.TotalValue)
	}

	stored, err := models.GetInventoryRecord(db, testProduct, testLocation)
	if err != nil {
		t.Fatalf("GetInventoryRecord: %v", err)
	}
	if !stored.Quantity.Equal(dec("10")) || !stored.AvailableQuantity.Equal(dec("10")) {
		t.Fatalf("stored qty/available = %s/%s", stored.Quantity, stored.AvailableQuantity)
	}

	movements, err := models.ListStockMovements(db, models.InventoryFilter{ProductId: testProduct})
	if err != nil {
		t.Fatalf("ListStockMovements: %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("expected 3 movements, got %d", len(movements))
	}
	for _, m := range movements {
		if !m.QuantityAfter.Sub(m.QuantityBefore).Equal(m.Quantity) {
			t.Fatalf("movement %d breaks after-before=quantity: %s %s %s", m.ID, m.QuantityBefore, m.Quantity, m.QuantityAfter)
		}
	}
}

func TestApplyMovementRejectsBadInput(t *testing.T) {
	db := openTestDB(t)
	cases := []models.MovementInput{
		{ProductId: testProduct, LocationId: testLocation, MovementType: models.MovementTypeSale, Quantity: dec("1")},
		{ProductId: testProduct, LocationId: testLocation, MovementType: models.MovementTypePurchase, Quantity: dec("-1")},
		{ProductId: testProduct, LocationId: testLocation, MovementType: models.MovementTypeAdjustment, Quantity: dec("0")},
		{ProductId: testProduct, LocationId: testLocation, MovementType: "TELEPORT", Quantity: dec("1")},
		{ProductId: 0, LocationId: testLocation, MovementType: models.MovementTypePurchase, Quantity: dec("1")},
		{ProductId: testProduct, LocationId: testLocation, MovementType: models.MovementTypePurchase, Quantity: dec("1"), UnitCost: dec("-2")},
	}
	for i, input := range cases {
		_, _, err := models.ApplyMovement(db, input)
		var validation *models.ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestApplyMovementInsufficientStock(t *testing.T) {
	db := openTestDB(t)
	apply(t, db, models.MovementTypePurchase, "3", "2")

	_, _, err := models.ApplyMovement(db, models.MovementInput{
		ProductId: testProduct, LocationId: testLocation,
		MovementType: models.MovementTypeUsage, Quantity: dec("-5"),
	})
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if !stockErr.Available.Equal(dec("3")) || !stockErr.Requested.Equal(dec("5")) {
		t.Fatalf("available/requested = %s/%s", stockErr.Available, stockErr.Requested)
	}
	record, _ := models.GetInventoryRecord(db, testProduct, testLocation)
	if !record.Quantity.Equal(dec("3")) {
		t.Fatalf("failed movement changed quantity to %s", record.Quantity)
	}
}

func TestStockMovementsAreAppendOnly(t *testing.T) {
	db := openTestDB(t)
	movement := apply(t, db, models.MovementTypePurchase, "1", "1")

	err := db.Model(movement).Update("notes", "edited").Error
	if !errors.Is(err, models.ErrStockMovementImmutable) {
		t.Fatalf("update: expected ErrStockMovementImmutable, got %v", err)
	}
	err = db.Delete(movement).Error
	if !errors.Is(err, models.ErrStockMovementImmutable) {
		t.Fatalf("delete: expected ErrStockMovementImmutable, got %v", err)
	}

	bad := models.StockMovement{
		ProductId: testProduct, LocationId: testLocation, MovementType: models.MovementTypePurchase,
		Quantity: dec("2"), QuantityBefore: dec("1"), QuantityAfter: dec("4"),
	}
	if err := db.Create(&bad).Error; err == nil {
		t.Fatalf("movement with inconsistent before/after was stored")
	}
}

func TestReserveAndReleaseStock(t *testing.T) {
	db := openTestDB(t)
	apply(t, db, models.MovementTypePurchase, "10", "1")

	_, record, err := models.ReserveStock(db, testProduct, testLocation, dec("4"), models.MovementReferenceJobSheet, 9, 1)
	if err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}
	if !record.ReservedQuantity.Equal(dec("4")) || !record.AvailableQuantity.Equal(dec("6")) {
		t.Fatalf("reserved/available = %s/%s, want 4/6", record.ReservedQuantity, record.AvailableQuantity)
	}

	// reserved units cannot be consumed by an ordinary outbound movement
	_, _, err = models.ApplyMovement(db, models.MovementInput{
		ProductId: testProduct, LocationId: testLocation,
		MovementType: models.MovementTypeSale, Quantity: dec("-7"),
	})
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError when selling into reserved stock, got %v", err)
	}

	if _, _, err := models.ReserveStock(db, testProduct, testLocation, dec("7"), models.MovementReferenceJobSheet, 9, 1); !errors.As(err, &stockErr) {
		t.Fatalf("over-reservation: expected InsufficientStockError, got %v", err)
	}
	if _, _, err := models.ReleaseStock(db, testProduct, testLocation, dec("5"), models.MovementReferenceJobSheet, 9, 1); !errors.As(err, &stockErr) {
		t.Fatalf("over-release: expected InsufficientStockError, got %v", err)
	}

	release, record, err := models.ReleaseStock(db, testProduct, testLocation, dec("4"), models.MovementReferenceJobSheet, 9, 1)
	if err != nil {
		t.Fatalf("ReleaseStock: %v", err)
	}
	if !release.QuantityBefore.Equal(dec("4")) || !release.QuantityAfter.IsZero() {
		t.Fatalf("release before/after = %s/%s", release.QuantityBefore, release.QuantityAfter)
	}
	if !record.Quantity.Equal(dec("10")) || !record.AvailableQuantity.Equal(dec("10")) {
		t.Fatalf("after release qty/available = %s/%s", record.Quantity, record.AvailableQuantity)
	}
}

func TestNextTransactionNumber(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := models.NextTransactionNumber(db, models.GoodsReceiptNumberPrefix, at)
	if err != nil {
		t.Fatalf("NextTransactionNumber: %v", err)
	}
	second, _ := models.NextTransactionNumber(db, models.GoodsReceiptNumberPrefix, at)
	if first != "GRN-2026-000001" || second != "GRN-2026-000002" {
		t.Fatalf("got %s, %s", first, second)
	}

	rollback := errors.New("rollback")
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := models.NextTransactionNumber(tx, models.GoodsReceiptNumberPrefix, at); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("expected rollback, got %v", err)
	}
	third, _ := models.NextTransactionNumber(db, models.GoodsReceiptNumberPrefix, at)
	if third != "GRN-2026-000003" {
		t.Fatalf("rolled back number was not reused: got %s", third)
	}

	other, _ := models.NextTransactionNumber(db, models.ProductReturnNumberPrefix, at.AddDate(1, 0, 0))
	if other != "RET-2027-000001" {
		t.Fatalf("got %s", other)
	}
}

func TestRecomputeFromJournalAndRebuild(t *testing.T) {
	db := openTestDB(t)
	apply(t, db, models.MovementTypePurchase, "10", "3")
	apply(t, db, models.MovementTypeUsage, "-2", "")

	drifts, err := models.RecomputeFromJournal(db)
	if err != nil {
		t.Fatalf("RecomputeFromJournal: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift, got %+v", drifts)
	}

	if err := db.Exec("UPDATE inventory_records SET quantity = ? WHERE product_id = ? AND location_id = ?", 5, testProduct, testLocation).Error; err != nil {
		t.Fatalf("corrupt record: %v", err)
	}
	drifts, err = models.RecomputeFromJournal(db)
	if err != nil {
		t.Fatalf("RecomputeFromJournal: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("expected 1 drift, got %d", len(drifts))
	}
	if !drifts[0].Journal.Quantity.Equal(dec("8")) {
		t.Fatalf("journal quantity = %s, want 8", drifts[0].Journal.Quantity)
	}

	rebuilt, err := models.RebuildInventoryRecord(db, testProduct, testLocation)
	if err != nil {
		t.Fatalf("RebuildInventoryRecord: %v", err)
	}
	if !rebuilt.Quantity.Equal(dec("8")) || !rebuilt.AvailableQuantity.Equal(dec("8")) {
		t.Fatalf("rebuilt qty/available = %s/%s", rebuilt.Quantity, rebuilt.AvailableQuantity)
	}
	drifts, _ = models.RecomputeFromJournal(db)
	if len(drifts) != 0 {
		t.Fatalf("drift left after rebuild: %+v", drifts)
	}
}
