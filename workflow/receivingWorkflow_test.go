package workflow

import (
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/shop_backend/models"
)

func TestReceiveFullOrderCommitsOnApproval(t *testing.T) {
	f := newFixture(t)
	// X units already on hand before the receipt
	if _, err := NewInventoryWorkflow(f.deps).RecordMovement(f.ctx, &ManualMovement{
		ProductId: f.product.ID, LocationId: f.warehouse.ID,
		MovementType: models.MovementTypeAdjustment, Quantity: dec("3"), UnitCost: dec("5"),
	}); err != nil {
		t.Fatalf("RecordMovement: %v", err)
	}
	order := f.submitOrder(t, "10")

	receipt := f.receive(t, order.ID, "10", "10")
	if receipt.Status != models.GoodsReceiptStatusPendingQC {
		t.Fatalf("receipt status = %s, want Pending QC", receipt.Status)
	}
	if receipt.ReceiptNumber == "" || receipt.DestinationLocationId != f.warehouse.ID {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got := f.orderStatus(t, order.ID); got != models.PurchaseOrderStatusSubmitted {
		t.Fatalf("order status before approval = %s, want Submitted", got)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("3")) {
		t.Fatalf("creating a receipt moved stock: %s", got)
	}

	approved, err := NewReceivingWorkflow(f.deps).ApproveGoodsReceipt(f.ctx, receipt.ID, 0)
	if err != nil {
		t.Fatalf("ApproveGoodsReceipt: %v", err)
	}
	if approved.Status != models.GoodsReceiptStatusCompleted || !approved.TotalValue.Equal(dec("50")) {
		t.Fatalf("approved receipt status %s value %s", approved.Status, approved.TotalValue)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != 7 {
		t.Fatalf("approved_by not recorded: %v", approved.ApprovedBy)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("13")) {
		t.Fatalf("warehouse quantity = %s, want 13", got)
	}
	movements, err := models.ListMovementsByReference(f.db, models.MovementReferenceGoodsReceipt, receipt.ID)
	if err != nil {
		t.Fatalf("ListMovementsByReference: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected one PURCHASE movement, got %d", len(movements))
	}
	m := movements[0]
	if m.MovementType != models.MovementTypePurchase || !m.QuantityBefore.Equal(dec("3")) || !m.QuantityAfter.Equal(dec("13")) {
		t.Fatalf("movement %s %s -> %s", m.MovementType, m.QuantityBefore, m.QuantityAfter)
	}
	if got := f.orderStatus(t, order.ID); got != models.PurchaseOrderStatusReceived {
		t.Fatalf("order status = %s, want Received", got)
	}

	var notifications int64
	f.db.Model(&models.NotificationRecord{}).
		Where("event_kind IN ?", []models.NotificationEventKind{models.NotificationGoodsReceiptCreated, models.NotificationGoodsReceiptApproved}).
		Count(&notifications)
	if notifications != 2 {
		t.Fatalf("expected 2 queued notifications, got %d", notifications)
	}
}

func TestPartialReceiptThenOverReceipt(t *testing.T) {
	f := newFixture(t)
	order := f.submitOrder(t, "10")
	receiving := NewReceivingWorkflow(f.deps)

	first := f.receive(t, order.ID, "6", "6")
	if _, err := receiving.ApproveGoodsReceipt(f.ctx, first.ID, 0); err != nil {
		t.Fatalf("ApproveGoodsReceipt: %v", err)
	}
	if got := f.orderStatus(t, order.ID); got != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("order status = %s, want Partially Received", got)
	}

	_, err := receiving.CreateGoodsReceipt(f.ctx, &NewGoodsReceipt{
		PurchaseOrderId: order.ID,
		Items:           []NewGoodsReceiptItem{{ProductId: f.product.ID, ReceivedQuantity: dec("5"), AcceptedQuantity: dec("5")}},
	})
	var overReceipt *models.OverReceiptError
	if !errors.As(err, &overReceipt) {
		t.Fatalf("expected OverReceiptError, got %v", err)
	}
	if !overReceipt.Remaining().Equal(dec("4")) {
		t.Fatalf("remaining allowance = %s, want 4", overReceipt.Remaining())
	}

	second := f.receive(t, order.ID, "4", "4")
	if _, err := receiving.ApproveGoodsReceipt(f.ctx, second.ID, 0); err != nil {
		t.Fatalf("ApproveGoodsReceipt: %v", err)
	}
	if got := f.orderStatus(t, order.ID); got != models.PurchaseOrderStatusReceived {
		t.Fatalf("order status = %s, want Received", got)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("10")) {
		t.Fatalf("warehouse quantity = %s, want 10", got)
	}
}

func TestOpenReceiptBlocksAnotherReceipt(t *testing.T) {
	f := newFixture(t)
	order := f.submitOrder(t, "10")
	f.receive(t, order.ID, "2", "2")

	_, err := NewReceivingWorkflow(f.deps).CreateGoodsReceipt(f.ctx, &NewGoodsReceipt{
		PurchaseOrderId: order.ID,
		Items:           []NewGoodsReceiptItem{{ProductId: f.product.ID, ReceivedQuantity: dec("1")}},
	})
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestQualityCheckDrivesCommittedQuantity(t *testing.T) {
	f := newFixture(t)
	order := f.submitOrder(t, "10")
	receiving := NewReceivingWorkflow(f.deps)
	receipt := f.receive(t, order.ID, "10", "0")
	if receipt.Items[0].QualityStatus != models.QualityStatusPending {
		t.Fatalf("quality status = %s, want Pending", receipt.Items[0].QualityStatus)
	}

	_, err := receiving.ApproveGoodsReceipt(f.ctx, receipt.ID, 0)
	var invalid *models.InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("approving with pending quality check: expected InvalidStateError, got %v", err)
	}

	_, err = receiving.PerformQualityCheck(f.ctx, receipt.ID, []QualityCheckResult{{
		GoodsReceiptItemId: receipt.Items[0].ID, AcceptedQuantity: dec("8"), RejectedQuantity: dec("3"),
	}})
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("accepted+rejected > received: expected ValidationError, got %v", err)
	}

	checked, err := receiving.PerformQualityCheck(f.ctx, receipt.ID, []QualityCheckResult{{
		GoodsReceiptItemId: receipt.Items[0].ID, AcceptedQuantity: dec("8"), RejectedQuantity: dec("2"),
	}})
	if err != nil {
		t.Fatalf("PerformQualityCheck: %v", err)
	}
	if checked.Status != models.GoodsReceiptStatusInspecting || checked.Items[0].QualityStatus != models.QualityStatusPartial {
		t.Fatalf("after check: status %s quality %s", checked.Status, checked.Items[0].QualityStatus)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.IsZero() {
		t.Fatalf("quality check moved stock: %s", got)
	}

	if _, err := receiving.ApproveGoodsReceipt(f.ctx, receipt.ID, f.shop.ID); err != nil {
		t.Fatalf("ApproveGoodsReceipt: %v", err)
	}
	if got := f.quantityAt(t, f.shop.ID); !got.Equal(dec("8")) {
		t.Fatalf("shop quantity = %s, want 8", got)
	}
	// rejected units do not count toward the order
	if got := f.orderStatus(t, order.ID); got != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("order status = %s, want Partially Received", got)
	}
}

func TestConcurrentApprovalCommitsOnce(t *testing.T) {
	f := newFixture(t)
	order := f.submitOrder(t, "10")
	receipt := f.receive(t, order.ID, "10", "10")
	receiving := NewReceivingWorkflow(f.deps)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = receiving.ApproveGoodsReceipt(f.ctx, receipt.ID, 0)
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		var conflict *models.ConflictError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicts != 1 {
		t.Fatalf("succeeded=%d conflicts=%d, want 1/1", succeeded, conflicts)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("10")) {
		t.Fatalf("warehouse quantity = %s, want 10", got)
	}
	order, _ = models.GetPurchaseOrder(f.ctx, f.db, order.ID)
	if !order.Items[0].ReceivedQuantity.Equal(dec("10")) {
		t.Fatalf("received quantity = %s, want 10", order.Items[0].ReceivedQuantity)
	}
}

func TestDeleteGoodsReceipt(t *testing.T) {
	f := newFixture(t)
	order := f.submitOrder(t, "10")
	receiving := NewReceivingWorkflow(f.deps)

	open := f.receive(t, order.ID, "5", "5")
	if err := receiving.DeleteGoodsReceipt(f.ctx, open.ID); err != nil {
		t.Fatalf("DeleteGoodsReceipt: %v", err)
	}
	if _, err := models.GetGoodsReceipt(f.ctx, f.db, open.ID); err == nil {
		t.Fatalf("deleted receipt is still readable")
	}

	done := f.receive(t, order.ID, "5", "5")
	if _, err := receiving.ApproveGoodsReceipt(f.ctx, done.ID, 0); err != nil {
		t.Fatalf("ApproveGoodsReceipt: %v", err)
	}
	err := receiving.DeleteGoodsReceipt(f.ctx, done.ID)
	var invalid *models.InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("deleting a completed receipt: expected InvalidStateError, got %v", err)
	}
}

func TestQualityCheckMustDecideEveryItem(t *testing.T) {
	f := newFixture(t)
	second, err := models.CreateProduct(f.ctx, f.db, &models.NewProduct{Sku: "BAT-001", Name: "Battery", UnitCost: dec("15")})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	order, err := NewPurchaseOrderWorkflow(f.deps).SubmitPurchaseOrder(f.ctx, &models.NewPurchaseOrder{
		SupplierId: f.supplier.ID,
		Items: []models.NewPurchaseOrderItem{
			{ProductId: f.product.ID, Quantity: dec("10"), UnitPrice: dec("5")},
			{ProductId: second.ID, Quantity: dec("4"), UnitPrice: dec("2")},
		},
	})
	if err != nil {
		t.Fatalf("SubmitPurchaseOrder: %v", err)
	}
	receiving := NewReceivingWorkflow(f.deps)
	receipt, err := receiving.CreateGoodsReceipt(f.ctx, &NewGoodsReceipt{
		PurchaseOrderId: order.ID,
		Items: []NewGoodsReceiptItem{
			{ProductId: f.product.ID, ReceivedQuantity: dec("10")},
			{ProductId: second.ID, ReceivedQuantity: dec("4")},
		},
	})
	if err != nil {
		t.Fatalf("CreateGoodsReceipt: %v", err)
	}
	screenItem, batteryItem := receipt.Items[0].ID, receipt.Items[1].ID

	var validation *models.ValidationError
	_, err = receiving.PerformQualityCheck(f.ctx, receipt.ID, []QualityCheckResult{
		{GoodsReceiptItemId: screenItem, AcceptedQuantity: dec("0"), RejectedQuantity: dec("0")},
		{GoodsReceiptItemId: batteryItem, AcceptedQuantity: dec("4")},
	})
	if !errors.As(err, &validation) {
		t.Fatalf("0/0 result: expected ValidationError, got %v", err)
	}
	_, err = receiving.PerformQualityCheck(f.ctx, receipt.ID, []QualityCheckResult{
		{GoodsReceiptItemId: screenItem, AcceptedQuantity: dec("10")},
	})
	if !errors.As(err, &validation) {
		t.Fatalf("item without a result: expected ValidationError, got %v", err)
	}

	stored, err := models.GetGoodsReceipt(f.ctx, f.db, receipt.ID)
	if err != nil {
		t.Fatalf("GetGoodsReceipt: %v", err)
	}
	if stored.Status != models.GoodsReceiptStatusPendingQC {
		t.Fatalf("rejected check changed status to %s", stored.Status)
	}
	for _, item := range stored.Items {
		if item.QualityStatus != models.QualityStatusPending || !item.AcceptedQuantity.IsZero() {
			t.Fatalf("rejected check saved item %d: %s accepted %s", item.ID, item.QualityStatus, item.AcceptedQuantity)
		}
	}

	if _, err := receiving.PerformQualityCheck(f.ctx, receipt.ID, []QualityCheckResult{
		{GoodsReceiptItemId: screenItem, AcceptedQuantity: dec("9"), RejectedQuantity: dec("1")},
		{GoodsReceiptItemId: batteryItem, RejectedQuantity: dec("4")},
	}); err != nil {
		t.Fatalf("PerformQualityCheck: %v", err)
	}
	if _, err := receiving.ApproveGoodsReceipt(f.ctx, receipt.ID, 0); err != nil {
		t.Fatalf("ApproveGoodsReceipt: %v", err)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("9")) {
		t.Fatalf("warehouse quantity = %s, want 9", got)
	}
}

func TestApprovalRollsBackWhenLedgerWriteFails(t *testing.T) {
	f := newFixture(t)
	order := f.submitOrder(t, "10")
	receipt := f.receive(t, order.ID, "10", "10")
	receiving := NewReceivingWorkflow(f.deps)

	restore := f.failStockMovementsAfter(t, 0)
	_, err := receiving.ApproveGoodsReceipt(f.ctx, receipt.ID, 0)
	if !errors.Is(err, errLedgerWrite) {
		t.Fatalf("expected the ledger failure, got %v", err)
	}
	restore()

	stored, err := models.GetGoodsReceipt(f.ctx, f.db, receipt.ID)
	if err != nil {
		t.Fatalf("GetGoodsReceipt: %v", err)
	}
	if stored.Status != models.GoodsReceiptStatusPendingQC {
		t.Fatalf("receipt status = %s, want Pending QC", stored.Status)
	}
	po, err := models.GetPurchaseOrder(f.ctx, f.db, order.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	if po.Status != models.PurchaseOrderStatusSubmitted || !po.Items[0].ReceivedQuantity.IsZero() {
		t.Fatalf("order after failed approval: %s received %s", po.Status, po.Items[0].ReceivedQuantity)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.IsZero() {
		t.Fatalf("warehouse quantity = %s, want 0", got)
	}

	if _, err := receiving.ApproveGoodsReceipt(f.ctx, receipt.ID, 0); err != nil {
		t.Fatalf("ApproveGoodsReceipt after restore: %v", err)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("10")) {
		t.Fatalf("warehouse quantity = %s, want 10", got)
	}
}
