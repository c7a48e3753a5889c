package workflow

import (
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/shop_backend/models"
)

func (f *fixture) sale(t *testing.T, total string) *models.Sale {
	t.Helper()
	var count int64
	f.db.Model(&models.Sale{}).Count(&count)
	sale, err := models.CreateSale(f.ctx, f.db, &models.NewSale{
		SaleNumber:  "SALE-" + string(rune('A'+count)),
		CustomerId:  f.customer.ID,
		LocationId:  f.shop.ID,
		TotalAmount: dec(total),
	})
	if err != nil {
		t.Fatalf("CreateSale: %v", err)
	}
	return sale
}

// approvedReturn creates a return at the shop, inspects it and approves it
// with the given resolution.
func (f *fixture) approvedReturn(t *testing.T, sourceType models.ReturnSourceType, sourceId int, resolution models.ReturnResolutionType, refund string) *models.ProductReturn {
	t.Helper()
	returns := NewReturnWorkflow(f.deps)
	ret, err := returns.CreateReturn(f.ctx, &NewProductReturn{
		SourceType: sourceType,
		SourceId:   sourceId,
		ProductId:  f.product.ID,
		LocationId: f.shop.ID,
		Quantity:   dec("1"),
		Reason:     "cracked screen",
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	if _, err := returns.InspectReturn(f.ctx, ret.ID, InspectReturnInput{Condition: "DAMAGED", RecommendedAction: models.InspectionActionApprove}); err != nil {
		t.Fatalf("InspectReturn: %v", err)
	}
	input := ApproveReturnInput{ResolutionType: resolution}
	if refund != "" {
		input.RefundAmount = dec(refund)
	}
	approved, err := returns.ApproveReturn(f.ctx, ret.ID, input)
	if err != nil {
		t.Fatalf("ApproveReturn: %v", err)
	}
	return approved
}

func returnMovements(t *testing.T, f *fixture, returnId int) []models.StockMovement {
	t.Helper()
	movements, err := models.ListMovementsByReference(f.db, models.MovementReferenceProductReturn, returnId)
	if err != nil {
		t.Fatalf("ListMovementsByReference: %v", err)
	}
	return movements
}

func TestRefundIsBoundedBySaleTotal(t *testing.T) {
	f := newFixture(t)
	sale := f.sale(t, "100")
	returns := NewReturnWorkflow(f.deps)

	first := f.approvedReturn(t, models.ReturnSourceSale, sale.ID, models.ReturnResolutionRefund, "60")
	if first.CustomerId != f.customer.ID {
		t.Fatalf("customer should default from the sale, got %d", first.CustomerId)
	}
	processed, err := returns.ProcessReturn(f.ctx, first.ID, ProcessReturnInput{RefundMethod: models.RefundMethodCash})
	if err != nil {
		t.Fatalf("ProcessReturn: %v", err)
	}
	if processed.Status != models.ReturnStatusCompleted || !processed.RefundAmount.Equal(dec("60")) {
		t.Fatalf("processed status %s refund %s", processed.Status, processed.RefundAmount)
	}
	refunds, _ := models.ListSaleRefunds(f.ctx, f.db, sale.ID)
	if len(refunds) != 1 || !refunds[0].Amount.Equal(dec("60")) {
		t.Fatalf("refunds = %+v", refunds)
	}
	stored, _ := models.GetSale(f.ctx, f.db, sale.ID)
	if stored.Status != models.SaleStatusPartialRefund {
		t.Fatalf("sale status = %s, want Partial Refund", stored.Status)
	}
	if got := f.quantityAt(t, f.shop.ID); !got.Equal(dec("1")) {
		t.Fatalf("shop quantity = %s, want 1", got)
	}
	movements := returnMovements(t, f, first.ID)
	if len(movements) != 1 || movements[0].MovementType != models.MovementTypeReturnFromCustomer || !movements[0].UnitCost.Equal(dec("40")) {
		t.Fatalf("return movements = %+v", movements)
	}

	second := f.approvedReturn(t, models.ReturnSourceSale, sale.ID, models.ReturnResolutionRefund, "50")
	_, err = returns.ProcessReturn(f.ctx, second.ID, ProcessReturnInput{RefundMethod: models.RefundMethodCard})
	var overRefund *models.OverRefundError
	if !errors.As(err, &overRefund) {
		t.Fatalf("expected OverRefundError, got %v", err)
	}
	if !overRefund.Remaining().Equal(dec("40")) {
		t.Fatalf("remaining refundable = %s, want 40", overRefund.Remaining())
	}
	if len(returnMovements(t, f, second.ID)) != 0 {
		t.Fatalf("rejected refund left stock movements behind")
	}
	unchanged, _ := models.GetProductReturn(f.ctx, f.db, second.ID)
	if unchanged.Status != models.ReturnStatusApproved {
		t.Fatalf("return status = %s, want Approved", unchanged.Status)
	}

	// the remaining 40 settles the sale
	if _, err := returns.ProcessReturn(f.ctx, second.ID, ProcessReturnInput{RefundAmount: dec("40"), RefundMethod: models.RefundMethodCard}); err != nil {
		t.Fatalf("ProcessReturn: %v", err)
	}
	stored, _ = models.GetSale(f.ctx, f.db, sale.ID)
	if stored.Status != models.SaleStatusRefunded {
		t.Fatalf("sale status = %s, want Refunded", stored.Status)
	}

	_, err = returns.ProcessReturn(f.ctx, second.ID, ProcessReturnInput{RefundMethod: models.RefundMethodCard})
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("processing twice: expected ConflictError, got %v", err)
	}
}

func TestConcurrentRefundsNeverExceedTotal(t *testing.T) {
	f := newFixture(t)
	sale := f.sale(t, "100")
	a := f.approvedReturn(t, models.ReturnSourceSale, sale.ID, models.ReturnResolutionRefund, "70")
	b := f.approvedReturn(t, models.ReturnSourceSale, sale.ID, models.ReturnResolutionRefund, "70")
	returns := NewReturnWorkflow(f.deps)

	ids := []int{a.ID, b.ID}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			_, errs[i] = returns.ProcessReturn(f.ctx, id, ProcessReturnInput{RefundMethod: models.RefundMethodCash})
		}(i, id)
	}
	wg.Wait()

	succeeded, overRefunds := 0, 0
	for _, err := range errs {
		var overRefund *models.OverRefundError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &overRefund):
			overRefunds++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || overRefunds != 1 {
		t.Fatalf("succeeded=%d overRefunds=%d, want 1/1", succeeded, overRefunds)
	}
	refunds, _ := models.ListSaleRefunds(f.ctx, f.db, sale.ID)
	if len(refunds) != 1 || !refunds[0].Amount.Equal(dec("70")) {
		t.Fatalf("refunds = %+v", refunds)
	}
}

func TestCancelAfterApprovalMovesNoStock(t *testing.T) {
	f := newFixture(t)
	job, err := models.CreateJobSheet(f.ctx, f.db, "JOB-1", f.customer.ID)
	if err != nil {
		t.Fatalf("CreateJobSheet: %v", err)
	}
	ret := f.approvedReturn(t, models.ReturnSourceJobSheet, job.ID, models.ReturnResolutionRestocked, "")
	returns := NewReturnWorkflow(f.deps)

	cancelled, err := returns.CancelReturn(f.ctx, ret.ID, "customer kept the part")
	if err != nil {
		t.Fatalf("CancelReturn: %v", err)
	}
	if cancelled.Status != models.ReturnStatusCancelled || cancelled.CancelledBy == nil {
		t.Fatalf("cancelled return = %+v", cancelled)
	}
	if n := len(returnMovements(t, f, ret.ID)); n != 0 {
		t.Fatalf("cancel wrote %d stock movements", n)
	}

	_, err = returns.ProcessReturn(f.ctx, ret.ID, ProcessReturnInput{})
	var invalid *models.InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("processing a cancelled return: expected InvalidStateError, got %v", err)
	}
	_, err = returns.CancelReturn(f.ctx, ret.ID, "again")
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("cancelling twice: expected ConflictError, got %v", err)
	}
	if n := len(returnMovements(t, f, ret.ID)); n != 0 {
		t.Fatalf("cancelled return has %d stock movements", n)
	}
}

func TestTransferAndScrapResolutions(t *testing.T) {
	f := newFixture(t)
	claim, err := models.CreateWarrantyClaim(f.ctx, f.db, "WC-1", f.customer.ID, f.product.ID)
	if err != nil {
		t.Fatalf("CreateWarrantyClaim: %v", err)
	}
	returns := NewReturnWorkflow(f.deps)

	transfer := f.approvedReturn(t, models.ReturnSourceWarrantyClaim, claim.ID, models.ReturnResolutionTransferred, "")
	_, err = returns.ProcessReturn(f.ctx, transfer.ID, ProcessReturnInput{TransferLocationId: f.shop.ID})
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("transfer to the return location: expected ValidationError, got %v", err)
	}
	if _, err := returns.ProcessReturn(f.ctx, transfer.ID, ProcessReturnInput{TransferLocationId: f.warehouse.ID}); err != nil {
		t.Fatalf("ProcessReturn transfer: %v", err)
	}
	if got := f.quantityAt(t, f.shop.ID); !got.IsZero() {
		t.Fatalf("shop quantity after transfer = %s, want 0", got)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.Equal(dec("1")) {
		t.Fatalf("warehouse quantity after transfer = %s, want 1", got)
	}
	movements := returnMovements(t, f, transfer.ID)
	if len(movements) != 3 || movements[1].MovementType != models.MovementTypeTransferOut || movements[2].MovementType != models.MovementTypeTransferIn {
		t.Fatalf("transfer movements = %+v", movements)
	}

	scrap := f.approvedReturn(t, models.ReturnSourceWarrantyClaim, claim.ID, models.ReturnResolutionScrapped, "")
	if _, err := returns.ProcessReturn(f.ctx, scrap.ID, ProcessReturnInput{}); err != nil {
		t.Fatalf("ProcessReturn scrap: %v", err)
	}
	if got := f.quantityAt(t, f.shop.ID); !got.IsZero() {
		t.Fatalf("shop quantity after scrap = %s, want 0", got)
	}
	movements = returnMovements(t, f, scrap.ID)
	if len(movements) != 2 || movements[1].MovementType != models.MovementTypeScrap {
		t.Fatalf("scrap movements = %+v", movements)
	}
}

func TestReturnValidation(t *testing.T) {
	f := newFixture(t)
	returns := NewReturnWorkflow(f.deps)

	_, err := returns.CreateReturn(f.ctx, &NewProductReturn{
		SourceType: models.ReturnSourceJobSheet, SourceId: 999, ProductId: f.product.ID, Quantity: dec("1"),
	})
	var notFound *models.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("missing source: expected NotFoundError, got %v", err)
	}

	claim, _ := models.CreateWarrantyClaim(f.ctx, f.db, "WC-2", f.customer.ID, f.product.ID)
	ret, err := returns.CreateReturn(f.ctx, &NewProductReturn{
		SourceType: models.ReturnSourceWarrantyClaim, SourceId: claim.ID, ProductId: f.product.ID, Quantity: dec("2"),
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	if ret.LocationId != f.warehouse.ID || ret.Status != models.ReturnStatusReceived {
		t.Fatalf("return location %d status %s", ret.LocationId, ret.Status)
	}

	_, err = returns.ApproveReturn(f.ctx, ret.ID, ApproveReturnInput{ResolutionType: models.ReturnResolutionRestocked})
	var invalid *models.InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("approving before inspection: expected InvalidStateError, got %v", err)
	}
	if _, err := returns.InspectReturn(f.ctx, ret.ID, InspectReturnInput{Condition: "GOOD", RecommendedAction: models.InspectionActionHold}); err != nil {
		t.Fatalf("InspectReturn: %v", err)
	}
	_, err = returns.ApproveReturn(f.ctx, ret.ID, ApproveReturnInput{ResolutionType: models.ReturnResolutionRefund, RefundAmount: dec("10")})
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("refund on a warranty claim: expected ValidationError, got %v", err)
	}
	_, err = returns.ApproveReturn(f.ctx, ret.ID, ApproveReturnInput{ResolutionType: models.ReturnResolutionRestocked, RefundAmount: dec("10")})
	if !errors.As(err, &validation) {
		t.Fatalf("refund amount without refund resolution: expected ValidationError, got %v", err)
	}

	rejected, err := returns.RejectReturn(f.ctx, ret.ID, "not our product")
	if err != nil {
		t.Fatalf("RejectReturn: %v", err)
	}
	if rejected.Status != models.ReturnStatusRejected {
		t.Fatalf("status = %s, want Rejected", rejected.Status)
	}
	_, err = returns.RejectReturn(f.ctx, ret.ID, "again")
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("rejecting twice: expected ConflictError, got %v", err)
	}
	_, err = returns.CancelReturn(f.ctx, ret.ID, "too late")
	if !errors.As(err, &invalid) {
		t.Fatalf("cancelling a rejected return: expected InvalidStateError, got %v", err)
	}
}

func TestTransferReturnRollsBackWhenLedgerWriteFails(t *testing.T) {
	f := newFixture(t)
	claim, err := models.CreateWarrantyClaim(f.ctx, f.db, "WC-9", f.customer.ID, f.product.ID)
	if err != nil {
		t.Fatalf("CreateWarrantyClaim: %v", err)
	}
	approved := f.approvedReturn(t, models.ReturnSourceWarrantyClaim, claim.ID, models.ReturnResolutionTransferred, "")
	returns := NewReturnWorkflow(f.deps)

	// the return and transfer-out rows are written, the transfer-in fails
	restore := f.failStockMovementsAfter(t, 2)
	_, err = returns.ProcessReturn(f.ctx, approved.ID, ProcessReturnInput{TransferLocationId: f.warehouse.ID})
	if !errors.Is(err, errLedgerWrite) {
		t.Fatalf("expected the ledger failure, got %v", err)
	}
	restore()

	stored, err := models.GetProductReturn(f.ctx, f.db, approved.ID)
	if err != nil {
		t.Fatalf("GetProductReturn: %v", err)
	}
	if stored.Status != models.ReturnStatusApproved {
		t.Fatalf("return status = %s, want Approved", stored.Status)
	}
	if movements := returnMovements(t, f, approved.ID); len(movements) != 0 {
		t.Fatalf("expected no movements, got %d", len(movements))
	}
	if got := f.quantityAt(t, f.shop.ID); !got.IsZero() {
		t.Fatalf("shop quantity = %s, want 0", got)
	}
	if got := f.quantityAt(t, f.warehouse.ID); !got.IsZero() {
		t.Fatalf("warehouse quantity = %s, want 0", got)
	}
}

func TestRefundRollsBackWhenLedgerWriteFails(t *testing.T) {
	f := newFixture(t)
	sale := f.sale(t, "100")
	approved := f.approvedReturn(t, models.ReturnSourceSale, sale.ID, models.ReturnResolutionRefund, "30")
	returns := NewReturnWorkflow(f.deps)

	restore := f.failStockMovementsAfter(t, 0)
	_, err := returns.ProcessReturn(f.ctx, approved.ID, ProcessReturnInput{RefundMethod: models.RefundMethodCash})
	if !errors.Is(err, errLedgerWrite) {
		t.Fatalf("expected the ledger failure, got %v", err)
	}
	restore()

	refunds, err := models.ListSaleRefunds(f.ctx, f.db, sale.ID)
	if err != nil {
		t.Fatalf("ListSaleRefunds: %v", err)
	}
	if len(refunds) != 0 {
		t.Fatalf("refund survived the rollback: %+v", refunds)
	}
	storedSale, err := models.GetSale(f.ctx, f.db, sale.ID)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if storedSale.Status != models.SaleStatusCompleted {
		t.Fatalf("sale status = %s, want Completed", storedSale.Status)
	}
	stored, err := models.GetProductReturn(f.ctx, f.db, approved.ID)
	if err != nil {
		t.Fatalf("GetProductReturn: %v", err)
	}
	if stored.Status != models.ReturnStatusApproved {
		t.Fatalf("return status = %s, want Approved", stored.Status)
	}
	if got := f.quantityAt(t, f.shop.ID); !got.IsZero() {
		t.Fatalf("shop quantity = %s, want 0", got)
	}
}
