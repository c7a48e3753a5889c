package models

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft             PurchaseOrderStatus = "Draft"
	PurchaseOrderStatusSubmitted         PurchaseOrderStatus = "Submitted"
	PurchaseOrderStatusConfirmed         PurchaseOrderStatus = "Confirmed"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "Partially Received"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "Received"
	PurchaseOrderStatusCompleted         PurchaseOrderStatus = "Completed"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "Cancelled"
)

type GoodsReceiptStatus string

const (
	GoodsReceiptStatusPendingQC  GoodsReceiptStatus = "Pending QC"
	GoodsReceiptStatusInspecting GoodsReceiptStatus = "Inspecting"
	GoodsReceiptStatusCompleted  GoodsReceiptStatus = "Completed"
)

type QualityStatus string

const (
	QualityStatusPending QualityStatus = "Pending"
	QualityStatusPassed  QualityStatus = "Passed"
	QualityStatusPartial QualityStatus = "Partial"
	QualityStatusFailed  QualityStatus = "Failed"
)

type ReturnStatus string

const (
	ReturnStatusReceived        ReturnStatus = "Received"
	ReturnStatusInspecting      ReturnStatus = "Inspecting"
	ReturnStatusPendingApproval ReturnStatus = "Pending Approval"
	ReturnStatusApproved        ReturnStatus = "Approved"
	ReturnStatusRejected        ReturnStatus = "Rejected"
	ReturnStatusCompleted       ReturnStatus = "Completed"
	ReturnStatusCancelled       ReturnStatus = "Cancelled"
)

type ReturnSourceType string

const (
	ReturnSourceSale          ReturnSourceType = "SALE"
	ReturnSourceWarrantyClaim ReturnSourceType = "WARRANTY_CLAIM"
	ReturnSourceJobSheet      ReturnSourceType = "JOB_SHEET"
)

func (t ReturnSourceType) IsValid() bool {
	switch t {
	case ReturnSourceSale, ReturnSourceWarrantyClaim, ReturnSourceJobSheet:
		return true
	}
	return false
}

type ReturnResolutionType string

const (
	ReturnResolutionRefund      ReturnResolutionType = "REFUND_PROCESSED"
	ReturnResolutionRestocked   ReturnResolutionType = "RESTOCKED"
	ReturnResolutionTransferred ReturnResolutionType = "TRANSFERRED"
	ReturnResolutionScrapped    ReturnResolutionType = "SCRAPPED"
)

func (t ReturnResolutionType) IsValid() bool {
	switch t {
	case ReturnResolutionRefund, ReturnResolutionRestocked, ReturnResolutionTransferred, ReturnResolutionScrapped:
		return true
	}
	return false
}

type InspectionAction string

const (
	InspectionActionApprove InspectionAction = "APPROVE"
	InspectionActionReject  InspectionAction = "REJECT"
	InspectionActionHold    InspectionAction = "HOLD"
)

type RefundMethod string

const (
	RefundMethodCash         RefundMethod = "CASH"
	RefundMethodCard         RefundMethod = "CARD"
	RefundMethodBankTransfer RefundMethod = "BANK_TRANSFER"
	RefundMethodStoreCredit  RefundMethod = "STORE_CREDIT"
)

func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodCash, RefundMethodCard, RefundMethodBankTransfer, RefundMethodStoreCredit:
		return true
	}
	return false
}

type SaleStatus string

const (
	SaleStatusCompleted     SaleStatus = "Completed"
	SaleStatusPartialRefund SaleStatus = "Partial Refund"
	SaleStatusRefunded      SaleStatus = "Refunded"
	SaleStatusCancelled     SaleStatus = "Cancelled"
)

type StockMovementType string

const (
	MovementTypePurchase           StockMovementType = "PURCHASE"
	MovementTypeSale               StockMovementType = "SALE"
	MovementTypeReturnFromCustomer StockMovementType = "RETURN_FROM_CUSTOMER"
	MovementTypeReturnToSupplier   StockMovementType = "RETURN_TO_SUPPLIER"
	MovementTypeTransferIn         StockMovementType = "TRANSFER_IN"
	MovementTypeTransferOut        StockMovementType = "TRANSFER_OUT"
	MovementTypeAdjustment         StockMovementType = "ADJUSTMENT"
	MovementTypeUsage              StockMovementType = "USAGE"
	MovementTypeScrap              StockMovementType = "SCRAP"
	MovementTypeReservation        StockMovementType = "RESERVATION"
	MovementTypeRelease            StockMovementType = "RELEASE"
)

// Direction is +1 for inbound, -1 for outbound and 0 when either sign is allowed.
func (t StockMovementType) Direction() int {
	switch t {
	case MovementTypePurchase, MovementTypeReturnFromCustomer, MovementTypeTransferIn, MovementTypeReservation:
		return 1
	case MovementTypeSale, MovementTypeReturnToSupplier, MovementTypeTransferOut, MovementTypeUsage, MovementTypeScrap, MovementTypeRelease:
		return -1
	case MovementTypeAdjustment:
		return 0
	}
	return 0
}

// IsReservation is true for movements against the reserved column.
func (t StockMovementType) IsReservation() bool {
	return t == MovementTypeReservation || t == MovementTypeRelease
}

func (t StockMovementType) IsValid() bool {
	switch t {
	case MovementTypePurchase, MovementTypeSale, MovementTypeReturnFromCustomer, MovementTypeReturnToSupplier,
		MovementTypeTransferIn, MovementTypeTransferOut, MovementTypeAdjustment, MovementTypeUsage,
		MovementTypeScrap, MovementTypeReservation, MovementTypeRelease:
		return true
	}
	return false
}

type MovementReferenceType string

const (
	MovementReferenceGoodsReceipt  MovementReferenceType = "GoodsReceipt"
	MovementReferenceProductReturn MovementReferenceType = "ProductReturn"
	MovementReferenceManual        MovementReferenceType = "Manual"
	MovementReferenceJobSheet      MovementReferenceType = "JobSheet"
)

type EntityKind string

const (
	EntityKindPurchaseOrder EntityKind = "PurchaseOrder"
	EntityKindGoodsReceipt  EntityKind = "GoodsReceipt"
	EntityKindProductReturn EntityKind = "ProductReturn"
	EntityKindSale          EntityKind = "Sale"
)

type NotificationEventKind string

const (
	NotificationGoodsReceiptCreated  NotificationEventKind = "goods_receipt.created"
	NotificationGoodsReceiptApproved NotificationEventKind = "goods_receipt.approved"
	NotificationReturnCreated        NotificationEventKind = "product_return.created"
	NotificationReturnApproved       NotificationEventKind = "product_return.approved"
	NotificationReturnRejected       NotificationEventKind = "product_return.rejected"
	NotificationReturnCompleted      NotificationEventKind = "product_return.completed"
	NotificationReturnCancelled      NotificationEventKind = "product_return.cancelled"
)

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "PENDING"
	NotificationStatusProcessing NotificationStatus = "PROCESSING"
	NotificationStatusSent       NotificationStatus = "SENT"
	NotificationStatusFailed     NotificationStatus = "FAILED"
)
