package models

// statusTransitions is the allowed-successor table per entity kind. Any pair
// missing here is rejected; self-transitions are allowed only where listed.
var statusTransitions = map[EntityKind]map[string][]string{
	EntityKindPurchaseOrder: {
		string(PurchaseOrderStatusDraft): {
			string(PurchaseOrderStatusSubmitted), string(PurchaseOrderStatusCancelled),
		},
		string(PurchaseOrderStatusSubmitted): {
			string(PurchaseOrderStatusConfirmed), string(PurchaseOrderStatusPartiallyReceived),
			string(PurchaseOrderStatusReceived), string(PurchaseOrderStatusCancelled),
		},
		string(PurchaseOrderStatusConfirmed): {
			string(PurchaseOrderStatusPartiallyReceived), string(PurchaseOrderStatusReceived),
			string(PurchaseOrderStatusCancelled),
		},
		string(PurchaseOrderStatusPartiallyReceived): {
			string(PurchaseOrderStatusPartiallyReceived), string(PurchaseOrderStatusReceived),
		},
		string(PurchaseOrderStatusReceived):  {string(PurchaseOrderStatusCompleted)},
		string(PurchaseOrderStatusCompleted): {},
		string(PurchaseOrderStatusCancelled): {},
	},
	EntityKindGoodsReceipt: {
		string(GoodsReceiptStatusPendingQC): {
			string(GoodsReceiptStatusInspecting), string(GoodsReceiptStatusCompleted),
		},
		string(GoodsReceiptStatusInspecting): {string(GoodsReceiptStatusCompleted)},
		string(GoodsReceiptStatusCompleted):  {},
	},
	EntityKindProductReturn: {
		string(ReturnStatusReceived): {
			string(ReturnStatusInspecting), string(ReturnStatusPendingApproval),
			string(ReturnStatusRejected), string(ReturnStatusCancelled),
		},
		string(ReturnStatusInspecting): {
			string(ReturnStatusInspecting), string(ReturnStatusPendingApproval), string(ReturnStatusApproved),
			string(ReturnStatusRejected), string(ReturnStatusCancelled),
		},
		string(ReturnStatusPendingApproval): {
			string(ReturnStatusApproved), string(ReturnStatusRejected), string(ReturnStatusCancelled),
		},
		string(ReturnStatusApproved): {
			string(ReturnStatusCompleted), string(ReturnStatusRejected), string(ReturnStatusCancelled),
		},
		string(ReturnStatusRejected):  {},
		string(ReturnStatusCompleted): {},
		string(ReturnStatusCancelled): {},
	},
	EntityKindSale: {
		string(SaleStatusCompleted): {
			string(SaleStatusPartialRefund), string(SaleStatusRefunded), string(SaleStatusCancelled),
		},
		string(SaleStatusPartialRefund): {
			string(SaleStatusPartialRefund), string(SaleStatusRefunded),
		},
		string(SaleStatusRefunded):  {},
		string(SaleStatusCancelled): {},
	},
}

// CanTransition reports whether `from -> to` is an allowed edge for kind.
// Unknown kinds and unknown statuses are never allowed.
func CanTransition(kind EntityKind, from string, to string) bool {
	table, ok := statusTransitions[kind]
	if !ok {
		return false
	}
	successors, ok := table[from]
	if !ok {
		return false
	}
	for _, s := range successors {
		if s == to {
			return true
		}
	}
	return false
}

// RequireTransition is CanTransition returning an *InvalidStateError.
func RequireTransition(kind EntityKind, id int, from string, to string) error {
	if CanTransition(kind, from, to) {
		return nil
	}
	return &InvalidStateError{Entity: kind, Id: id, From: from, To: to}
}

// IsTerminal reports whether status has no successors for kind.
func IsTerminal(kind EntityKind, status string) bool {
	table, ok := statusTransitions[kind]
	if !ok {
		return false
	}
	successors, ok := table[status]
	return ok && len(successors) == 0
}
