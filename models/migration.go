package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Product{}, &Location{}, &Supplier{}, &Customer{}, &WarrantyClaim{}, &JobSheet{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&GoodsReceipt{}, &GoodsReceiptItem{},
		&Sale{}, &SaleRefund{},
		&ProductReturn{},
		&InventoryRecord{}, &StockMovement{},
		&TransactionNumberSeries{},
		&NotificationRecord{},
		&ReconciliationReport{},
	)
}
