package workflow

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	ctx       context.Context
	db        *gorm.DB
	deps      Dependencies
	warehouse *models.Location
	shop      *models.Location
	supplier  *models.Supplier
	customer  *models.Customer
	product   *models.Product
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// newFixture builds a migrated in-memory database with one main warehouse,
// one shop floor, a supplier, a customer and a product costing 40.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	config.SetRedisClient(nil)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection: every transaction is serialized like row locks would
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	ctx := utils.SetUserIdInContext(context.Background(), 7)
	ctx = utils.SetCorrelationIdInContext(ctx, "test-correlation")

	f := &fixture{ctx: ctx, db: db, deps: NewDependencies(db, log)}
	if f.warehouse, err = models.CreateLocation(ctx, db, &models.NewLocation{Code: "WH", Name: "Main Warehouse", IsMainWarehouse: true}); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if f.shop, err = models.CreateLocation(ctx, db, &models.NewLocation{Code: "SHOP", Name: "Shop Floor"}); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if f.supplier, err = models.CreateSupplier(ctx, db, &models.NewSupplier{Name: "Acme Parts"}); err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	if f.customer, err = models.CreateCustomer(ctx, db, &models.NewCustomer{Name: "Jane"}); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if f.product, err = models.CreateProduct(ctx, db, &models.NewProduct{Sku: "SCR-001", Name: "Screen", UnitCost: dec("40")}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return f
}

func (f *fixture) submitOrder(t *testing.T, ordered string) *models.PurchaseOrder {
	t.Helper()
	order, err := NewPurchaseOrderWorkflow(f.deps).SubmitPurchaseOrder(f.ctx, &models.NewPurchaseOrder{
		SupplierId: f.supplier.ID,
		Items:      []models.NewPurchaseOrderItem{{ProductId: f.product.ID, Quantity: dec(ordered), UnitPrice: dec("5")}},
	})
	if err != nil {
		t.Fatalf("SubmitPurchaseOrder: %v", err)
	}
	return order
}

func (f *fixture) receive(t *testing.T, orderId int, received string, accepted string) *models.GoodsReceipt {
	t.Helper()
	receipt, err := NewReceivingWorkflow(f.deps).CreateGoodsReceipt(f.ctx, &NewGoodsReceipt{
		PurchaseOrderId: orderId,
		Items: []NewGoodsReceiptItem{{
			ProductId:        f.product.ID,
			ReceivedQuantity: dec(received),
			AcceptedQuantity: dec(accepted),
		}},
	})
	if err != nil {
		t.Fatalf("CreateGoodsReceipt: %v", err)
	}
	return receipt
}

func (f *fixture) quantityAt(t *testing.T, locationId int) decimal.Decimal {
	t.Helper()
	record, err := models.GetInventoryRecord(f.db, f.product.ID, locationId)
	if err != nil {
		t.Fatalf("GetInventoryRecord: %v", err)
	}
	return record.Quantity
}

func (f *fixture) orderStatus(t *testing.T, orderId int) models.PurchaseOrderStatus {
	t.Helper()
	order, err := models.GetPurchaseOrder(f.ctx, f.db, orderId)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	return order.Status
}

var errLedgerWrite = errors.New("ledger write failed")

// failStockMovementsAfter lets the next `allowed` stock movement inserts
// through and fails every one after that until the returned func is called.
func (f *fixture) failStockMovementsAfter(t *testing.T, allowed int) (restore func()) {
	t.Helper()
	armed := true
	seen := 0
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_stock_movements", func(db *gorm.DB) {
		if !armed || db.Statement.Schema == nil || db.Statement.Schema.Table != "stock_movements" {
			return
		}
		seen++
		if seen > allowed {
			_ = db.AddError(errLedgerWrite)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return func() { armed = false }
}
