// seed-dev fills an empty development database with a main warehouse, a shop
// floor location, one supplier, one customer, two products, a sale, a
// warranty claim and a job sheet, then prints a bearer token for user 1.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/shopspring/decimal"
)

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fail("migrate", err)
	}

	var existing int64
	if err := db.Model(&models.Location{}).Count(&existing).Error; err != nil {
		fail("count locations", err)
	}
	if existing > 0 {
		fmt.Fprintln(os.Stderr, "database already has locations; seed-dev only runs against an empty database")
		os.Exit(2)
	}

	warehouse, err := models.CreateLocation(ctx, db, &models.NewLocation{Code: "WH", Name: "Main Warehouse", IsMainWarehouse: true})
	if err != nil {
		fail("warehouse", err)
	}
	store, err := models.CreateLocation(ctx, db, &models.NewLocation{Code: "SHOP", Name: "Shop Floor"})
	if err != nil {
		fail("shop floor", err)
	}
	supplier, err := models.CreateSupplier(ctx, db, &models.NewSupplier{Name: "Acme Parts"})
	if err != nil {
		fail("supplier", err)
	}
	customer, err := models.CreateCustomer(ctx, db, &models.NewCustomer{Name: "Walk-in Customer"})
	if err != nil {
		fail("customer", err)
	}
	screen, err := models.CreateProduct(ctx, db, &models.NewProduct{Sku: "SCR-001", Name: "Phone Screen", UnitCost: decimal.NewFromInt(40)})
	if err != nil {
		fail("product", err)
	}
	battery, err := models.CreateProduct(ctx, db, &models.NewProduct{Sku: "BAT-001", Name: "Phone Battery", UnitCost: decimal.NewFromInt(15)})
	if err != nil {
		fail("product", err)
	}
	sale, err := models.CreateSale(ctx, db, &models.NewSale{
		SaleNumber:  "SALE-DEV-0001",
		CustomerId:  customer.ID,
		LocationId:  store.ID,
		TotalAmount: decimal.NewFromInt(120),
	})
	if err != nil {
		fail("sale", err)
	}
	claim, err := models.CreateWarrantyClaim(ctx, db, "WC-DEV-0001", customer.ID, screen.ID)
	if err != nil {
		fail("warranty claim", err)
	}
	job, err := models.CreateJobSheet(ctx, db, "JOB-DEV-0001", customer.ID)
	if err != nil {
		fail("job sheet", err)
	}

	token, err := utils.JwtGenerate(1, "admin", warehouse.ID)
	if err != nil {
		fail("token", err)
	}

	fmt.Printf("main warehouse: %d\nshop floor: %d\nsupplier: %d\ncustomer: %d\n", warehouse.ID, store.ID, supplier.ID, customer.ID)
	fmt.Printf("products: %d (%s), %d (%s)\n", screen.ID, screen.Sku, battery.ID, battery.Sku)
	fmt.Printf("sale: %d\nwarranty claim: %d\njob sheet: %d\n", sale.ID, claim.ID, job.ID)
	fmt.Printf("token: %s\n", token)
}
