package workflow

import (
	"context"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int) (*models.Product, error)
}

type LocationDirectory interface {
	GetLocation(ctx context.Context, id int) (*models.Location, error)
	GetMainWarehouse(ctx context.Context) (*models.Location, error)
}

type SupplierDirectory interface {
	GetSupplier(ctx context.Context, id int) (*models.Supplier, error)
}

type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id int) (*models.Customer, error)
}

type SaleDirectory interface {
	GetSale(ctx context.Context, id int) (*models.Sale, error)
}

type ReturnSourceDirectory interface {
	SourceExists(ctx context.Context, sourceType models.ReturnSourceType, sourceId int) (bool, error)
}

// NotificationDispatcher is fire-and-forget: failures are the dispatcher's
// problem and never reach the caller.
type NotificationDispatcher interface {
	Notify(ctx context.Context, kind models.NotificationEventKind, entityIds []int, data map[string]interface{})
}

// AuthContext supplies the acting user for audit fields.
type AuthContext interface {
	ActingUserId(ctx context.Context) int
}

type EntityLocker interface {
	Obtain(ctx context.Context, keys ...string) (func(), error)
}

// GormDirectory serves every lookup interface from the database.
type GormDirectory struct {
	DB *gorm.DB
}

func (d GormDirectory) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	return models.GetProduct(ctx, d.DB, id)
}

func (d GormDirectory) GetLocation(ctx context.Context, id int) (*models.Location, error) {
	return models.GetLocation(ctx, d.DB, id)
}

func (d GormDirectory) GetMainWarehouse(ctx context.Context) (*models.Location, error) {
	return models.GetMainWarehouse(ctx, d.DB)
}

func (d GormDirectory) GetSupplier(ctx context.Context, id int) (*models.Supplier, error) {
	return models.GetSupplier(ctx, d.DB, id)
}

func (d GormDirectory) GetCustomer(ctx context.Context, id int) (*models.Customer, error) {
	return models.GetCustomer(ctx, d.DB, id)
}

func (d GormDirectory) GetSale(ctx context.Context, id int) (*models.Sale, error) {
	return models.GetSale(ctx, d.DB, id)
}

func (d GormDirectory) SourceExists(ctx context.Context, sourceType models.ReturnSourceType, sourceId int) (bool, error) {
	return models.ReturnSourceExists(ctx, d.DB, sourceType, sourceId)
}

// ContextAuth reads the user id the auth middleware put on the context; 0 when anonymous.
type ContextAuth struct{}

func (ContextAuth) ActingUserId(ctx context.Context) int {
	userId, _ := utils.GetUserIdFromContext(ctx)
	return userId
}

// Dependencies is the set of handles every workflow is built from.
type Dependencies struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	Locker    EntityLocker
	Products  ProductCatalog
	Locations LocationDirectory
	Suppliers SupplierDirectory
	Customers CustomerDirectory
	Sales     SaleDirectory
	Sources   ReturnSourceDirectory
	Notifier  NotificationDispatcher
	Auth      AuthContext
}

// NewDependencies wires the database-backed defaults.
func NewDependencies(db *gorm.DB, logger *logrus.Logger) Dependencies {
	if logger == nil {
		logger = config.GetLogger()
	}
	directory := GormDirectory{DB: db}
	return Dependencies{
		DB:        db,
		Logger:    logger,
		Locker:    utils.NewRedisEntityLocker(),
		Products:  directory,
		Locations: directory,
		Suppliers: directory,
		Customers: directory,
		Sales:     directory,
		Sources:   directory,
		Notifier:  &OutboxNotifier{DB: db, Logger: logger},
		Auth:      ContextAuth{},
	}
}

func (d Dependencies) coordinator() *TransactionCoordinator {
	return &TransactionCoordinator{DB: d.DB, Logger: d.Logger, Locker: d.Locker}
}
