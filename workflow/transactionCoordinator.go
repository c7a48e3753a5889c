package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/metrics"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mmdatafocus/shop_backend/workflow")

const maxTransactionAttempts = 3

// TransactionCoordinator runs one workflow step as a single database
// transaction. Everything written through tx commits together or not at all.
type TransactionCoordinator struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Locker EntityLocker
}

func entityLockKey(kind models.EntityKind, id int) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// Run takes the optional entity locks, then executes fn in a transaction.
// MySQL deadlocks and lock wait timeouts are retried from the start.
func (c *TransactionCoordinator) Run(ctx context.Context, operation string, lockKeys []string, fn func(tx *gorm.DB) error) error {
	started := time.Now()
	ctx, span := tracer.Start(ctx, operation, trace.WithAttributes(attribute.StringSlice("entity.locks", lockKeys)))
	defer span.End()

	err := c.run(ctx, lockKeys, fn)
	metrics.ObserveWorkflow(operation, started, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logFailure(operation, lockKeys, err)
	}
	return err
}

func (c *TransactionCoordinator) run(ctx context.Context, lockKeys []string, fn func(tx *gorm.DB) error) error {
	if c.Locker != nil && len(lockKeys) > 0 {
		release, err := c.Locker.Obtain(ctx, lockKeys...)
		if err != nil {
			if errors.Is(err, utils.ErrorLockNotObtained) {
				return models.NewConflictError("%v", err)
			}
			return err
		}
		defer release()
	}

	var err error
	for attempt := 1; attempt <= maxTransactionAttempts; attempt++ {
		err = c.DB.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		if c.Logger != nil {
			c.Logger.WithFields(logrus.Fields{
				"field":   "TransactionCoordinator",
				"attempt": attempt,
			}).Warn("retrying transaction: " + err.Error())
		}
		time.Sleep(time.Duration(attempt*50) * time.Millisecond)
	}
	return err
}

// isRetryableTxError matches MySQL deadlock (1213) and lock wait timeout
// (1205), and Postgres deadlock_detected (40P01) and serialization_failure (40001).
func isRetryableTxError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}

// IsDomainError reports whether err is one of the typed business errors
// (as opposed to an infrastructure failure).
func IsDomainError(err error) bool {
	var (
		validationErr   *models.ValidationError
		notFoundErr     *models.NotFoundError
		invalidStateErr *models.InvalidStateError
		conflictErr     *models.ConflictError
		overReceiptErr  *models.OverReceiptError
		overRefundErr   *models.OverRefundError
		stockErr        *models.InsufficientStockError
	)
	return errors.As(err, &validationErr) || errors.As(err, &notFoundErr) ||
		errors.As(err, &invalidStateErr) || errors.As(err, &conflictErr) ||
		errors.As(err, &overReceiptErr) || errors.As(err, &overRefundErr) ||
		errors.As(err, &stockErr)
}

func (c *TransactionCoordinator) logFailure(operation string, lockKeys []string, err error) {
	if c.Logger == nil {
		return
	}
	if IsDomainError(err) {
		c.Logger.WithFields(logrus.Fields{
			"field":     "TransactionCoordinator",
			"operation": operation,
			"entities":  lockKeys,
		}).Info("rejected: " + err.Error())
		return
	}
	config.LogError(c.Logger, "workflow", operation, "transaction rolled back", lockKeys, err)
}

// recordMovements counts committed movements; call only after Run succeeded.
func recordMovements(movements []*models.StockMovement) {
	for _, m := range movements {
		metrics.CountMovement(string(m.MovementType))
	}
}
