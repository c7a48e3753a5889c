package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Handler struct {
	DB             *gorm.DB
	Logger         *logrus.Logger
	Receiving      *workflow.ReceivingWorkflow
	Returns        *workflow.ReturnWorkflow
	PurchaseOrders *workflow.PurchaseOrderWorkflow
	Inventory      *workflow.InventoryWorkflow
}

func NewHandler(deps workflow.Dependencies) *Handler {
	return &Handler{
		DB:             deps.DB,
		Logger:         deps.Logger,
		Receiving:      workflow.NewReceivingWorkflow(deps),
		Returns:        workflow.NewReturnWorkflow(deps),
		PurchaseOrders: workflow.NewPurchaseOrderWorkflow(deps),
		Inventory:      workflow.NewInventoryWorkflow(deps),
	}
}

// RegisterRoutes mounts the API on r. The caller decides which middlewares
// run in front of it.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	po := r.Group("/purchase-orders")
	po.POST("", h.submitPurchaseOrder)
	po.GET("/:id", h.getPurchaseOrder)
	po.GET("/:id/goods-receipts", h.listGoodsReceiptsForOrder)
	po.POST("/:id/confirm", h.confirmPurchaseOrder)
	po.POST("/:id/cancel", h.cancelPurchaseOrder)
	po.POST("/:id/close", h.closePurchaseOrder)
	po.POST("/:id/payments", h.recordPurchaseOrderPayment)
	po.DELETE("/:id", h.deletePurchaseOrder)

	grn := r.Group("/goods-receipts")
	grn.POST("", h.createGoodsReceipt)
	grn.GET("/:id", h.getGoodsReceipt)
	grn.POST("/:id/quality-check", h.performQualityCheck)
	grn.POST("/:id/approve", h.approveGoodsReceipt)
	grn.GET("/:id/movements", h.listGoodsReceiptMovements)
	grn.DELETE("/:id", h.deleteGoodsReceipt)

	ret := r.Group("/returns")
	ret.POST("", h.createReturn)
	ret.GET("", h.listReturns)
	ret.GET("/:id", h.getReturn)
	ret.POST("/:id/inspect", h.inspectReturn)
	ret.POST("/:id/approve", h.approveReturn)
	ret.POST("/:id/reject", h.rejectReturn)
	ret.POST("/:id/process", h.processReturn)
	ret.POST("/:id/cancel", h.cancelReturn)
	ret.GET("/:id/movements", h.listReturnMovements)

	r.GET("/sales/:id/refunds", h.listSaleRefunds)

	inv := r.Group("/inventory")
	inv.GET("/records", h.listInventoryRecords)
	inv.GET("/records/:productId/:locationId", h.getInventoryRecord)
	inv.GET("/movements", h.listStockMovements)
	inv.POST("/movements", h.recordMovement)
	inv.POST("/transfers", h.transferStock)
}

// RegisterInternalRoutes mounts the ops endpoints under /internal.
func (h *Handler) RegisterInternalRoutes(r gin.IRouter) {
	internal := r.Group("/internal")
	internal.GET("/notifications", h.listNotifications)
	internal.GET("/notifications/:id", h.getNotification)
	internal.POST("/notifications/:id/replay", h.replayNotification)
	internal.GET("/reconciliation-reports", h.listReconciliationReports)
}

// statusFor maps a workflow error onto an HTTP status.
func statusFor(err error) int {
	var (
		validationErr   *models.ValidationError
		notFoundErr     *models.NotFoundError
		invalidStateErr *models.InvalidStateError
		conflictErr     *models.ConflictError
		overReceiptErr  *models.OverReceiptError
		overRefundErr   *models.OverRefundError
		stockErr        *models.InsufficientStockError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr), errors.As(err, &invalidStateErr):
		return http.StatusConflict
	case errors.As(err, &overReceiptErr), errors.As(err, &overRefundErr), errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, funcName string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		if h.Logger != nil {
			config.LogError(h.Logger, "handlers", funcName, c.Request.URL.Path, nil, err)
		}
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return false
	}
	return true
}
