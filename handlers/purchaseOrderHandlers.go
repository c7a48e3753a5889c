package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/shopspring/decimal"
)

func (h *Handler) submitPurchaseOrder(c *gin.Context) {
	var input models.NewPurchaseOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := h.PurchaseOrders.SubmitPurchaseOrder(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "submitPurchaseOrder", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getPurchaseOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := models.GetPurchaseOrder(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "getPurchaseOrder", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listGoodsReceiptsForOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	receipts, err := models.ListGoodsReceiptsForOrder(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "listGoodsReceiptsForOrder", err)
		return
	}
	c.JSON(http.StatusOK, receipts)
}

func (h *Handler) confirmPurchaseOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := h.PurchaseOrders.ConfirmPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "confirmPurchaseOrder", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelPurchaseOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := h.PurchaseOrders.CancelPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "cancelPurchaseOrder", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) closePurchaseOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	order, err := h.PurchaseOrders.ClosePurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "closePurchaseOrder", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) recordPurchaseOrderPayment(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.PurchaseOrders.RecordPayment(c.Request.Context(), id, req.Amount)
	if err != nil {
		h.respondError(c, "recordPurchaseOrderPayment", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deletePurchaseOrder(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	if err := h.PurchaseOrders.DeletePurchaseOrder(c.Request.Context(), id); err != nil {
		h.respondError(c, "deletePurchaseOrder", err)
		return
	}
	c.Status(http.StatusNoContent)
}
