package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/workflow"
)

func (h *Handler) createGoodsReceipt(c *gin.Context) {
	var input workflow.NewGoodsReceipt
	if !bindJSON(c, &input) {
		return
	}
	receipt, err := h.Receiving.CreateGoodsReceipt(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createGoodsReceipt", err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) getGoodsReceipt(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	receipt, err := models.GetGoodsReceipt(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "getGoodsReceipt", err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

type qualityCheckRequest struct {
	Results []workflow.QualityCheckResult `json:"results"`
}

func (h *Handler) performQualityCheck(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req qualityCheckRequest
	if !bindJSON(c, &req) {
		return
	}
	receipt, err := h.Receiving.PerformQualityCheck(c.Request.Context(), id, req.Results)
	if err != nil {
		h.respondError(c, "performQualityCheck", err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

type approveReceiptRequest struct {
	LocationId int `json:"location_id"`
}

func (h *Handler) approveGoodsReceipt(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req approveReceiptRequest
	// an empty body approves into the receipt's destination
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	receipt, err := h.Receiving.ApproveGoodsReceipt(c.Request.Context(), id, req.LocationId)
	if err != nil {
		h.respondError(c, "approveGoodsReceipt", err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) deleteGoodsReceipt(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	if err := h.Receiving.DeleteGoodsReceipt(c.Request.Context(), id); err != nil {
		h.respondError(c, "deleteGoodsReceipt", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listGoodsReceiptMovements(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	movements, err := models.ListMovementsByReference(h.DB.WithContext(c.Request.Context()), models.MovementReferenceGoodsReceipt, id)
	if err != nil {
		h.respondError(c, "listGoodsReceiptMovements", err)
		return
	}
	c.JSON(http.StatusOK, movements)
}
