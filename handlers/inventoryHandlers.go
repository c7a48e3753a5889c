package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/workflow"
)

func inventoryFilter(c *gin.Context) models.InventoryFilter {
	return models.InventoryFilter{
		ProductId:  queryInt(c, "product_id"),
		LocationId: queryInt(c, "location_id"),
		Limit:      queryInt(c, "limit"),
	}
}

func (h *Handler) listInventoryRecords(c *gin.Context) {
	records, err := models.ListInventoryRecords(h.DB.WithContext(c.Request.Context()), inventoryFilter(c))
	if err != nil {
		h.respondError(c, "listInventoryRecords", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) getInventoryRecord(c *gin.Context) {
	productId, ok := pathId(c, "productId")
	if !ok {
		return
	}
	locationId, ok := pathId(c, "locationId")
	if !ok {
		return
	}
	record, err := models.GetInventoryRecord(h.DB.WithContext(c.Request.Context()), productId, locationId)
	if err != nil {
		h.respondError(c, "getInventoryRecord", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) listStockMovements(c *gin.Context) {
	movements, err := models.ListStockMovements(h.DB.WithContext(c.Request.Context()), inventoryFilter(c))
	if err != nil {
		h.respondError(c, "listStockMovements", err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *Handler) recordMovement(c *gin.Context) {
	var input workflow.ManualMovement
	if !bindJSON(c, &input) {
		return
	}
	movement, err := h.Inventory.RecordMovement(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "recordMovement", err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (h *Handler) transferStock(c *gin.Context) {
	var input workflow.StockTransfer
	if !bindJSON(c, &input) {
		return
	}
	movements, err := h.Inventory.TransferStock(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "transferStock", err)
		return
	}
	c.JSON(http.StatusCreated, movements)
}
