package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
	"github.com/mmdatafocus/shop_backend/workflow"
)

func (h *Handler) createReturn(c *gin.Context) {
	var input workflow.NewProductReturn
	if !bindJSON(c, &input) {
		return
	}
	ret, err := h.Returns.CreateReturn(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, "createReturn", err)
		return
	}
	c.JSON(http.StatusCreated, ret)
}

func (h *Handler) getReturn(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	ret, err := models.GetProductReturn(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "getReturn", err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (h *Handler) listReturns(c *gin.Context) {
	returns, err := models.ListProductReturns(c.Request.Context(), h.DB, models.ProductReturnFilter{
		SourceType: models.ReturnSourceType(c.Query("source_type")),
		SourceId:   queryInt(c, "source_id"),
		Status:     models.ReturnStatus(c.Query("status")),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		h.respondError(c, "listReturns", err)
		return
	}
	c.JSON(http.StatusOK, returns)
}

func (h *Handler) inspectReturn(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input workflow.InspectReturnInput
	if !bindJSON(c, &input) {
		return
	}
	ret, err := h.Returns.InspectReturn(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "inspectReturn", err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (h *Handler) approveReturn(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input workflow.ApproveReturnInput
	if !bindJSON(c, &input) {
		return
	}
	ret, err := h.Returns.ApproveReturn(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "approveReturn", err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) rejectReturn(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	ret, err := h.Returns.RejectReturn(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondError(c, "rejectReturn", err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (h *Handler) processReturn(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input workflow.ProcessReturnInput
	if !bindJSON(c, &input) {
		return
	}
	ret, err := h.Returns.ProcessReturn(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "processReturn", err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

func (h *Handler) cancelReturn(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}
	ret, err := h.Returns.CancelReturn(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.respondError(c, "cancelReturn", err)
		return
	}
	c.JSON(http.StatusOK, ret)
}

// listReturnMovements shows the ledger lines a processed return produced.
func (h *Handler) listReturnMovements(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	movements, err := models.ListMovementsByReference(h.DB.WithContext(c.Request.Context()), models.MovementReferenceProductReturn, id)
	if err != nil {
		h.respondError(c, "listReturnMovements", err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *Handler) listSaleRefunds(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	refunds, err := models.ListSaleRefunds(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "listSaleRefunds", err)
		return
	}
	c.JSON(http.StatusOK, refunds)
}
