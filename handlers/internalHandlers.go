package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shop_backend/models"
)

func (h *Handler) listNotifications(c *gin.Context) {
	records, err := models.ListNotifications(c.Request.Context(), h.DB,
		models.NotificationStatus(c.Query("status")), queryInt(c, "limit"))
	if err != nil {
		h.respondError(c, "listNotifications", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) getNotification(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	record, err := models.GetNotification(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "getNotification", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// replayNotification gives a FAILED notification a fresh attempt budget.
func (h *Handler) replayNotification(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	record, err := models.ReplayNotification(c.Request.Context(), h.DB, id)
	if err != nil {
		h.respondError(c, "replayNotification", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) listReconciliationReports(c *gin.Context) {
	reports, err := models.ListReconciliationReports(c.Request.Context(), h.DB, c.Query("correlation_id"))
	if err != nil {
		h.respondError(c, "listReconciliationReports", err)
		return
	}
	c.JSON(http.StatusOK, reports)
}
