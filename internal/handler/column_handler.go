package handler

import (
	"errors"
	"net/http"
	"strings"

	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type ColumnHandler struct {
	columns ColumnStore
	members MemberStore
	cache   CacheEvicter
}

func NewColumnHandler(columns ColumnStore, members MemberStore, cache CacheEvicter) *ColumnHandler {
	return &ColumnHandler{columns: columns, members: members, cache: cache}
}

// UpdateColumnRequest replaces both settings; null clears a setting.
type UpdateColumnRequest struct {
	WipLimit *int    `json:"wipLimit"`
	DoneRule *string `json:"doneRule"`
}

// Update sets a column's WIP limit and done rule.
// @Summary   Update column settings
// @Tags      Columns
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id        path string true "board id"
// @Param     column_id path string true "column slug"
// @Param     body      body UpdateColumnRequest true "settings"
// @Success   200 {object} engine.Column
// @Router    /boards/{id}/columns/{column_id} [put]
func (h *ColumnHandler) Update(c *gin.Context) {
	_, boardID, ok := boardAccess(c, h.members)
	if !ok {
		return
	}

	var req UpdateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.WipLimit != nil && *req.WipLimit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "WIP limit must be at least 1"})
		return
	}

	column, err := h.columns.GetBySlug(c.Request.Context(), boardID, c.Param("column_id"))
	if errors.Is(err, repository.ErrColumnNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Column not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve column"})
		return
	}
	if req.WipLimit != nil && !column.AllowWipLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This column does not accept a WIP limit"})
		return
	}

	column.WipLimit = req.WipLimit
	column.DoneRule = nil
	if req.DoneRule != nil {
		if rule := strings.TrimSpace(*req.DoneRule); rule != "" {
			column.DoneRule = &rule
		}
	}

	if err := h.columns.UpdateSettings(c.Request.Context(), column); err != nil {
		log.WithError(err).WithField("board_id", boardID).Error("column update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update column"})
		return
	}
	h.cache.Evict(c.Request.Context(), boardID)

	c.JSON(http.StatusOK, column.ToEngine())
}
