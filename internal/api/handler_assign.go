package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Assign handles POST /api/assign by running one assignment pass.
func (h *Handler) Assign(c *gin.Context) {
	result, err := h.assigner.RunPass(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type listAssignmentsQuery struct {
	PassID string `form:"pass_id"`
	Limit  int    `form:"limit" binding:"omitempty,gte=1,lte=1000"`
}

// ListAssignments handles GET /api/assignments?pass_id=&limit=.
func (h *Handler) ListAssignments(c *gin.Context) {
	q := listAssignmentsQuery{Limit: 100}
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	rows, err := h.store.ListAssignments(c.Request.Context(), q.PassID, q.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
