package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetDorms handles GET /api/dorms.
func (h *Handler) GetDorms(c *gin.Context) {
	dorms, err := h.store.ListDormSummaries(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dorms)
}

type roomResponse struct {
	ID        int64 `json:"id"`
	Number    int   `json:"number"`
	Capacity  int   `json:"capacity"`
	Occupied  int   `json:"occupied"`
	Remaining int   `json:"remaining"`
}

// GetRooms handles GET /api/dorms/:dorm_id/rooms.
func (h *Handler) GetRooms(c *gin.Context) {
	dormID, err := strconv.ParseInt(c.Param("dorm_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid dorm ID"})
		return
	}

	slots, err := h.store.ListRooms(c.Request.Context(), dormID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	rooms := make([]roomResponse, len(slots))
	for i, s := range slots {
		rooms[i] = roomResponse{
			ID:        s.RoomID,
			Number:    s.Number,
			Capacity:  s.Capacity,
			Occupied:  s.Occupied,
			Remaining: s.Remaining(),
		}
	}
	c.JSON(http.StatusOK, rooms)
}
