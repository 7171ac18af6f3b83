package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dorm-assignment-backend/internal/model"
	"dorm-assignment-backend/internal/parse"
	"dorm-assignment-backend/internal/store"
)

type createPersonRequest struct {
	PersonalID string `json:"personal_id" binding:"required,personal_id"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Gender     string `json:"gender"`
	LivesAt    string `json:"lives_at"`
	Distance   *int   `json:"distance" binding:"required,gte=0"`
}

type listPeopleQuery struct {
	State string `form:"state" binding:"omitempty,oneof=waiting assigned"`
}

// CreatePerson handles POST /api/people. New people always start waiting.
func (h *Handler) CreatePerson(c *gin.Context) {
	var req createPersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	personalID, err := parse.PersonalID(req.PersonalID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	person, err := h.store.CreatePerson(c.Request.Context(), store.NewPerson{
		PersonalID: personalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Gender:     req.Gender,
		LivesAt:    req.LivesAt,
		Distance:   *req.Distance,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

// ListPeople handles GET /api/people?state=.
func (h *Handler) ListPeople(c *gin.Context) {
	var q listPeopleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	people, err := h.store.ListPeople(c.Request.Context(), store.PersonFilter{State: model.PersonState(q.State)})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, people)
}

// GetPerson handles GET /api/people/:id.
func (h *Handler) GetPerson(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	person, err := h.store.GetPerson(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// DeletePerson handles DELETE /api/people/:id.
func (h *Handler) DeletePerson(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	if err := h.store.DeletePerson(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAllPeople handles DELETE /api/people.
func (h *Handler) DeleteAllPeople(c *gin.Context) {
	deleted, err := h.store.DeleteAllPeople(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ReleasePerson handles POST /api/people/:id/release.
func (h *Handler) ReleasePerson(c *gin.Context) {
	id, ok := personID(c)
	if !ok {
		return
	}
	person, err := h.store.ReleasePerson(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, person)
}

type waitingEntry struct {
	DBID       int64  `json:"db_id"`
	PersonalID string `json:"personal_id"`
	FullName   string `json:"full_name"`
	Distance   int    `json:"distance"`
}

// GetWaiting handles GET /api/waiting. People are listed in the order the
// next pass would consider them.
func (h *Handler) GetWaiting(c *gin.Context) {
	people, err := h.store.ListWaiting(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	entries := make([]waitingEntry, len(people))
	for i, p := range people {
		entries[i] = waitingEntry{
			DBID:       p.ID,
			PersonalID: p.PersonalID,
			FullName:   p.FullName(),
			Distance:   p.Distance,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"message": fmt.Sprintf("there are %d waiting to be assigned a room", len(entries)),
		"people":  entries,
	})
}

func personID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid person ID"})
		return 0, false
	}
	return id, true
}
