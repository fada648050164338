package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"parkvision-backend/internal/model"
	"parkvision-backend/internal/parse"
	"parkvision-backend/internal/store"
)

const maxSessionLimit = 500

// GetSessions handles the GET /api/sessions request. The optional "at"
// query returns the sessions that were inside a lot at that time.
func (h *Handler) GetSessions(c *gin.Context) {
	filter := store.SessionFilter{
		Status: model.SessionStatus(c.Query("status")),
		LotID:  c.Query("lot"),
		Limit:  maxSessionLimit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		errorRes(c, http.StatusBadRequest, "invalid status")
		return
	}
	if plate := c.Query("plate"); plate != "" {
		filter.Plate = parse.Plate(plate)
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			errorRes(c, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = min(limit, maxSessionLimit)
	}
	if raw := c.Query("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorRes(c, http.StatusBadRequest, "Invalid 'at' timestamp format. Use RFC3339.")
			return
		}
		filter.At = at
	}

	sessions, err := h.store.ListSessions(c.Request.Context(), filter)
	if err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to retrieve sessions")
		return
	}
	successRes(c, http.StatusOK, sessions)
}

// GetLatestSession handles the GET /api/sessions/plate/{plate}/latest request.
func (h *Handler) GetLatestSession(c *gin.Context) {
	plate := parse.Plate(c.Param("plate"))
	session, err := h.store.LatestSessionFor(c.Request.Context(), plate)
	if err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to retrieve session")
		return
	}
	if session == nil {
		errorRes(c, http.StatusNotFound, "no session for plate")
		return
	}
	successRes(c, http.StatusOK, session)
}
